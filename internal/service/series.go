package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"price-fetcher/internal/domain/model"
	"price-fetcher/internal/domain/ports"
	"price-fetcher/pkg/logger"
	"price-fetcher/pkg/utils"
)

// SeriesService assembles a date-ordered series of exchange rates for a
// range, serving cached days from the rate cache and fetching the rest from
// the provider with a bounded number of requests in flight.
type SeriesService struct {
	source ports.RateSource
	cache  ports.RateCache
	log    *logger.Logger
}

func NewSeriesService(source ports.RateSource, cache ports.RateCache, log *logger.Logger) *SeriesService {
	return &SeriesService{
		source: source,
		cache:  cache,
		log:    log,
	}
}

type SeriesRequest struct {
	Start          time.Time
	End            time.Time
	Symbols        []string
	Parallelism    int
	SkipQuotaCheck bool
}

type fetchResult struct {
	rate *model.ExchangeRate
	err  error
}

// FetchSeries returns one entry per calendar day in [Start, End], or an
// error — never a partial series. Completion order of provider calls is
// unconstrained; the result is ordered by date regardless.
func (s *SeriesService) FetchSeries(ctx context.Context, req SeriesRequest) (*model.TimeSeries, error) {
	start := utils.NormalizeDate(req.Start)
	end := utils.NormalizeDate(req.End)

	if start.After(end) {
		return nil, fmt.Errorf("%w: %s is after %s", model.ErrInvalidDateRange,
			utils.FormatDate(start), utils.FormatDate(end))
	}
	if req.Parallelism < 1 {
		return nil, model.ErrInvalidParallelism
	}
	if len(req.Symbols) == 0 {
		return nil, model.ErrNoSymbols
	}

	opID := uuid.NewString()
	dates := utils.DateRange(start, end)

	series := model.NewTimeSeries()
	var misses []time.Time
	for _, date := range dates {
		if rate, found := s.cache.Get(ctx, date); found {
			if err := series.Add(rate); err != nil {
				return nil, err
			}
			continue
		}
		misses = append(misses, date)
	}

	s.log.Info("Series fetch planned", "op", opID,
		"start", utils.FormatDate(start), "end", utils.FormatDate(end),
		"days", len(dates), "cached", len(dates)-len(misses), "missing", len(misses))

	if len(misses) == 0 {
		return series, nil
	}

	if !req.SkipQuotaCheck {
		usage, err := s.source.FetchUsage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check quota before fetching: %w", err)
		}
		if err := CheckQuota(len(misses), usage); err != nil {
			return nil, err
		}
	}

	fetched, err := s.fetchMissing(ctx, opID, misses, req.Symbols, req.Parallelism)
	if err != nil {
		return nil, err
	}

	for _, rate := range fetched {
		if err := series.Add(rate); err != nil {
			return nil, err
		}
	}

	s.log.Info("Series fetch complete", "op", opID, "entries", series.Len())
	return series, nil
}

// fetchMissing fans the missing dates out to the provider through a pool of
// at most parallelism workers — a sliding window, so a new request starts as
// soon as one completes. The first error cancels the fan-out: no new
// requests are issued and results of in-flight ones are discarded.
func (s *SeriesService) fetchMissing(ctx context.Context, opID string, dates []time.Time, symbols []string, parallelism int) ([]*model.ExchangeRate, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := parallelism
	if len(dates) < workers {
		workers = len(dates)
	}

	jobs := make(chan time.Time)
	results := make(chan fetchResult, len(dates))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for date := range jobs {
				rate, err := s.source.FetchHistorical(ctx, date, symbols)
				results <- fetchResult{rate: rate, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, date := range dates {
			select {
			case jobs <- date:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	fetched := make([]*model.ExchangeRate, 0, len(dates))
	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				cancel()
			}
			continue
		}
		if firstErr != nil {
			// The operation already failed; this late result is dropped.
			continue
		}

		if previous := s.cache.Put(ctx, result.rate.Date, result.rate); previous != nil {
			s.log.Debug("Replaced cached rate", "op", opID, "date", utils.FormatDate(result.rate.Date))
		}
		fetched = append(fetched, result.rate)
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return fetched, nil
}
