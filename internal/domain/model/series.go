package model

import (
	"fmt"
	"sort"
	"time"
)

// TimeSeries is a date-ordered collection of exchange rates, one per day.
// It is assembled incrementally and read-only once handed to the caller.
type TimeSeries struct {
	rates map[string]*ExchangeRate
}

func NewTimeSeries() *TimeSeries {
	return &TimeSeries{rates: make(map[string]*ExchangeRate)}
}

// Add inserts a rate keyed by its own date. Duplicate dates are rejected so
// a series can never silently lose an entry.
func (s *TimeSeries) Add(rate *ExchangeRate) error {
	if rate == nil {
		return fmt.Errorf("cannot add nil rate to series")
	}
	key := rate.Date.Format("2006-01-02")
	if _, exists := s.rates[key]; exists {
		return fmt.Errorf("series already contains an entry for %s", key)
	}
	s.rates[key] = rate
	return nil
}

func (s *TimeSeries) Get(date time.Time) (*ExchangeRate, bool) {
	rate, ok := s.rates[date.Format("2006-01-02")]
	return rate, ok
}

func (s *TimeSeries) Len() int {
	return len(s.rates)
}

// Dates returns every date in the series in ascending order, or descending
// when requested. Insertion order is irrelevant.
func (s *TimeSeries) Dates(descending bool) []time.Time {
	dates := make([]time.Time, 0, len(s.rates))
	for _, rate := range s.rates {
		dates = append(dates, rate.Date)
	}
	sort.Slice(dates, func(i, j int) bool {
		if descending {
			return dates[i].After(dates[j])
		}
		return dates[i].Before(dates[j])
	})
	return dates
}
