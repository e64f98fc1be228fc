package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"price-fetcher/internal/domain/model"
	"price-fetcher/internal/metrics"
	"price-fetcher/pkg/logger"
	"price-fetcher/pkg/utils"
)

// OpenExchangeAPI fetches rates from the openexchangerates.org API. One
// request covers one day's rates for the requested symbol set; a separate
// endpoint reports account usage.
type OpenExchangeAPI struct {
	baseURL    string
	appID      string
	httpClient *http.Client
	log        *logger.Logger
	metrics    *metrics.Metrics
}

type rateResponse struct {
	Timestamp int64                      `json:"timestamp"`
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

type usageResponse struct {
	Data struct {
		Status string `json:"status"`
		Plan   struct {
			Name  string `json:"name"`
			Quota string `json:"quota"`
		} `json:"plan"`
		Usage struct {
			Requests          int `json:"requests"`
			RequestsQuota     int `json:"requests_quota"`
			RequestsRemaining int `json:"requests_remaining"`
			DaysElapsed       int `json:"days_elapsed"`
			DaysRemaining     int `json:"days_remaining"`
			DailyAverage      int `json:"daily_average"`
		} `json:"usage"`
	} `json:"data"`
}

func NewOpenExchangeAPI(baseURL, appID string, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *OpenExchangeAPI {
	return &OpenExchangeAPI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		appID:   appID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:     log,
		metrics: m,
	}
}

// FetchHistorical retrieves the rates effective on date for the given
// symbols. The returned rate is keyed to the requested date, not to the
// provider's intra-day timestamp.
func (a *OpenExchangeAPI) FetchHistorical(ctx context.Context, date time.Time, symbols []string) (*model.ExchangeRate, error) {
	endpoint := fmt.Sprintf("historical/%s.json", utils.FormatDate(date))

	var resp rateResponse
	if err := a.requestJSON(ctx, endpoint, symbols, &resp); err != nil {
		return nil, a.fetchError(date, symbols, err)
	}

	return &model.ExchangeRate{
		Date:       utils.NormalizeDate(date),
		ObtainedAt: time.Now().UTC(),
		Base:       resp.Base,
		Rates:      resp.Rates,
	}, nil
}

// FetchLatest retrieves the most recent rates; the rate date is derived from
// the provider's timestamp.
func (a *OpenExchangeAPI) FetchLatest(ctx context.Context, symbols []string) (*model.ExchangeRate, error) {
	var resp rateResponse
	if err := a.requestJSON(ctx, "latest.json", symbols, &resp); err != nil {
		return nil, a.fetchError(time.Now().UTC(), symbols, err)
	}

	return &model.ExchangeRate{
		Date:       utils.NormalizeDate(time.Unix(resp.Timestamp, 0)),
		ObtainedAt: time.Now().UTC(),
		Base:       resp.Base,
		Rates:      resp.Rates,
	}, nil
}

func (a *OpenExchangeAPI) FetchUsage(ctx context.Context) (*model.Usage, error) {
	var resp usageResponse
	if err := a.requestJSON(ctx, "usage.json", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch usage report: %w", err)
	}

	return &model.Usage{
		Status:            resp.Data.Status,
		PlanName:          resp.Data.Plan.Name,
		PlanQuota:         resp.Data.Plan.Quota,
		Requests:          resp.Data.Usage.Requests,
		RequestsQuota:     resp.Data.Usage.RequestsQuota,
		RequestsRemaining: resp.Data.Usage.RequestsRemaining,
		DaysElapsed:       resp.Data.Usage.DaysElapsed,
		DaysRemaining:     resp.Data.Usage.DaysRemaining,
		DailyAverage:      resp.Data.Usage.DailyAverage,
	}, nil
}

// requestError distinguishes transport/5xx failures, which a caller may
// retry, from everything else.
type requestError struct {
	transient bool
	err       error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func (a *OpenExchangeAPI) requestJSON(ctx context.Context, endpoint string, symbols []string, out any) error {
	query := url.Values{}
	query.Set("app_id", a.appID)
	query.Set("prettyprint", "false")
	if len(symbols) > 0 {
		query.Set("symbols", strings.Join(symbols, ","))
	}
	requestURL := fmt.Sprintf("%s/%s?%s", a.baseURL, endpoint, query.Encode())

	a.metrics.ProviderRequestsTotal.Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		a.metrics.ProviderErrorsTotal.Inc()
		return &requestError{transient: false, err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.metrics.ProviderErrorsTotal.Inc()
		return &requestError{transient: true, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.metrics.ProviderErrorsTotal.Inc()
		return &requestError{
			transient: resp.StatusCode >= http.StatusInternalServerError,
			err:       fmt.Errorf("provider returned status %d for %s", resp.StatusCode, endpoint),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		a.metrics.ProviderErrorsTotal.Inc()
		return &requestError{transient: false, err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (a *OpenExchangeAPI) fetchError(date time.Time, symbols []string, err error) *model.FetchError {
	transient := false
	if reqErr, ok := err.(*requestError); ok {
		transient = reqErr.transient
	}
	a.log.Error("Provider fetch failed", "date", utils.FormatDate(date), "transient", transient, "error", err)
	return model.NewFetchError(utils.NormalizeDate(date), symbols, transient, err)
}
