package ports

import (
	"context"
	"time"

	"price-fetcher/internal/domain/model"
)

// RateSource abstracts the remote rate provider: one call per (date, symbol
// set) plus a usage/quota query. Failures are reported as *model.FetchError.
type RateSource interface {
	FetchHistorical(ctx context.Context, date time.Time, symbols []string) (*model.ExchangeRate, error)
	FetchUsage(ctx context.Context) (*model.Usage, error)
}
