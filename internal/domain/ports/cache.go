package ports

import (
	"context"
	"time"

	"price-fetcher/internal/domain/model"
)

// RateCache is a persistent date-keyed store of exchange rates. Put and
// Remove return the value they replaced, if any, and must not block on
// persistence. Close stops any background persistence after a final drain.
type RateCache interface {
	Get(ctx context.Context, date time.Time) (*model.ExchangeRate, bool)
	Put(ctx context.Context, date time.Time, rate *model.ExchangeRate) *model.ExchangeRate
	Remove(ctx context.Context, date time.Time) *model.ExchangeRate
	Close() error
}
