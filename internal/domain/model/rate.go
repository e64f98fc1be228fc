package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate holds the conversion rates observed for one calendar day.
// Rates are expressed relative to Base. Treated as immutable once built.
type ExchangeRate struct {
	Date       time.Time                  `json:"date"`
	ObtainedAt time.Time                  `json:"obtained_at"`
	Base       string                     `json:"base"`
	Rates      map[string]decimal.Decimal `json:"rates"`
}

// RateBetween returns the price of one unit of from expressed in to, derived
// from the base-relative rates: rates[to] / rates[from].
func (r *ExchangeRate) RateBetween(from, to string) (decimal.Decimal, error) {
	fromRate, ok := r.Rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for currency %s on %s", from, r.Date.Format("2006-01-02"))
	}
	toRate, ok := r.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for currency %s on %s", to, r.Date.Format("2006-01-02"))
	}
	if fromRate.IsZero() {
		return decimal.Zero, fmt.Errorf("rate for currency %s on %s is zero", from, r.Date.Format("2006-01-02"))
	}
	return toRate.Div(fromRate), nil
}
