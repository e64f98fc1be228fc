package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCorruptSnapshot    = errors.New("cache snapshot is corrupt")
	ErrInvalidDateRange   = errors.New("invalid date range")
	ErrInvalidParallelism = errors.New("parallelism must be at least 1")
	ErrNoSymbols          = errors.New("at least one currency symbol is required")
)

// FetchError reports a failed provider call with enough context to diagnose
// it. Transient errors (network, 5xx) are eligible for caller-level retry;
// permanent ones (bad date, unknown currency, quota) are not.
type FetchError struct {
	Date      time.Time
	Symbols   []string
	Transient bool
	Err       error
}

func NewFetchError(date time.Time, symbols []string, transient bool, err error) *FetchError {
	return &FetchError{Date: date, Symbols: symbols, Transient: transient, Err: err}
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s fetch error for %s [%s]: %v",
		kind, e.Date.Format("2006-01-02"), strings.Join(e.Symbols, ","), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// QuotaError is the pre-flight rejection raised when a fetch would need more
// provider requests than the account has left.
type QuotaError struct {
	Expected  int
	Remaining int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("expected number of requests (%d) would exceed the remaining quota (%d)",
		e.Expected, e.Remaining)
}
