package service

import (
	"fmt"

	"price-fetcher/internal/domain/model"
)

// CheckQuota rejects an operation whose expected request count exceeds the
// remaining provider quota. Pure comparison, no side effects; callers may
// skip it entirely.
func CheckQuota(expected int, usage *model.Usage) error {
	if usage == nil {
		return fmt.Errorf("no usage report available for quota check")
	}
	if expected > usage.RequestsRemaining {
		return &model.QuotaError{Expected: expected, Remaining: usage.RequestsRemaining}
	}
	return nil
}
