package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"price-fetcher/internal/domain/model"
	"price-fetcher/internal/metrics"
	"price-fetcher/pkg/logger"
	"price-fetcher/pkg/utils"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func testRate(t *testing.T, day string, aud float64) *model.ExchangeRate {
	t.Helper()
	date, err := utils.ParseDate(day)
	require.NoError(t, err)

	return &model.ExchangeRate{
		Date:       date,
		ObtainedAt: time.Now().UTC(),
		Base:       "USD",
		Rates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"AUD": decimal.NewFromFloat(aud),
		},
	}
}

func TestFileCache_PutGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := Open(path, logger.NewLogger("error"), newTestMetrics())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	date, err := utils.ParseDate("2020-05-01")
	require.NoError(t, err)

	_, found := c.Get(ctx, date)
	require.False(t, found)

	first := testRate(t, "2020-05-01", 1.53)
	require.Nil(t, c.Put(ctx, date, first))

	got, found := c.Get(ctx, date)
	require.True(t, found)
	require.Equal(t, first, got)

	second := testRate(t, "2020-05-01", 1.54)
	previous := c.Put(ctx, date, second)
	require.Equal(t, first, previous)

	removed := c.Remove(ctx, date)
	require.Equal(t, second, removed)

	_, found = c.Get(ctx, date)
	require.False(t, found)

	require.Nil(t, c.Remove(ctx, date))
}

func TestFileCache_OpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "cache.json")
	c, err := Open(path, logger.NewLogger("error"), newTestMetrics())
	require.NoError(t, err)
	defer c.Close()

	date, err := utils.ParseDate("2020-05-01")
	require.NoError(t, err)
	_, found := c.Get(context.Background(), date)
	require.False(t, found)
}

func TestFileCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	log := logger.NewLogger("error")

	c, err := Open(path, log, newTestMetrics())
	require.NoError(t, err)

	ctx := context.Background()
	days := []string{"2020-05-01", "2020-05-02", "2020-05-03"}
	for i, day := range days {
		date, err := utils.ParseDate(day)
		require.NoError(t, err)
		c.Put(ctx, date, testRate(t, day, 1.5+float64(i)/100))
	}
	require.NoError(t, c.Close())

	reopened, err := Open(path, log, newTestMetrics())
	require.NoError(t, err)
	defer reopened.Close()

	for i, day := range days {
		date, err := utils.ParseDate(day)
		require.NoError(t, err)
		rate, found := reopened.Get(ctx, date)
		require.True(t, found, "expected %s to survive reopen", day)
		require.Equal(t, "USD", rate.Base)
		require.True(t, decimal.NewFromFloat(1.5+float64(i)/100).Equal(rate.Rates["AUD"]))
	}
}

func TestFileCache_OpenCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path, logger.NewLogger("error"), newTestMetrics())
	require.ErrorIs(t, err, model.ErrCorruptSnapshot)
}

func TestFileCache_CoalescesToLatestState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	log := logger.NewLogger("error")

	c, err := Open(path, log, newTestMetrics())
	require.NoError(t, err)

	ctx := context.Background()
	date, err := utils.ParseDate("2020-05-01")
	require.NoError(t, err)

	// A rapid burst of mutations; the writer may flush any number of times,
	// but once idle the snapshot must reflect exactly the last state.
	for i := 0; i < 200; i++ {
		c.Put(ctx, date, testRate(t, "2020-05-01", float64(i)))
	}
	final := testRate(t, "2020-05-01", 99.99)
	c.Put(ctx, date, final)
	require.NoError(t, c.Close())

	reopened, err := Open(path, log, newTestMetrics())
	require.NoError(t, err)
	defer reopened.Close()

	rate, found := reopened.Get(ctx, date)
	require.True(t, found)
	require.True(t, decimal.NewFromFloat(99.99).Equal(rate.Rates["AUD"]))

	// The atomic replace must not leave temp files behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "cache.json", entries[0].Name())
}

func TestFileCache_RemovePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	log := logger.NewLogger("error")

	c, err := Open(path, log, newTestMetrics())
	require.NoError(t, err)

	ctx := context.Background()
	keep, err := utils.ParseDate("2020-05-01")
	require.NoError(t, err)
	drop, err := utils.ParseDate("2020-05-02")
	require.NoError(t, err)

	c.Put(ctx, keep, testRate(t, "2020-05-01", 1.5))
	c.Put(ctx, drop, testRate(t, "2020-05-02", 1.6))
	c.Remove(ctx, drop)
	require.NoError(t, c.Close())

	reopened, err := Open(path, log, newTestMetrics())
	require.NoError(t, err)
	defer reopened.Close()

	_, found := reopened.Get(ctx, keep)
	require.True(t, found)
	_, found = reopened.Get(ctx, drop)
	require.False(t, found)
}

func TestFileCache_FlushFailureKeepsMemoryState(t *testing.T) {
	// The snapshot path is an existing directory, so every rename fails.
	dir := t.TempDir()
	m := newTestMetrics()

	c, err := New(dir, logger.NewLogger("error"), m)
	require.NoError(t, err)

	ctx := context.Background()
	date, err := utils.ParseDate("2020-05-01")
	require.NoError(t, err)
	rate := testRate(t, "2020-05-01", 1.5)
	c.Put(ctx, date, rate)

	require.NoError(t, c.Close())

	got, found := c.Get(ctx, date)
	require.True(t, found)
	require.Equal(t, rate, got)
	require.GreaterOrEqual(t, testutil.ToFloat64(m.SnapshotFlushErrorsTotal), 1.0)
}

func TestFileCache_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := Open(path, logger.NewLogger("error"), newTestMetrics())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestFileCache_ConcurrentPuts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	log := logger.NewLogger("error")

	c, err := Open(path, log, newTestMetrics())
	require.NoError(t, err)

	ctx := context.Background()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			day := fmt.Sprintf("2020-05-%02d", n+1)
			date, err := utils.ParseDate(day)
			if err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 50; j++ {
				c.Put(ctx, date, testRate(t, day, float64(j)))
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	require.NoError(t, c.Close())

	reopened, err := Open(path, log, newTestMetrics())
	require.NoError(t, err)
	defer reopened.Close()

	for i := 0; i < 8; i++ {
		date, err := utils.ParseDate(fmt.Sprintf("2020-05-%02d", i+1))
		require.NoError(t, err)
		rate, found := reopened.Get(ctx, date)
		require.True(t, found)
		require.True(t, decimal.NewFromFloat(49).Equal(rate.Rates["AUD"]))
	}
}
