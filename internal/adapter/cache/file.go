package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"price-fetcher/internal/domain/model"
	"price-fetcher/internal/metrics"
	"price-fetcher/pkg/logger"
	"price-fetcher/pkg/utils"
)

// FileCache keeps exchange rates in memory and mirrors them into a single
// JSON snapshot file. Mutations return immediately; a background writer
// owns all disk I/O and coalesces rapid successive mutations, flushing only
// the newest pending state. The snapshot file is replaced atomically
// (write temp + rename) so a crash mid-write never leaves a torn file.
type FileCache struct {
	path    string
	log     *logger.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	rates map[string]*model.ExchangeRate

	// Single-slot mailbox for the writer: holds at most the newest snapshot
	// still awaiting persistence. A new deposit overwrites, never queues.
	slotMu  sync.Mutex
	pending []*model.ExchangeRate

	notify    chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Open loads the snapshot at path into memory and starts the background
// writer. A missing file means an empty cache; an unreadable one fails with
// a wrapped I/O error and an undecodable one with model.ErrCorruptSnapshot.
func Open(path string, log *logger.Logger, m *metrics.Metrics) (*FileCache, error) {
	c, err := New(path, log, m)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Cold cache.
	case err != nil:
		c.stopWriter()
		return nil, fmt.Errorf("failed to read cache snapshot %s: %w", path, err)
	default:
		var entries []*model.ExchangeRate
		if err := json.Unmarshal(data, &entries); err != nil {
			c.stopWriter()
			return nil, fmt.Errorf("%w: %s: %v", model.ErrCorruptSnapshot, path, err)
		}
		for _, rate := range entries {
			c.rates[utils.FormatDate(rate.Date)] = rate
		}
		log.Debug("Loaded cache snapshot", "path", path, "entries", len(entries))
	}

	return c, nil
}

// New creates an empty cache at path without reading any existing snapshot.
// Callers use it to recover from a corrupt snapshot reported by Open.
func New(path string, log *logger.Logger, m *metrics.Metrics) (*FileCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	c := &FileCache{
		path:    path,
		log:     log,
		metrics: m,
		rates:   make(map[string]*model.ExchangeRate),
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go c.writeLoop()
	return c, nil
}

func (c *FileCache) Get(ctx context.Context, date time.Time) (*model.ExchangeRate, bool) {
	key := utils.FormatDate(date)

	c.mu.RLock()
	rate, found := c.rates[key]
	c.mu.RUnlock()

	if found {
		c.metrics.CacheHitsTotal.Inc()
		c.log.Debug("Cache hit", "date", key)
	} else {
		c.metrics.CacheMissesTotal.Inc()
		c.log.Debug("Cache miss", "date", key)
	}
	return rate, found
}

// Put stores rate under date and returns the value it replaced, if any. The
// in-memory update is synchronous; persistence is signalled to the writer
// and never blocks the caller.
func (c *FileCache) Put(ctx context.Context, date time.Time, rate *model.ExchangeRate) *model.ExchangeRate {
	key := utils.FormatDate(date)

	c.mu.Lock()
	previous := c.rates[key]
	c.rates[key] = rate
	// Deposited before the map lock is released so concurrent mutations
	// cannot land their snapshots in the mailbox out of order.
	c.deposit(c.snapshotLocked())
	c.mu.Unlock()

	return previous
}

func (c *FileCache) Remove(ctx context.Context, date time.Time) *model.ExchangeRate {
	key := utils.FormatDate(date)

	c.mu.Lock()
	previous, found := c.rates[key]
	if found {
		delete(c.rates, key)
		c.deposit(c.snapshotLocked())
	}
	c.mu.Unlock()

	if !found {
		return nil
	}
	return previous
}

// Close stops the background writer after a final drain of the mailbox. The
// writer goroutine is joined before Close returns, so the last applied
// mutation is on disk (or reported as a flush error) by then.
func (c *FileCache) Close() error {
	c.stopWriter()
	return nil
}

func (c *FileCache) stopWriter() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

// snapshotLocked copies the map into a date-sorted slice. Callers hold mu.
func (c *FileCache) snapshotLocked() []*model.ExchangeRate {
	entries := make([]*model.ExchangeRate, 0, len(c.rates))
	for _, rate := range c.rates {
		entries = append(entries, rate)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries
}

func (c *FileCache) deposit(snapshot []*model.ExchangeRate) {
	c.slotMu.Lock()
	c.pending = snapshot
	c.slotMu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
		// Writer already has a wakeup pending; it will see the new state.
	}
}

func (c *FileCache) writeLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.notify:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

// flush drains the mailbox and persists the snapshot it held. A failed write
// leaves the in-memory state untouched; the snapshot is re-deposited (unless
// a newer one arrived meanwhile) so the next signal retries it.
func (c *FileCache) flush() {
	c.slotMu.Lock()
	snapshot := c.pending
	c.pending = nil
	c.slotMu.Unlock()

	if snapshot == nil {
		return
	}

	if err := c.writeSnapshot(snapshot); err != nil {
		c.metrics.SnapshotFlushErrorsTotal.Inc()
		c.log.Error("Failed to flush cache snapshot", "path", c.path, "error", err)

		c.slotMu.Lock()
		if c.pending == nil {
			c.pending = snapshot
		}
		c.slotMu.Unlock()
		return
	}

	c.metrics.SnapshotFlushesTotal.Inc()
	c.log.Debug("Flushed cache snapshot", "path", c.path, "entries", len(snapshot))
}

func (c *FileCache) writeSnapshot(snapshot []*model.ExchangeRate) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
