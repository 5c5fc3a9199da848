// Package notifications maintains the per-account notification state: a
// cached list refreshed on an interval and on demand, and a lastSeen
// watermark the unread count derives from.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cartel-sh/box/hydration"
	"github.com/cartel-sh/box/models"
)

var pollGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "notifications_last_poll_unix",
	Help: "Unix time of the last successful notification poll per account",
}, []string{"account"})

// FetchFunc loads the viewer's current notifications, sorted newest
// first. An unauthenticated fetch must return an empty list, not an
// error; 401 is a normal state.
type FetchFunc func(ctx context.Context) ([]models.Notification, error)

// WatermarkStore persists the lastSeen watermark across sessions.
type WatermarkStore interface {
	LoadLastSeen(account string) (time.Time, error)
	StoreLastSeen(account string, t time.Time) error
}

// Aggregator polls notifications for one account. Interval refreshes and
// manual Refresh calls both write through SetNotifications, so the cache
// update is last-write-wins rather than additive.
type Aggregator struct {
	account  string
	fetch    FetchFunc
	store    WatermarkStore
	interval time.Duration

	mu       sync.Mutex
	cached   []models.Notification
	lastSeen time.Time
	lastErr  error
}

// NewAggregator creates an aggregator for the account. The watermark is
// initialized from the store, defaulting to now on first run so a fresh
// session starts with zero unread.
func NewAggregator(account string, fetch FetchFunc, store WatermarkStore, interval time.Duration) *Aggregator {
	a := &Aggregator{
		account:  account,
		fetch:    fetch,
		store:    store,
		interval: interval,
		lastSeen: time.Now(),
	}

	if store != nil {
		if seen, err := store.LoadLastSeen(account); err == nil && !seen.IsZero() {
			a.lastSeen = seen
		}
	}

	return a
}

// Run polls on the configured interval until the context is canceled.
// Polling continues regardless of whether anyone is looking.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				log.Warn("notification poll failed", "account", a.account, "error", err)
			}
		}
	}
}

// Refresh fetches the current list and replaces the cache.
func (a *Aggregator) Refresh(ctx context.Context) error {
	items, err := a.fetch(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.lastErr = err
		return err
	}

	a.lastErr = nil
	a.cached = hydration.SortNotifications(items)
	pollGauge.WithLabelValues(a.account).SetToCurrentTime()
	return nil
}

// SetNotifications replaces the cached list directly (used when a caller
// already holds a fresh page). Last write wins.
func (a *Aggregator) SetNotifications(items []models.Notification) {
	sorted := hydration.SortNotifications(items)
	a.mu.Lock()
	a.cached = sorted
	a.mu.Unlock()
}

// Notifications returns a copy of the cached list, newest first with
// untimestamped entries at the end.
func (a *Aggregator) Notifications() []models.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.Notification, len(a.cached))
	copy(out, a.cached)
	return out
}

// Err returns the most recent refresh error, nil after any success.
// Read failures are retryable; the interval poll is the retry mechanism.
func (a *Aggregator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// NewCount is the number of cached notifications strictly newer than the
// lastSeen watermark. Notifications without a timestamp never count.
func (a *Aggregator) NewCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return hydration.CountNew(a.cached, a.lastSeen)
}

// LastSeen returns the current watermark.
func (a *Aggregator) LastSeen() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeen
}

// MarkAllRead moves the watermark to now and persists it. The cached
// list itself is not mutated.
func (a *Aggregator) MarkAllRead() error {
	now := time.Now()

	a.mu.Lock()
	a.lastSeen = now
	a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	return a.store.StoreLastSeen(a.account, now)
}
