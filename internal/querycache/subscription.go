// ABOUTME: Subscription handles returned by Subscribe
// ABOUTME: Coalesces snapshots into a one-slot channel for consumers that poll

package querycache

import (
	"sync"
	"time"

	"github.com/drake-forum/technoshield/internal/querykey"
)

// Options tunes a single subscription.
type Options struct {
	// RefetchInterval polls the key while the cache is active. Zero disables polling.
	RefetchInterval time.Duration
	// StaleTime overrides how old cached data may be before a new subscriber
	// triggers a fetch. Zero falls back to RefetchInterval, then the cache default.
	StaleTime time.Duration
	// Disabled subscribes without ever triggering a fetch.
	Disabled bool
}

// Subscription is a view's handle on one key. Close it when the view unmounts.
type Subscription struct {
	cache    *Cache
	key      querykey.Key
	opts     Options
	updates  chan Snapshot
	listener func(Snapshot)

	closeOnce sync.Once
}

// Key returns the subscribed key.
func (s *Subscription) Key() querykey.Key {
	return s.key
}

// Updates delivers the latest snapshot. Intermediate snapshots are
// coalesced, so a slow reader only sees the newest state. The channel is
// closed when the subscription or the cache is closed. It is drained
// internally when the subscription was created with a listener.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Close unsubscribes. Calling it more than once is safe.
func (s *Subscription) Close() error {
	return s.cache.Unsubscribe(s)
}

func (s *Subscription) staleTime(fallback time.Duration) time.Duration {
	if s.opts.StaleTime > 0 {
		return s.opts.StaleTime
	}
	if s.opts.RefetchInterval > 0 {
		return s.opts.RefetchInterval
	}
	return fallback
}

// push replaces any undelivered snapshot with snap. Only the cache loop
// sends, so after the drain the buffer always has room.
func (s *Subscription) push(snap Snapshot) {
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snap:
	default:
	}
}

func (s *Subscription) closeUpdates() {
	s.closeOnce.Do(func() { close(s.updates) })
}

func (s *Subscription) deliver() {
	for snap := range s.updates {
		s.listener(snap)
	}
}
