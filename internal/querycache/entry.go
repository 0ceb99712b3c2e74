// ABOUTME: Per-key cache entry state and the snapshots handed to views
// ABOUTME: Staleness rules and fetch bookkeeping live here

package querycache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/drake-forum/technoshield/internal/querykey"
)

// Status is the fetch lifecycle state of an entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of an entry handed to views.
// During revalidation Status is loading while Data and Err keep their
// previous values; IsFetching is true for the whole fetch.
type Snapshot struct {
	Key             querykey.Key
	Status          Status
	Data            json.RawMessage
	Err             error // an *apierr.Error when set
	LastFetchedAt   time.Time
	IsFetching      bool
	FailureCount    int
	SubscriberCount int
}

// HasData reports whether a successful payload is available, possibly stale.
func (s Snapshot) HasData() bool {
	return s.Data != nil
}

// fetchRun is one logical fetch, including its retries.
type fetchRun struct {
	seq          uint64
	cancel       context.CancelFunc
	waiters      []chan Snapshot
	invalidation bool
	started      time.Time
}

type intervalTimer struct {
	refs int
	stop chan struct{}
}

// entry is owned by the cache loop and never touched from another goroutine.
type entry struct {
	key           querykey.Key
	status        Status
	prevStatus    Status
	data          json.RawMessage
	err           error
	lastFetchedAt time.Time
	invalidated   bool
	failureCount  int

	subs      map[*Subscription]struct{}
	intervals map[time.Duration]*intervalTimer
	inflight  *fetchRun

	gcTimer *time.Timer
	gcGen   uint64
}

func newEntry(key querykey.Key) *entry {
	return &entry{
		key:       key,
		status:    StatusIdle,
		subs:      make(map[*Subscription]struct{}),
		intervals: make(map[time.Duration]*intervalTimer),
	}
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:             e.key,
		Status:          e.status,
		Data:            e.data,
		Err:             e.err,
		LastFetchedAt:   e.lastFetchedAt,
		IsFetching:      e.inflight != nil,
		FailureCount:    e.failureCount,
		SubscriberCount: len(e.subs),
	}
}

// staleFor reports whether the entry should be refetched for a reader that
// tolerates data up to staleTime old.
func (e *entry) staleFor(now time.Time, staleTime time.Duration) bool {
	if e.invalidated || e.lastFetchedAt.IsZero() || e.status == StatusError {
		return true
	}
	return now.Sub(e.lastFetchedAt) > staleTime
}

func (e *entry) hasEnabled() bool {
	for sub := range e.subs {
		if !sub.opts.Disabled {
			return true
		}
	}
	return false
}

func (e *entry) notify() {
	snap := e.snapshot()
	for sub := range e.subs {
		sub.push(snap)
	}
}
