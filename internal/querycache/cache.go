// ABOUTME: Query cache event loop and its public operations
// ABOUTME: Subscribe, invalidate, fetch, focus gating, and the fetch procedure with retries

// Package querycache maps query keys to fetched data and keeps it fresh.
//
// Concurrency model: a single internal event loop (goroutine) owns every
// entry. Public methods send closures to the loop; network I/O and timers
// run on their own goroutines and post their results back, so no entry is
// ever mutated outside the loop and no mutexes guard the table.
package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drake-forum/technoshield/internal/apierr"
	"github.com/drake-forum/technoshield/internal/querykey"
	"github.com/drake-forum/technoshield/internal/retry"
)

// DefaultGCDelay is how long an unsubscribed entry survives.
const DefaultGCDelay = 5 * time.Minute

// Fetcher performs the request identified by a key.
type Fetcher interface {
	Fetch(ctx context.Context, key querykey.Key) (json.RawMessage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key querykey.Key) (json.RawMessage, error)

func (f FetcherFunc) Fetch(ctx context.Context, key querykey.Key) (json.RawMessage, error) {
	return f(ctx, key)
}

// Config holds cache-wide settings. Zero values get defaults, except
// GCDelay which must be negative to mean immediate disposal.
type Config struct {
	GCDelay    time.Duration
	StaleTime  time.Duration
	Retry      retry.Config
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Cache is the process-wide query cache.
type Cache struct {
	fetcher Fetcher
	gcDelay time.Duration
	stale   time.Duration
	retry   retry.Config
	logger  *slog.Logger
	now     func() time.Time
	metrics *metrics

	ctx    context.Context
	cancel context.CancelFunc

	tasks   chan func()
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool

	// loop-owned
	entries map[querykey.Key]*entry
	seq     uint64
	active  bool
}

// New starts a cache backed by fetcher.
func New(fetcher Fetcher, cfg Config) *Cache {
	if cfg.GCDelay == 0 {
		cfg.GCDelay = DefaultGCDelay
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		fetcher: fetcher,
		gcDelay: cfg.GCDelay,
		stale:   cfg.StaleTime,
		retry:   cfg.Retry,
		logger:  cfg.Logger,
		now:     cfg.Now,
		metrics: newMetrics(cfg.Registerer),
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(chan func(), 256),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
		entries: make(map[querykey.Key]*entry),
		active:  true,
	}

	go c.run()
	return c
}

func (c *Cache) run() {
	defer close(c.stopped)

	for {
		select {
		case <-c.stopCh:
			c.shutdown()
			return
		case task := <-c.tasks:
			task()
		}
	}
}

func (c *Cache) shutdown() {
	for _, e := range c.entries {
		if e.gcTimer != nil {
			e.gcTimer.Stop()
		}
		for _, t := range e.intervals {
			close(t.stop)
		}
		if e.inflight != nil {
			e.inflight.cancel()
		}
		for sub := range e.subs {
			sub.closeUpdates()
		}
	}
	c.entries = nil
}

// call runs fn on the loop and waits for it.
func (c *Cache) call(fn func()) error {
	if c.closed.Load() {
		return apierr.ErrCacheClosed
	}
	done := make(chan struct{})
	select {
	case c.tasks <- func() { fn(); close(done) }:
	case <-c.stopped:
		return apierr.ErrCacheClosed
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return apierr.ErrCacheClosed
	}
}

// post queues fn without waiting. Used by timers and fetch goroutines.
func (c *Cache) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.stopped:
	}
}

// Close stops the loop, every timer, and every in-flight fetch.
// Subscription update channels are closed.
func (c *Cache) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
		close(c.stopCh)
	}
	<-c.stopped
}

// Subscribe registers interest in key. listener, if non-nil, is called on its
// own goroutine with every snapshot; otherwise read Subscription.Updates.
// The current snapshot is delivered immediately.
func (c *Cache) Subscribe(key querykey.Key, opts Options, listener func(Snapshot)) (*Subscription, error) {
	sub := &Subscription{
		cache:    c,
		key:      key,
		opts:     opts,
		updates:  make(chan Snapshot, 1),
		listener: listener,
	}
	if listener != nil {
		go sub.deliver()
	}

	if err := c.call(func() { c.subscribe(sub) }); err != nil {
		sub.closeUpdates()
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes sub. At zero subscribers the in-flight fetch is
// aborted and the entry is disposed after the GC delay.
func (c *Cache) Unsubscribe(sub *Subscription) error {
	err := c.call(func() { c.unsubscribe(sub) })
	sub.closeUpdates()
	if errors.Is(err, apierr.ErrCacheClosed) {
		return nil
	}
	return err
}

// Invalidate marks key stale and refetches it if anyone is subscribed.
func (c *Cache) Invalidate(key querykey.Key) error {
	return c.call(func() {
		if e, ok := c.entries[key]; ok {
			c.invalidate(e)
		}
	})
}

// InvalidatePrefix invalidates every entry whose endpoint starts with prefix.
func (c *Cache) InvalidatePrefix(prefix string) error {
	return c.call(func() {
		for key, e := range c.entries {
			if key.HasPrefix(prefix) {
				c.invalidate(e)
			}
		}
	})
}

// Get returns the current snapshot of key without triggering a fetch.
func (c *Cache) Get(key querykey.Key) (Snapshot, bool) {
	var snap Snapshot
	var ok bool
	_ = c.call(func() {
		if e, found := c.entries[key]; found {
			snap, ok = e.snapshot(), true
		}
	})
	return snap, ok
}

// Fetch returns data for key no older than the cache's stale time, fetching
// if needed. A concurrent fetch for the same key is joined, not repeated.
// The returned error is the snapshot's error when the fetch failed.
func (c *Cache) Fetch(ctx context.Context, key querykey.Key) (Snapshot, error) {
	waiter := make(chan Snapshot, 1)
	var fresh *Snapshot

	err := c.call(func() {
		e := c.ensureEntry(key)
		if e.inflight != nil {
			e.inflight.waiters = append(e.inflight.waiters, waiter)
			c.metrics.dedupTotal.Inc()
			return
		}
		if !e.staleFor(c.now(), c.stale) {
			snap := e.snapshot()
			fresh = &snap
			return
		}
		c.startFetch(e, false)
		e.inflight.waiters = append(e.inflight.waiters, waiter)
	})
	if err != nil {
		return Snapshot{}, err
	}
	if fresh != nil {
		return *fresh, nil
	}

	select {
	case snap := <-waiter:
		if snap.Status == StatusError {
			return snap, snap.Err
		}
		return snap, nil
	case <-ctx.Done():
		c.post(func() { c.detachWaiter(key, waiter) })
		return Snapshot{}, ctx.Err()
	case <-c.stopped:
		return Snapshot{}, apierr.ErrCacheClosed
	}
}

// SetActive tells the cache whether the user is looking. Interval refetches
// only fire while active; becoming active refetches stale subscribed entries.
func (c *Cache) SetActive(active bool) error {
	return c.call(func() {
		was := c.active
		c.active = active
		if !active || was {
			return
		}
		now := c.now()
		for _, e := range c.entries {
			if e.inflight != nil {
				continue
			}
			for sub := range e.subs {
				if !sub.opts.Disabled && e.staleFor(now, sub.staleTime(c.stale)) {
					c.startFetch(e, false)
					break
				}
			}
		}
	})
}

// Active reports the current focus state.
func (c *Cache) Active() bool {
	var active bool
	_ = c.call(func() { active = c.active })
	return active
}

// --- loop-only methods below ---

func (c *Cache) ensureEntry(key querykey.Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = newEntry(key)
		c.entries[key] = e
		c.metrics.entries.Inc()
	}
	return e
}

func (c *Cache) subscribe(sub *Subscription) {
	e := c.ensureEntry(sub.key)
	c.cancelGC(e)
	e.subs[sub] = struct{}{}

	if !sub.opts.Disabled && sub.opts.RefetchInterval > 0 {
		c.retainInterval(e, sub.opts.RefetchInterval)
	}

	if !sub.opts.Disabled && e.inflight == nil && e.staleFor(c.now(), sub.staleTime(c.stale)) {
		c.startFetch(e, false)
		return // startFetch notified everyone
	}
	sub.push(e.snapshot())
}

func (c *Cache) unsubscribe(sub *Subscription) {
	e, ok := c.entries[sub.key]
	if !ok {
		return
	}
	if _, ok := e.subs[sub]; !ok {
		return
	}
	delete(e.subs, sub)

	if !sub.opts.Disabled && sub.opts.RefetchInterval > 0 {
		c.releaseInterval(e, sub.opts.RefetchInterval)
	}

	if len(e.subs) > 0 {
		return
	}
	if e.inflight != nil && len(e.inflight.waiters) == 0 {
		c.abort(e)
	}
	c.scheduleGC(e)
}

func (c *Cache) invalidate(e *entry) {
	e.invalidated = true
	if e.inflight != nil && e.inflight.invalidation {
		return
	}
	if !e.hasEnabled() && e.inflight == nil {
		return
	}
	c.startFetch(e, true)
}

// startFetch begins a fetch run. An existing run is superseded: its request
// is cancelled, its waiters move to the new run, and its result is dropped.
func (c *Cache) startFetch(e *entry, invalidation bool) {
	c.seq++
	ctx, cancel := context.WithCancel(c.ctx)
	run := &fetchRun{
		seq:          c.seq,
		cancel:       cancel,
		invalidation: invalidation,
		started:      c.now(),
	}

	if prev := e.inflight; prev != nil {
		prev.cancel()
		run.waiters = prev.waiters
	} else {
		e.prevStatus = e.status
	}
	e.inflight = run
	e.status = StatusLoading
	e.failureCount = 0
	e.notify()

	key, seq := e.key, run.seq
	c.logger.Debug("fetch started", "key", key.String(), "seq", seq)

	go func() {
		policy := retry.Policy{
			ShouldRetry: apierr.IsTransient,
			OnRetry: func(attempt int, wait time.Duration, err error) {
				c.post(func() { c.recordRetry(key, seq, attempt, wait, err) })
			},
		}
		data, attempts, err := retry.DoWithResult(ctx, c.retry, policy, func(ctx context.Context) (json.RawMessage, error) {
			data, err := c.fetcher.Fetch(ctx, key)
			if err != nil {
				return nil, apierr.From(err)
			}
			return data, nil
		})
		c.post(func() { c.complete(key, seq, data, attempts, err) })
	}()
}

func (c *Cache) recordRetry(key querykey.Key, seq uint64, attempt int, wait time.Duration, err error) {
	e, ok := c.entries[key]
	if !ok || e.inflight == nil || e.inflight.seq != seq {
		return
	}
	e.failureCount = attempt
	c.metrics.retriesTotal.WithLabelValues(key.Endpoint()).Inc()
	c.logger.Warn("fetch failed, retrying",
		"key", key.String(),
		"attempt", attempt,
		"wait_ms", wait.Milliseconds(),
		"error", err,
	)
	e.notify()
}

func (c *Cache) complete(key querykey.Key, seq uint64, data json.RawMessage, attempts int, err error) {
	e, ok := c.entries[key]
	if !ok || e.inflight == nil || e.inflight.seq != seq {
		c.metrics.discardedTotal.Inc()
		c.logger.Debug("fetch result discarded", "key", key.String(), "seq", seq)
		return
	}
	run := e.inflight
	e.inflight = nil
	run.cancel()
	c.metrics.fetchDuration.WithLabelValues(key.Endpoint()).Observe(c.now().Sub(run.started).Seconds())

	if err == nil {
		e.status = StatusSuccess
		e.data = data
		e.err = nil
		e.lastFetchedAt = c.now()
		e.invalidated = false
		e.failureCount = 0
		c.metrics.fetchesTotal.WithLabelValues(key.Endpoint(), "success").Inc()
	} else {
		// Last good data stays visible next to the error.
		e.status = StatusError
		e.err = err
		e.failureCount = attempts
		c.metrics.fetchesTotal.WithLabelValues(key.Endpoint(), "error").Inc()
		c.logger.Debug("fetch failed", "key", key.String(), "attempt", attempts, "error", err)
	}

	snap := e.snapshot()
	for _, w := range run.waiters {
		w <- snap
	}
	e.notify()

	if len(e.subs) == 0 {
		c.scheduleGC(e)
	}
}

// abort cancels the in-flight run and restores the status it interrupted.
func (c *Cache) abort(e *entry) {
	e.inflight.cancel()
	e.inflight = nil
	e.status = e.prevStatus
}

func (c *Cache) detachWaiter(key querykey.Key, waiter chan Snapshot) {
	e, ok := c.entries[key]
	if !ok || e.inflight == nil {
		return
	}
	waiters := e.inflight.waiters[:0]
	for _, w := range e.inflight.waiters {
		if w != waiter {
			waiters = append(waiters, w)
		}
	}
	e.inflight.waiters = waiters

	if len(waiters) == 0 && len(e.subs) == 0 {
		c.abort(e)
		c.scheduleGC(e)
	}
}

func (c *Cache) scheduleGC(e *entry) {
	if e.inflight != nil {
		return // complete reschedules
	}
	c.cancelGC(e)
	if c.gcDelay < 0 {
		c.dispose(e)
		return
	}
	gen, key := e.gcGen, e.key
	e.gcTimer = time.AfterFunc(c.gcDelay, func() {
		c.post(func() { c.collect(key, gen) })
	})
}

func (c *Cache) cancelGC(e *entry) {
	e.gcGen++
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
}

func (c *Cache) collect(key querykey.Key, gen uint64) {
	e, ok := c.entries[key]
	if !ok || e.gcGen != gen || len(e.subs) > 0 || e.inflight != nil {
		return
	}
	c.dispose(e)
}

func (c *Cache) dispose(e *entry) {
	delete(c.entries, e.key)
	c.metrics.entries.Dec()
	c.logger.Debug("entry disposed", "key", e.key.String())
}

func (c *Cache) retainInterval(e *entry, interval time.Duration) {
	if t, ok := e.intervals[interval]; ok {
		t.refs++
		return
	}
	t := &intervalTimer{refs: 1, stop: make(chan struct{})}
	e.intervals[interval] = t

	key := e.key
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.post(func() { c.tick(key, interval, t) })
			case <-t.stop:
				return
			}
		}
	}()
}

func (c *Cache) releaseInterval(e *entry, interval time.Duration) {
	t, ok := e.intervals[interval]
	if !ok {
		return
	}
	t.refs--
	if t.refs > 0 {
		return
	}
	close(t.stop)
	delete(e.intervals, interval)
}

func (c *Cache) tick(key querykey.Key, interval time.Duration, t *intervalTimer) {
	e, ok := c.entries[key]
	if !ok || e.intervals[interval] != t {
		return
	}
	if !c.active || e.inflight != nil {
		return
	}
	c.startFetch(e, false)
}
