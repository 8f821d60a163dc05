package cache

import (
	"context"
	"sync"
	"time"
)

// FetchFunc loads the value for a key from upstream.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Recorder receives cache activity notifications. Implemented by the
// metrics package; a nil-safe no-op is used when unset.
type Recorder interface {
	Hit()
	Miss()
	Coalesced()
	FetchFailed()
}

type noopRecorder struct{}

func (noopRecorder) Hit()         {}
func (noopRecorder) Miss()        {}
func (noopRecorder) Coalesced()   {}
func (noopRecorder) FetchFailed() {}

type entry[V any] struct {
	value         V
	lastRefreshed time.Time
}

// call is one in-flight upstream fetch shared by every waiter for its key.
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// CachedValue serves values from an in-memory store keyed by K, refetching
// through fetch when an entry is absent or stale per the refresh control.
// Concurrent gets for the same key while a fetch is outstanding attach to
// that fetch; at most one upstream fetch runs per key at any time.
//
// A stale entry is treated exactly like an absent one: callers wait for the
// fresh fetch rather than being served the stale value. Fetch errors are
// surfaced to every attached waiter and never cached, so the next get
// retries.
type CachedValue[K comparable, V any] struct {
	fetch    FetchFunc[K, V]
	control  RefreshControl
	clock    Clock
	recorder Recorder

	mu       sync.Mutex
	entries  map[K]entry[V]
	inflight map[K]*call[V]
}

// Option configures a CachedValue.
type Option func(*options)

type options struct {
	clock    Clock
	recorder Recorder
}

// WithClock overrides the system clock, for tests.
func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithRecorder attaches a cache activity recorder.
func WithRecorder(recorder Recorder) Option {
	return func(o *options) { o.recorder = recorder }
}

// NewCachedValue creates a coordinator around fetch with the given refresh
// control.
func NewCachedValue[K comparable, V any](fetch FetchFunc[K, V], control RefreshControl, opts ...Option) *CachedValue[K, V] {
	o := options{clock: SystemClock(), recorder: noopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &CachedValue[K, V]{
		fetch:    fetch,
		control:  control,
		clock:    o.clock,
		recorder: o.recorder,
		entries:  make(map[K]entry[V]),
		inflight: make(map[K]*call[V]),
	}
}

// Get returns the value for key, serving the cached entry when fresh and
// otherwise fetching. If a fetch for key is already in flight the caller
// attaches to it and shares its outcome. A caller whose context expires
// stops waiting but does not cancel the shared fetch; other waiters still
// resolve.
func (c *CachedValue[K, V]) Get(ctx context.Context, key K) (V, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok && !c.control.ShouldRefresh(e.lastRefreshed, c.clock.Now()) {
		c.mu.Unlock()
		c.recorder.Hit()
		return e.value, nil
	}

	if inflight, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		c.recorder.Coalesced()
		return c.wait(ctx, inflight)
	}

	fetched := &call[V]{done: make(chan struct{})}
	c.inflight[key] = fetched
	c.mu.Unlock()
	c.recorder.Miss()

	// The fetch belongs to the key, not to the caller that happened to
	// trigger it, so it runs on a context detached from the caller's
	// cancellation.
	go c.run(context.WithoutCancel(ctx), key, fetched)

	return c.wait(ctx, fetched)
}

func (c *CachedValue[K, V]) run(ctx context.Context, key K, fetched *call[V]) {
	value, err := c.fetch(ctx, key)

	c.mu.Lock()
	if err == nil {
		c.entries[key] = entry[V]{value: value, lastRefreshed: c.clock.Now()}
	} else {
		c.recorder.FetchFailed()
	}
	delete(c.inflight, key)
	fetched.value, fetched.err = value, err
	close(fetched.done)
	c.mu.Unlock()
}

func (c *CachedValue[K, V]) wait(ctx context.Context, fetched *call[V]) (V, error) {
	select {
	case <-fetched.done:
		return fetched.value, fetched.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Invalidate removes the cached entry for key unconditionally. The next get
// refetches regardless of the refresh control. An in-flight fetch is not
// interrupted; its waiters still share its outcome.
func (c *CachedValue[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll removes every cached entry.
func (c *CachedValue[K, V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Peek returns the cached value for key without fetching, regardless of
// staleness. Intended for diagnostics.
func (c *CachedValue[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.value, ok
}
