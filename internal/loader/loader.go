// Package loader provides request-scoped batched loading: many fine-grained
// lookups issued while one response is being built coalesce into a single
// bulk fetch. A fresh loader must be constructed per inbound request; sharing
// one across requests would leak cached rows between callers.
package loader

import (
	"context"
	"sync"
	"time"
)

// FetchFunc bulk-resolves a deduplicated key set. Keys missing from the
// returned map resolve to the value type's zero value, not an error.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

const (
	defaultWait     = 2 * time.Millisecond
	defaultMaxBatch = 100
)

// Batched coalesces Load calls arriving within one collection window into a
// single FetchFunc invocation and caches results for the loader's lifetime.
type Batched[K comparable, V any] struct {
	fetch    FetchFunc[K, V]
	wait     time.Duration
	maxBatch int

	mu      sync.Mutex
	cache   map[K]*thunk[V]
	pending *batch[K, V]
}

type thunk[V any] struct {
	done chan struct{}
	val  V
	err  error
}

type batch[K comparable, V any] struct {
	ctx    context.Context
	keys   []K
	thunks map[K]*thunk[V]
	closed bool
}

type Option func(*options)

type options struct {
	wait     time.Duration
	maxBatch int
}

// WithWait sets the collection window opened by the first Load of a batch.
func WithWait(d time.Duration) Option {
	return func(o *options) { o.wait = d }
}

// WithMaxBatch caps batch size; a full batch dispatches immediately.
func WithMaxBatch(n int) Option {
	return func(o *options) { o.maxBatch = n }
}

func New[K comparable, V any](fetch FetchFunc[K, V], opts ...Option) *Batched[K, V] {
	o := options{wait: defaultWait, maxBatch: defaultMaxBatch}
	for _, opt := range opts {
		opt(&o)
	}
	return &Batched[K, V]{
		fetch:    fetch,
		wait:     o.wait,
		maxBatch: o.maxBatch,
		cache:    make(map[K]*thunk[V]),
	}
}

// Load blocks until the batch containing key has been fetched and returns
// key's value, or the zero value when the store has no such row. A failed
// bulk fetch fails every Load in that batch with the same error.
func (l *Batched[K, V]) Load(ctx context.Context, key K) (V, error) {
	l.mu.Lock()

	if t, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return t.wait(ctx)
	}

	t := &thunk[V]{done: make(chan struct{})}
	l.cache[key] = t

	if l.pending == nil {
		b := &batch[K, V]{ctx: ctx, thunks: make(map[K]*thunk[V])}
		l.pending = b
		time.AfterFunc(l.wait, func() { l.dispatch(b) })
	}
	b := l.pending
	b.keys = append(b.keys, key)
	b.thunks[key] = t

	full := len(b.keys) >= l.maxBatch
	l.mu.Unlock()

	if full {
		l.dispatch(b)
	}
	return t.wait(ctx)
}

// LoadAll loads every key concurrently within one window and returns values
// in key order.
func (l *Batched[K, V]) LoadAll(ctx context.Context, keys []K) ([]V, error) {
	vals := make([]V, len(keys))
	errs := make([]error, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		i, key := i, key
		wg.Add(1)
		go func() {
			defer wg.Done()
			vals[i], errs[i] = l.Load(ctx, key)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return vals, nil
}

// Prime seeds the cache with an already-known value, e.g. a row fetched by
// the surrounding query. It does nothing if the key is already cached.
func (l *Batched[K, V]) Prime(key K, val V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; ok {
		return
	}
	t := &thunk[V]{done: make(chan struct{}), val: val}
	close(t.done)
	l.cache[key] = t
}

// dispatch runs the batch's bulk fetch exactly once; both the window timer
// and a full batch race to call it.
func (l *Batched[K, V]) dispatch(b *batch[K, V]) {
	l.mu.Lock()
	if b.closed {
		l.mu.Unlock()
		return
	}
	b.closed = true
	if l.pending == b {
		l.pending = nil
	}
	keys := b.keys
	l.mu.Unlock()

	res, err := l.fetch(b.ctx, keys)
	for _, key := range keys {
		t := b.thunks[key]
		if err != nil {
			t.err = err
		} else {
			t.val = res[key]
		}
		close(t.done)
	}
}

func (t *thunk[V]) wait(ctx context.Context) (V, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
