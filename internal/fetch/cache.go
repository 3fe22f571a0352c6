package fetch

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/growth-observations/internal/store"
)

// Fetcher loads the value for a key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// State is what a caller sees for a key at a point in time.
type State[T any] struct {
	Data      T
	HasData   bool  // Data holds a fetched value (possibly stale)
	Err       error // error of the most recent settled fetch, if it failed
	IsLoading bool  // a fetch for the key is in flight
}

// Options configures a Cache.
type Options struct {
	// StaleAfter is how long a successful response is served without revalidation.
	// Zero keeps responses fresh until they are invalidated or evicted.
	StaleAfter time.Duration
	// ErrorRetryAfter is how long a failed fetch is reported before the next
	// request retries it. Zero retries on the next request.
	ErrorRetryAfter time.Duration
	// FetchTimeout bounds a single fetch. Zero means no bound.
	FetchTimeout time.Duration

	// Retention of settled responses.
	MaxEntries int
	Retention  time.Duration

	Metrics *Metrics
}

type entry[T any] struct {
	data      T
	hasData   bool
	err       error
	settledAt time.Time
	fetcher   Fetcher[T]
}

func (e entry[T]) state(loading bool) State[T] {
	return State[T]{
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		IsLoading: loading,
	}
}

// Cache deduplicates and caches keyed fetches. At most one fetch per key is in
// flight at a time; callers with the same key share its result.
type Cache[T any] struct {
	opts  Options
	group singleflight.Group
	store *store.MemoryStore[entry[T]]

	mu       sync.Mutex
	inflight map[string]bool

	now func() time.Time
}

// NewCache creates a Cache.
func NewCache[T any](opts Options) *Cache[T] {
	return &Cache[T]{
		opts:     opts,
		store:    store.NewMemoryStore[entry[T]](opts.MaxEntries, opts.Retention),
		inflight: make(map[string]bool),
		now:      time.Now,
	}
}

// Request returns the current state for key without blocking. A missing or
// stale response starts a background fetch and the state reports IsLoading.
// NoKey() returns the zero State and never calls fetcher.
func (c *Cache[T]) Request(key Key, fetcher Fetcher[T]) State[T] {
	k, ok := key.Value()
	if !ok {
		return State[T]{}
	}

	e, _, err := c.store.Get(k)
	if err != nil {
		c.opts.Metrics.miss()
		c.start(k, fetcher, false)
		return State[T]{IsLoading: true}
	}
	c.opts.Metrics.hit()

	loading := c.isInflight(k)
	if !loading && c.stale(e) {
		c.start(k, fetcher, false)
		loading = true
	}
	return e.state(loading)
}

// Await is like Request but blocks until a missing, stale or in-flight fetch
// settles. If ctx ends first, the non-blocking state is returned.
func (c *Cache[T]) Await(ctx context.Context, key Key, fetcher Fetcher[T]) State[T] {
	k, ok := key.Value()
	if !ok {
		return State[T]{}
	}

	e, _, err := c.store.Get(k)
	if err == nil {
		c.opts.Metrics.hit()
		if !c.isInflight(k) && !c.stale(e) {
			return e.state(false)
		}
	} else {
		c.opts.Metrics.miss()
	}

	ch := c.start(k, fetcher, false)
	select {
	case <-ctx.Done():
		if e, _, err := c.store.Get(k); err == nil {
			return e.state(true)
		}
		return State[T]{IsLoading: true}
	case res := <-ch:
		if e, _, err := c.store.Get(k); err == nil {
			return e.state(false)
		}
		// Evicted right after settling; answer from the fetch itself.
		st := State[T]{Err: res.Err}
		if res.Err == nil {
			st.Data, st.HasData = res.Val.(T)
		}
		return st
	}
}

// Invalidate drops the stored response for key. The next request fetches again.
func (c *Cache[T]) Invalidate(key Key) {
	if k, ok := key.Value(); ok {
		c.store.Delete(k)
	}
}

// Revalidate refetches every stored key and waits for the fetches to settle or
// ctx to end. It returns the number of keys revalidated.
func (c *Cache[T]) Revalidate(ctx context.Context) int {
	var (
		wg sync.WaitGroup
		n  int
	)

	for _, k := range c.store.Keys() {
		e, _, err := c.store.Get(k)
		if err != nil || e.fetcher == nil {
			continue
		}

		ch := c.start(k, e.fetcher, true)
		n++

		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ch:
			case <-ctx.Done():
			}
		}()
	}

	wg.Wait()
	return n
}

// Len returns the number of stored responses.
func (c *Cache[T]) Len() int {
	return c.store.Len()
}

// start joins the in-flight fetch for key or starts a new one. Unless force is
// set, a fetch that finds a fresh response (settled after the caller looked)
// returns it instead of fetching again.
func (c *Cache[T]) start(key string, fetcher Fetcher[T], force bool) <-chan singleflight.Result {
	return c.group.DoChan(key, func() (interface{}, error) {
		if !force {
			if e, _, err := c.store.Get(key); err == nil && !c.stale(e) {
				return e.data, e.err
			}
		}

		c.setInflight(key, true)
		defer c.setInflight(key, false)

		// Fetches are shared between callers, so no single caller's context bounds them.
		var (
			ctx    context.Context
			cancel context.CancelFunc
		)
		if c.opts.FetchTimeout > 0 {
			ctx, cancel = context.WithTimeout(context.Background(), c.opts.FetchTimeout)
		} else {
			ctx, cancel = context.WithCancel(context.Background())
		}
		defer cancel()

		c.opts.Metrics.fetchStarted()
		data, err := fetcher(ctx)
		c.opts.Metrics.fetchSettled(err)
		if err != nil {
			log.Printf("DEBUG: fetch for %s failed: %v", key, err)
		}

		c.settle(key, fetcher, data, err)
		return data, err
	})
}

// settle stores the outcome of a fetch. A failed fetch keeps the previous data.
func (c *Cache[T]) settle(key string, fetcher Fetcher[T], data T, err error) {
	e := entry[T]{
		err:       err,
		settledAt: c.now(),
		fetcher:   fetcher,
	}
	if err == nil {
		e.data, e.hasData = data, true
	} else if prev, _, lookupErr := c.store.Get(key); lookupErr == nil {
		e.data, e.hasData = prev.data, prev.hasData
	}
	c.store.Save(key, e)
}

func (c *Cache[T]) stale(e entry[T]) bool {
	age := c.now().Sub(e.settledAt)
	if e.err != nil {
		return age >= c.opts.ErrorRetryAfter
	}
	return c.opts.StaleAfter > 0 && age >= c.opts.StaleAfter
}

func (c *Cache[T]) isInflight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inflight[key]
}

func (c *Cache[T]) setInflight(key string, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v {
		c.inflight[key] = true
		return
	}
	delete(c.inflight, key)
}
