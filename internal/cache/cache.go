// Package cache holds server-derived resources under logical keys with
// explicit, per-key invalidation.
//
// A fresh entry is served without a fetch. A missing or invalidated entry is
// fetched on the next enabled read, and concurrent reads of one key share a
// single fetch. Keys are independent: invalidating one never touches another.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Key string

const (
	Profile      Key = "profile"
	Appointments Key = "appointments"
)

type entry struct {
	data     any
	has      bool
	stale    bool
	err      error
	updated  time.Time
	fetching int

	gen    uint64 // generation a fetch must match to land fresh
	landed uint64 // generation of the data currently held
	floor  uint64 // fetches started below this are discarded (Remove)
}

type Cache struct {
	mu      sync.Mutex
	gen     uint64
	entries map[Key]*entry
	group   singleflight.Group

	nextID    int
	subs      map[Key]map[int]func()
	observers map[Key]map[int]func(context.Context) (any, error)
}

func New() *Cache {
	return &Cache{
		entries:   make(map[Key]*entry),
		subs:      make(map[Key]map[int]func()),
		observers: make(map[Key]map[int]func(context.Context) (any, error)),
	}
}

// Read returns the value under key, fetching it when absent or stale. With
// enabled false nothing is fetched and ok is false. On a failed fetch the
// error is returned and any previous value is kept.
func Read[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error), enabled bool) (v T, ok bool, err error) {
	if !enabled {
		return v, false, nil
	}
	raw, has, err := c.read(ctx, key, func(ctx context.Context) (any, error) { return fetch(ctx) })
	if !has {
		return v, false, err
	}
	v, ok = raw.(T)
	return v, ok, err
}

// Peek returns whatever is held, fresh or stale, without fetching.
func Peek[T any](c *Cache, key Key) (v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[key]
	if !found || !e.has {
		return v, false
	}
	v, ok = e.data.(T)
	return v, ok
}

// Observe registers an active consumer of key. While at least one observer
// is registered, Invalidate triggers a background refetch using the most
// recently registered fetch func.
func Observe[T any](c *Cache, key Key, fetch func(context.Context) (T, error)) (stop func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.observers[key] == nil {
		c.observers[key] = make(map[int]func(context.Context) (any, error))
	}
	c.observers[key][id] = func(ctx context.Context) (any, error) { return fetch(ctx) }
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers[key], id)
		c.mu.Unlock()
	}
}

// Err is the error of the latest fetch of key, cleared by a later success.
func (c *Cache) Err(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.err
	}
	return nil
}

// Fetching reports whether a fetch of key is in flight.
func (c *Cache) Fetching(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.fetching > 0
}

// Fresh reports whether key holds data that has not been invalidated.
func (c *Cache) Fresh(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.has && !e.stale
}

// Invalidate marks each key stale. Held data stays readable through Peek
// until the refetch lands.
func (c *Cache) Invalidate(keys ...Key) {
	for _, key := range keys {
		c.mu.Lock()
		e := c.entry(key)
		c.gen++
		e.gen = c.gen
		e.stale = true
		fetch := c.observer(key)
		c.mu.Unlock()

		c.notify(key)
		if fetch != nil {
			go c.read(context.Background(), key, fetch)
		}
	}
}

// Remove drops key entirely. Fetches already in flight will not repopulate it.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	e := c.entry(key)
	c.gen++
	e.gen, e.floor = c.gen, c.gen
	e.data, e.has, e.stale, e.err = nil, false, false, nil
	c.mu.Unlock()
	c.notify(key)
}

// Subscribe runs fn after every change to key: data landing, a fetch
// failing, invalidation or removal.
func (c *Cache) Subscribe(key Key, fn func()) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.subs[key] == nil {
		c.subs[key] = make(map[int]func())
	}
	c.subs[key][id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs[key], id)
		c.mu.Unlock()
	}
}

func (c *Cache) read(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, bool, error) {
	c.mu.Lock()
	e := c.entry(key)
	if e.has && !e.stale {
		d := e.data
		c.mu.Unlock()
		return d, true, nil
	}
	gen := e.gen
	c.mu.Unlock()

	// The flight outlives any single waiter, so it runs detached from the
	// caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(key)+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		return c.fetch(flightCtx, key, gen, fetch)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			d, has := c.held(key)
			return d, has, r.Err
		}
		return r.Val, true, nil
	case <-ctx.Done():
		d, has := c.held(key)
		return d, has, ctx.Err()
	}
}

func (c *Cache) fetch(ctx context.Context, key Key, gen uint64, fetch func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	c.entry(key).fetching++
	c.mu.Unlock()
	c.notify(key)

	v, err := fetch(ctx)

	c.mu.Lock()
	e := c.entry(key)
	e.fetching--
	switch {
	case gen < e.floor:
		// removed while in flight
	case err != nil:
		e.err = err
	case gen >= e.landed:
		e.data, e.has, e.err = v, true, nil
		e.landed = gen
		e.updated = time.Now()
		e.stale = e.gen != gen
	}
	c.mu.Unlock()
	c.notify(key)
	return v, err
}

func (c *Cache) held(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	return e.data, e.has
}

// entry must be called with mu held.
func (c *Cache) entry(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// observer must be called with mu held.
func (c *Cache) observer(key Key) func(context.Context) (any, error) {
	var (
		best   func(context.Context) (any, error)
		bestID = -1
	)
	for id, fn := range c.observers[key] {
		if id > bestID {
			best, bestID = fn, id
		}
	}
	return best
}

func (c *Cache) notify(key Key) {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.subs[key]))
	for _, fn := range c.subs[key] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
