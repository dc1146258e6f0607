// Package session derives who is signed in from the held credential.
package session

import (
	"context"
	"log"
	"sync"

	"clinician-console/internal/api"
	"clinician-console/internal/cache"
	"clinician-console/internal/credential"
	"clinician-console/internal/model"
)

type Status int

const (
	Unauthenticated Status = iota
	Loading
	Authenticated
	Error
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Error:
		return "error"
	}
	return "unknown"
}

// State is recomputed on every call; it is never stored.
type State struct {
	Profile         *model.DoctorProfile
	IsLoading       bool
	IsAuthenticated bool
	Err             error
}

func (s State) Status() Status {
	switch {
	case s.IsAuthenticated:
		return Authenticated
	case s.IsLoading:
		return Loading
	case s.Err != nil && !api.EndsSession(s.Err):
		return Error
	}
	return Unauthenticated
}

type ProfileFetcher interface {
	Me(ctx context.Context) (*model.DoctorProfile, error)
}

type Resolver struct {
	creds *credential.Store
	api   ProfileFetcher
	cache *cache.Cache

	mu    sync.Mutex
	err   error
	unsub func()
}

func New(creds *credential.Store, fetcher ProfileFetcher, c *cache.Cache) *Resolver {
	r := &Resolver{creds: creds, api: fetcher, cache: c}
	r.unsub = creds.Subscribe(func(tok string) {
		// a different identity, or none: the held profile is not ours anymore
		c.Remove(cache.Profile)
		if tok != "" {
			r.setErr(nil)
		}
	})
	return r
}

func (r *Resolver) Close() { r.unsub() }

// Resolve fetches the profile if it is not already fresh. Without a
// credential it returns Unauthenticated and makes no call. A failure is
// reported once; nothing here retries.
func (r *Resolver) Resolve(ctx context.Context) State {
	if _, ok := r.creds.Get(); !ok {
		return r.State()
	}
	_, _, err := cache.Read(ctx, r.cache, cache.Profile, r.fetch, true)
	st := r.State()
	if err != nil && st.Err == nil {
		st.Err = err
	}
	return st
}

// State is a snapshot without any network call.
func (r *Resolver) State() State {
	_, hasCred := r.creds.Get()
	p, hasProfile := cache.Peek[*model.DoctorProfile](r.cache, cache.Profile)
	st := State{Err: r.lastErr()}
	if hasProfile {
		st.Profile = p
	}
	st.IsAuthenticated = hasCred && hasProfile && p != nil
	st.IsLoading = hasCred && !hasProfile && r.cache.Fetching(cache.Profile)
	return st
}

// Fetcher exposes the profile fetch so other consumers can observe the key.
func (r *Resolver) Fetcher() func(context.Context) (*model.DoctorProfile, error) {
	return r.fetch
}

// OnChange runs fn with a fresh State whenever the credential or the held
// profile changes.
func (r *Resolver) OnChange(fn func(State)) (unsubscribe func()) {
	a := r.creds.Subscribe(func(string) { fn(r.State()) })
	b := r.cache.Subscribe(cache.Profile, func() { fn(r.State()) })
	return func() { a(); b() }
}

func (r *Resolver) Logout(ctx context.Context) error {
	return r.creds.Clear(ctx)
}

func (r *Resolver) fetch(ctx context.Context) (*model.DoctorProfile, error) {
	p, err := r.api.Me(ctx)
	if err != nil {
		if api.KindOf(err) == api.KindUnauthorized {
			if cerr := r.creds.Clear(ctx); cerr != nil {
				log.Printf("session: %v", cerr)
			}
			log.Printf("session: %v, credential cleared", err)
		}
		r.setErr(err)
		return nil, err
	}
	r.setErr(nil)
	return p, nil
}

func (r *Resolver) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Resolver) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
