// Package credential holds the single bearer token the console presents to
// the backend. Validity is never judged locally; the backend's 401/403 is
// the only signal that a token is dead.
package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// Key is the one durable key the token is persisted under.
const Key = "jwt"

var (
	ErrNotFound     = errors.New("credential not found")
	ErrNoCredential = errors.New("no authentication token")
)

// Backend is durable storage scoped to Key.
type Backend interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

type Store struct {
	mu      sync.RWMutex
	backend Backend
	token   string
	subs    map[int]func(token string)
	nextSub int
}

// Open loads any previously persisted token.
func Open(ctx context.Context, b Backend) (*Store, error) {
	tok, err := b.Load(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return &Store{backend: b, token: tok, subs: make(map[int]func(string))}, nil
}

func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set overwrites unconditionally. The in-memory value changes even when the
// durable write fails; the error is returned so the caller can report it.
func (s *Store) Set(ctx context.Context, token string) error {
	s.swap(token)
	if err := s.backend.Save(ctx, token); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// Clear drops the token. Like Set, memory is cleared first so a dead session
// stays dead even if storage is unreachable.
func (s *Store) Clear(ctx context.Context) error {
	s.swap("")
	if err := s.backend.Delete(ctx); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Subscribe registers fn to run whenever Set or Clear changes the token.
// The returned func removes it.
func (s *Store) Subscribe(fn func(token string)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) swap(token string) {
	s.mu.Lock()
	if s.token == token {
		s.mu.Unlock()
		return
	}
	s.token = token
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(token)
	}
}

// TokenSource exposes the live token to oauth2.Transport. It reads the store
// on every call, so a Clear takes effect on the very next request.
func (s *Store) TokenSource() oauth2.TokenSource {
	return tokenSource{s}
}

type tokenSource struct{ s *Store }

func (t tokenSource) Token() (*oauth2.Token, error) {
	tok, ok := t.s.Get()
	if !ok {
		return nil, ErrNoCredential
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// Memory keeps the token for the life of the process only.
type Memory struct {
	mu    sync.Mutex
	token string
}

func (m *Memory) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNotFound
	}
	return m.token, nil
}

func (m *Memory) Save(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
