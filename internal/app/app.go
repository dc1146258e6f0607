// Package app owns the one running console: a single credential, cache and
// session shared by every component, passed explicitly rather than held in
// package globals.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"clinician-console/internal/api"
	"clinician-console/internal/appointments"
	"clinician-console/internal/cache"
	"clinician-console/internal/callback"
	"clinician-console/internal/config"
	"clinician-console/internal/credential"
	"clinician-console/internal/middleware"
	"clinician-console/internal/notice"
	"clinician-console/internal/onboarding"
	"clinician-console/internal/schedule"
	"clinician-console/internal/session"
	"clinician-console/internal/store"
)

// Deps are the presentational collaborators plus an optional transport
// override for tests.
type Deps struct {
	Notifier  notice.Notifier
	Navigator onboarding.Navigator
	Transport http.RoundTripper
	Backend   credential.Backend
}

type Console struct {
	Config       *config.Config
	Creds        *credential.Store
	Cache        *cache.Cache
	API          *api.Client
	Session      *session.Resolver
	Gate         *onboarding.Gate
	Appointments *appointments.Manager
	Schedule     *schedule.Editor
	Callback     *callback.Handler

	closers []func()
}

func Open(ctx context.Context, cfg *config.Config, deps Deps) (*Console, error) {
	c := &Console{Config: cfg}

	backend := deps.Backend
	if backend == nil {
		var err error
		if backend, err = c.openBackend(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	creds, err := credential.Open(ctx, backend)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Creds = creds
	c.Cache = cache.New()

	opts := []api.Option{
		api.WithRateLimiter(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)),
		api.WithTimeout(cfg.HTTPTimeout),
		api.OnUnauthorized(func(ctx context.Context, err error) {
			if cerr := creds.Clear(ctx); cerr != nil {
				log.Printf("console: %v", cerr)
			}
		}),
	}
	if deps.Transport != nil {
		opts = append(opts, api.WithTransport(deps.Transport))
	}
	c.API = api.New(cfg.BackendURL, creds.TokenSource(), opts...)

	c.Session = session.New(creds, c.API, c.Cache)
	c.Gate = onboarding.New(deps.Notifier, deps.Navigator, cfg.RedirectDelay)
	c.Appointments = appointments.New(c.API, c.Cache, func() bool {
		return c.Session.State().IsAuthenticated
	}, deps.Notifier)
	c.Schedule = schedule.New(c.API, c.Cache, c.Gate, deps.Notifier)
	c.Callback = callback.New(creds)

	// the gate is a derivation of session state: re-run it on every change
	c.closers = append(c.closers,
		// the list belongs to whoever held the previous credential
		creds.Subscribe(func(string) { c.Cache.Remove(cache.Appointments) }),
		c.Session.OnChange(func(st session.State) { c.Gate.Evaluate(gateInput(st)) }),
		cache.Observe(c.Cache, cache.Profile, c.Session.Fetcher()),
		c.Gate.Close,
		c.Session.Close,
	)
	return c, nil
}

// Refresh resolves the session, runs the gate and, when signed in, loads the
// profile into the schedule editor.
func (c *Console) Refresh(ctx context.Context) (session.State, onboarding.Action) {
	st := c.Session.Resolve(ctx)
	a := c.Gate.Evaluate(gateInput(st))
	if st.IsAuthenticated {
		c.Schedule.Load(st.Profile)
	}
	return st, a
}

// SignIn adopts a token delivered out of band.
func (c *Console) SignIn(ctx context.Context, token string) error {
	return c.Creds.Set(ctx, token)
}

// Login serves the callback surface until the backend delivers a token.
func (c *Console) Login(ctx context.Context) error {
	return c.Callback.Wait(ctx, c.Config.CallbackAddr)
}

func (c *Console) Logout(ctx context.Context) error {
	return c.Session.Logout(ctx)
}

func (c *Console) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Console) openBackend(ctx context.Context) (credential.Backend, error) {
	cfg := c.Config
	switch cfg.CredentialStore {
	case "memory":
		return &credential.Memory{}, nil
	case "redis":
		rdb, err := store.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { rdb.Close() })
		return store.NewRedis(rdb, "clinician-console"), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		st := store.New(pool)
		if err := st.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return st, nil
	default:
		path := cfg.CredentialFile
		if path == "" {
			var err error
			if path, err = store.DefaultFilePath(); err != nil {
				return nil, err
			}
		}
		return store.NewFile(path), nil
	}
}

func gateInput(st session.State) onboarding.Input {
	return onboarding.Input{
		IsLoading:       st.IsLoading,
		IsAuthenticated: st.IsAuthenticated,
		Profile:         st.Profile,
	}
}
