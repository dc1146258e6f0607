// Package callback is the surface the backend's OAuth flow redirects to.
// Its only job is to persist the ?token= it is handed.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"clinician-console/internal/credential"
)

type Handler struct {
	creds    *credential.Store
	received chan struct{}
}

func New(creds *credential.Store) *Handler {
	return &Handler{creds: creds, received: make(chan struct{}, 1)}
}

// Received fires once per token persisted.
func (h *Handler) Received() <-chan struct{} { return h.received }

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer, chimw.NoCache)

	r.Get("/", h.landing)
	r.Get("/auth-handler", h.receive)
	r.Get("/oauth2/redirect", h.receive)
	r.Get("/dashboard", h.signedIn)
	return r
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	// memory is updated even if persisting fails, so this run is signed in
	if err := h.creds.Set(r.Context(), tok); err != nil {
		log.Printf("callback: %v", err)
	}
	log.Println("callback: credential received")
	select {
	case h.received <- struct{}{}:
	default:
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (h *Handler) landing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, ok := h.creds.Get(); ok {
		fmt.Fprintln(w, "signed in")
		return
	}
	fmt.Fprintln(w, "not signed in")
}

func (h *Handler) signedIn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Authenticated. You can close this tab and return to the console.")
}

// Wait serves on addr until one token arrives or ctx ends.
func (h *Handler) Wait(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("callback listen: %w", err)
	}
	srv := &http.Server{Handler: h.Routes(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Printf("callback on %s", lis.Addr())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-h.received:
		err = nil
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errc:
	}

	// let the browser get its redirect before closing
	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Shutdown(sctx)
	return err
}
