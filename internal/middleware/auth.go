// Package middleware holds the client-side http.RoundTripper chain every
// backend call goes through.
package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const RequestIDHeader = "X-Request-ID"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Auth sets Authorization: Bearer <token> from src on every request. src is
// consulted per request; it must not cache.
func Auth(src oauth2.TokenSource, base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{Source: src, Base: base}
}

// RequestID tags each request so backend logs can be matched to a console action.
func RequestID(base http.RoundTripper) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		r = r.Clone(r.Context())
		if r.Header.Get(RequestIDHeader) == "" {
			r.Header.Set(RequestIDHeader, uuid.New().String())
		}
		return base.RoundTrip(r)
	})
}
