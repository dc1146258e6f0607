// Package api is the console's view of the scheduling backend's REST surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"clinician-console/internal/middleware"
	"clinician-console/internal/model"
)

type Client struct {
	base           string
	tokens         oauth2.TokenSource
	http           *http.Client
	onUnauthorized func(context.Context, error)
}

type Option func(*options)

type options struct {
	transport http.RoundTripper
	limiter   *middleware.RateLimiter
	timeout   time.Duration
	onUnauth  func(context.Context, error)
}

// WithTransport replaces the innermost transport (default http.DefaultTransport).
func WithTransport(rt http.RoundTripper) Option { return func(o *options) { o.transport = rt } }

func WithRateLimiter(rl *middleware.RateLimiter) Option { return func(o *options) { o.limiter = rl } }

// WithTimeout bounds each call. Zero, the default, means a hung call hangs.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// OnUnauthorized runs after any 401/403; the console clears its credential there.
func OnUnauthorized(fn func(context.Context, error)) Option {
	return func(o *options) { o.onUnauth = fn }
}

func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	o := options{transport: http.DefaultTransport}
	for _, fn := range opts {
		fn(&o)
	}
	rt := o.transport
	if o.limiter != nil {
		rt = middleware.Throttle(o.limiter, rt)
	}
	rt = middleware.Auth(tokens, middleware.RequestID(rt))
	return &Client{
		base:           strings.TrimRight(baseURL, "/"),
		tokens:         tokens,
		http:           &http.Client{Transport: rt, Timeout: o.timeout},
		onUnauthorized: o.onUnauth,
	}
}

// LoginURL starts the backend's OAuth flow; the backend later delivers the
// token to the callback surface as ?token=.
func (c *Client) LoginURL() string { return c.base + "/api/v1/login" }

// CalendarConnectURL is opened as a full navigation, never fetched.
func (c *Client) CalendarConnectURL() string {
	return c.base + "/api/v1/doctors/me/google-calendar/connect"
}

func (c *Client) Me(ctx context.Context) (*model.DoctorProfile, error) {
	p := &model.DoctorProfile{}
	if err := c.do(ctx, http.MethodGet, "/doctors/me", nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) Appointments(ctx context.Context) ([]model.Appointment, error) {
	var out []model.Appointment
	if err := c.do(ctx, http.MethodGet, "/api/v1/doctors/appointments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Msg: "required"}
	}
	return c.do(ctx, http.MethodDelete, "/api/v1/doctors/appointments/"+url.PathEscape(id), nil, nil)
}

func (c *Client) UpdateSpecialization(ctx context.Context, specialization string) error {
	body := struct {
		Specialization string `json:"specialization"`
	}{specialization}
	return c.do(ctx, http.MethodPut, "/api/v1/doctors/me", body, nil)
}

// ReplaceWorkingHours is all-or-nothing on the backend; resending the same
// slice leaves the same server state.
func (c *Client) ReplaceWorkingHours(ctx context.Context, hours []model.WorkingHour) error {
	if hours == nil {
		hours = []model.WorkingHour{}
	}
	return c.do(ctx, http.MethodPut, "/api/v1/doctors/me/working-hours", hours, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	// no token, no request
	if _, err := c.tokens.Token(); err != nil {
		return ErrNoCredential
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// cleared between the check above and the transport reading it
		if errors.Is(err, ErrNoCredential) {
			return ErrNoCredential
		}
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		se := &StatusError{Code: resp.StatusCode, Method: method, Path: path}
		if se.Unauthorized() && c.onUnauthorized != nil {
			c.onUnauthorized(ctx, se)
		}
		return se
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
