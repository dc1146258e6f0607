// Package appointments lists a clinician's appointments and cancels them.
package appointments

import (
	"context"
	"errors"
	"sync"
	"time"

	"clinician-console/internal/cache"
	"clinician-console/internal/model"
	"clinician-console/internal/notice"
)

var ErrNothingPending = errors.New("no cancellation pending")

type Backend interface {
	Appointments(ctx context.Context) ([]model.Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
}

// Prompt is what the confirmation dialog shows.
type Prompt struct {
	Title       string
	Description string
	ConfirmText string
	CancelText  string
}

var CancelPrompt = Prompt{
	Title:       "Cancel Appointment",
	Description: "Are you sure you want to cancel this appointment? The patient will be automatically notified. This action cannot be undone.",
	ConfirmText: "Yes, Cancel Appointment",
	CancelText:  "Keep Appointment",
}

type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

type Manager struct {
	api      Backend
	cache    *cache.Cache
	authed   func() bool
	notifier notice.Notifier
	now      func() time.Time

	mu      sync.Mutex
	pending string
}

// New builds a manager whose list is enabled only while authed returns true.
func New(b Backend, c *cache.Cache, authed func() bool, n notice.Notifier) *Manager {
	return &Manager{api: b, cache: c, authed: authed, notifier: n, now: time.Now}
}

// List returns appointments in backend order. ok is false when not signed in.
func (m *Manager) List(ctx context.Context) (list []model.Appointment, ok bool, err error) {
	return cache.Read(ctx, m.cache, cache.Appointments, m.api.Appointments, m.authed())
}

// Stats aggregates the current list against the local clock.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	list, _, err := m.List(ctx)
	return Aggregate(list, m.now()), err
}

// Observe keeps the list refreshed after invalidations until stop is called.
func (m *Manager) Observe() (stop func()) {
	return cache.Observe(m.cache, cache.Appointments, m.api.Appointments)
}

// Request opens the confirmation for id, replacing any earlier target.
func (m *Manager) Request(id string) {
	m.mu.Lock()
	m.pending = id
	m.mu.Unlock()
}

func (m *Manager) Pending() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending, m.pending != ""
}

func (m *Manager) Dismiss() {
	m.mu.Lock()
	m.pending = ""
	m.mu.Unlock()
}

// Confirm closes the dialog and deletes the pending appointment. The list is
// only invalidated after the backend confirms; on failure it is untouched.
func (m *Manager) Confirm(ctx context.Context) error {
	m.mu.Lock()
	id := m.pending
	m.pending = ""
	m.mu.Unlock()
	if id == "" {
		return ErrNothingPending
	}

	if err := m.api.CancelAppointment(ctx, id); err != nil {
		m.notify(notice.Notice{
			Title:       "Error",
			Description: "Failed to cancel appointment: " + err.Error(),
			Variant:     notice.Destructive,
		})
		return err
	}
	m.cache.Invalidate(cache.Appointments)
	m.notify(notice.Notice{Title: "Success", Description: "Appointment cancelled successfully"})
	return nil
}

// Cancel runs both phases: ask c, then delete on a yes.
func (m *Manager) Cancel(ctx context.Context, id string, c Confirmer) (cancelled bool, err error) {
	m.Request(id)
	ok, err := c.Confirm(ctx, CancelPrompt)
	if err != nil || !ok {
		m.Dismiss()
		return false, err
	}
	if err := m.Confirm(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) notify(n notice.Notice) {
	if m.notifier != nil {
		m.notifier.Notify(n)
	}
}
