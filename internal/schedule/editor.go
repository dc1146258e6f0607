// Package schedule edits the weekly availability and the specialization,
// the two profile fields that decide onboarding completeness.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"clinician-console/internal/api"
	"clinician-console/internal/cache"
	"clinician-console/internal/model"
	"clinician-console/internal/notice"
)

var ErrUnknownDay = errors.New("unknown day")

type Backend interface {
	ReplaceWorkingHours(ctx context.Context, hours []model.WorkingHour) error
	UpdateSpecialization(ctx context.Context, specialization string) error
}

type CompletionChecker interface {
	CheckCompletion(complete bool) bool
}

// Default is the frame every schedule is shown in: all seven days, none
// available, standard hours prefilled.
func Default() [7]model.DayAvailability {
	var out [7]model.DayAvailability
	for i, d := range model.Week {
		out[i] = model.DayAvailability{Day: d, Start: DefaultStart, End: DefaultEnd}
	}
	return out
}

// Merge lays backend working hours over the default frame by day name.
// Unknown day names are ignored; days the backend omits keep the defaults.
func Merge(hours []model.WorkingHour) [7]model.DayAvailability {
	out := Default()
	for i, d := range model.Week {
		for _, h := range hours {
			if hd, ok := model.ParseDay(h.Day); !ok || hd != d {
				continue
			}
			out[i].Available = h.IsAvailable
			if h.StartTime != "" {
				out[i].Start = h.StartTime
			}
			if h.EndTime != "" {
				out[i].End = h.EndTime
			}
			break
		}
	}
	return out
}

// Validate reports the first available day whose end is not after its start.
// Unavailable days are never checked.
func Validate(days []model.DayAvailability) error {
	for _, d := range days {
		if !d.Available {
			continue
		}
		start, err := Minutes(d.Start)
		if err != nil {
			return &api.ValidationError{Field: d.Day.Label(), Msg: "invalid start time"}
		}
		end, err := Minutes(d.End)
		if err != nil {
			return &api.ValidationError{Field: d.Day.Label(), Msg: "invalid end time"}
		}
		if end <= start {
			return &api.ValidationError{Field: d.Day.Label(), Msg: "end must be after start"}
		}
	}
	return nil
}

func Wire(days []model.DayAvailability) []model.WorkingHour {
	out := make([]model.WorkingHour, len(days))
	for i, d := range days {
		out[i] = d.Wire()
	}
	return out
}

type Editor struct {
	api      Backend
	cache    *cache.Cache
	gate     CompletionChecker
	notifier notice.Notifier

	mu             sync.Mutex
	days           [7]model.DayAvailability
	specialization string
}

func New(b Backend, c *cache.Cache, gate CompletionChecker, n notice.Notifier) *Editor {
	return &Editor{api: b, cache: c, gate: gate, notifier: n, days: Default()}
}

// Load replaces local state with the profile's. Loading the same profile
// twice yields the same state.
func (e *Editor) Load(p *model.DoctorProfile) {
	if p == nil {
		return
	}
	days := Merge(p.WorkingHours)
	e.mu.Lock()
	e.days = days
	e.specialization = p.Specialization
	e.mu.Unlock()
}

func (e *Editor) Days() [7]model.DayAvailability {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.days
}

func (e *Editor) Day(d model.Day) (model.DayAvailability, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := index(d); i >= 0 {
		return e.days[i], true
	}
	return model.DayAvailability{}, false
}

func (e *Editor) SetAvailable(d model.Day, available bool) error {
	return e.update(d, func(a *model.DayAvailability) { a.Available = available })
}

func (e *Editor) SetStart(d model.Day, t string) error {
	if err := onGrid(d, t); err != nil {
		return err
	}
	return e.update(d, func(a *model.DayAvailability) { a.Start = t })
}

func (e *Editor) SetEnd(d model.Day, t string) error {
	if err := onGrid(d, t); err != nil {
		return err
	}
	return e.update(d, func(a *model.DayAvailability) { a.End = t })
}

// Standard sets one day to available 09:00–17:00.
func (e *Editor) Standard(d model.Day) error {
	return e.update(d, func(a *model.DayAvailability) {
		a.Available, a.Start, a.End = true, DefaultStart, DefaultEnd
	})
}

func (e *Editor) Validate() error {
	days := e.Days()
	return Validate(days[:])
}

// Save validates and then replaces the whole week on the backend in one call.
// A validation failure makes no call. On any failure local edits are kept.
func (e *Editor) Save(ctx context.Context) error {
	days := e.Days()
	if err := Validate(days[:]); err != nil {
		e.notify(notice.Notice{Title: "Validation Error", Description: err.Error()})
		return err
	}
	if err := e.api.ReplaceWorkingHours(ctx, Wire(days[:])); err != nil {
		e.notify(notice.Notice{
			Title:       "Error",
			Description: fmt.Sprintf("Failed to save schedule: %v", err),
			Variant:     notice.Destructive,
		})
		return err
	}
	// working hours are part of the profile
	e.cache.Invalidate(cache.Profile)
	e.notify(notice.Notice{Title: "Success", Description: "Weekly schedule saved!"})
	e.checkCompletion()
	return nil
}

func (e *Editor) Specialization() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.specialization
}

// SetSpecialization accepts anything, including empty: empty only means the
// profile stays incomplete.
func (e *Editor) SetSpecialization(s string) {
	e.mu.Lock()
	e.specialization = s
	e.mu.Unlock()
}

func (e *Editor) SaveSpecialization(ctx context.Context) error {
	s := e.Specialization()
	if err := e.api.UpdateSpecialization(ctx, s); err != nil {
		e.notify(notice.Notice{
			Title:       "Error",
			Description: fmt.Sprintf("Failed to update profile: %v", err),
			Variant:     notice.Destructive,
		})
		return err
	}
	e.cache.Invalidate(cache.Profile)
	e.notify(notice.Notice{Title: "Success", Description: "Specialization updated!"})
	e.checkCompletion()
	return nil
}

// Complete applies the profile completeness rule to local state.
func (e *Editor) Complete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.specialization == "" {
		return false
	}
	for _, d := range e.days {
		if d.Available {
			return true
		}
	}
	return false
}

func (e *Editor) checkCompletion() {
	if e.gate != nil {
		e.gate.CheckCompletion(e.Complete())
	}
}

func (e *Editor) update(d model.Day, fn func(*model.DayAvailability)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := index(d)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownDay, d)
	}
	next := e.days[i]
	fn(&next)
	e.days[i] = next
	return nil
}

func (e *Editor) notify(n notice.Notice) {
	if e.notifier != nil {
		e.notifier.Notify(n)
	}
}

func index(d model.Day) int {
	for i, w := range model.Week {
		if w == d {
			return i
		}
	}
	return -1
}

func onGrid(d model.Day, t string) error {
	m, err := Minutes(t)
	if err != nil {
		return &api.ValidationError{Field: d.Label(), Msg: err.Error()}
	}
	if m%Granularity != 0 || strings.Count(t, ":") != 1 {
		return &api.ValidationError{Field: d.Label(), Msg: fmt.Sprintf("%s is not on the %d-minute grid", t, Granularity)}
	}
	return nil
}
