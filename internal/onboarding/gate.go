// Package onboarding decides whether a signed-in clinician may use the main
// console or has to finish setting up their profile first.
package onboarding

import (
	"sync"
	"time"

	"clinician-console/internal/model"
	"clinician-console/internal/notice"
)

type Action int

const (
	// Wait: session still loading, render nothing actionable.
	Wait Action = iota
	RedirectLanding
	RedirectSetup
	Grant
)

func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case RedirectLanding:
		return "redirect-landing"
	case RedirectSetup:
		return "redirect-setup"
	case Grant:
		return "grant"
	}
	return "unknown"
}

type Route string

const (
	Landing Route = "/"
	Setup   Route = "/settings"
	Console Route = "/dashboard"
)

type Navigator interface {
	Navigate(Route)
}

type NavigatorFunc func(Route)

func (f NavigatorFunc) Navigate(r Route) { f(r) }

type Input struct {
	IsLoading       bool
	IsAuthenticated bool
	Profile         *model.DoctorProfile
}

// Decide is pure: same input, same action.
func Decide(in Input) Action {
	switch {
	case in.IsLoading:
		return Wait
	case !in.IsAuthenticated || in.Profile == nil:
		return RedirectLanding
	case !in.Profile.Complete():
		return RedirectSetup
	}
	return Grant
}

// DefaultRedirectDelay is how long the setup-complete notice stays up before
// the console opens.
const DefaultRedirectDelay = 1200 * time.Millisecond

var (
	incompleteNotice = notice.Notice{
		Title:       "Profile Incomplete",
		Description: "Please complete your profile before accessing the dashboard.",
	}
	completeNotice = notice.Notice{
		Title:       "Profile Setup Complete",
		Description: "You can now access your dashboard and start accepting appointments!",
	}
)

// Gate wraps Decide with one-shot effects. Effects fire on transitions, not
// on evaluations: evaluating the same input twice fires nothing the second time.
type Gate struct {
	notifier notice.Notifier
	nav      Navigator
	delay    time.Duration

	mu       sync.Mutex
	settled  Action
	hasState bool
	known    bool // completeness has been observed since the last sign-in
	complete bool
	timer    *time.Timer
}

func New(n notice.Notifier, nav Navigator, delay time.Duration) *Gate {
	if delay < 0 {
		delay = 0
	}
	return &Gate{notifier: n, nav: nav, delay: delay}
}

func (g *Gate) Evaluate(in Input) Action {
	a := Decide(in)
	if a == Wait {
		// loading is not a transition; the next settled state compares
		// against the one before it
		return a
	}

	g.mu.Lock()
	edge := !g.hasState || g.settled != a
	g.settled, g.hasState = a, true

	var fireIncomplete, fireComplete bool
	switch a {
	case RedirectLanding:
		g.known, g.complete = false, false
		g.stopLocked()
	case RedirectSetup:
		fireIncomplete = edge
		g.known, g.complete = true, false
	case Grant:
		fireComplete = g.markCompleteLocked(true)
	}
	g.mu.Unlock()

	if fireIncomplete {
		g.notify(incompleteNotice)
		g.navigate(Setup)
	}
	if fireComplete {
		g.completed()
	}
	return a
}

// CheckCompletion is called by the editors after a successful save with the
// completeness they just submitted. It fires the completion effect only on
// the incomplete-to-complete edge.
func (g *Gate) CheckCompletion(complete bool) bool {
	g.mu.Lock()
	fire := g.markCompleteLocked(complete)
	g.mu.Unlock()
	if fire {
		g.completed()
	}
	return fire
}

// Close cancels a pending auto-navigation.
func (g *Gate) Close() {
	g.mu.Lock()
	g.stopLocked()
	g.mu.Unlock()
}

// A profile that was already complete the first time it was seen never went
// through setup, so only an observed false becoming true fires.
func (g *Gate) markCompleteLocked(complete bool) bool {
	fire := complete && g.known && !g.complete
	g.known, g.complete = true, complete
	return fire
}

func (g *Gate) completed() {
	g.notify(completeNotice)
	if g.nav == nil {
		return
	}
	g.mu.Lock()
	g.stopLocked()
	g.timer = time.AfterFunc(g.delay, func() { g.nav.Navigate(Console) })
	g.mu.Unlock()
}

func (g *Gate) stopLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Gate) notify(n notice.Notice) {
	if g.notifier != nil {
		g.notifier.Notify(n)
	}
}

func (g *Gate) navigate(r Route) {
	if g.nav != nil {
		g.nav.Navigate(r)
	}
}
