// Package notice carries user-visible messages (toasts) out of the core.
package notice

import (
	"log"
	"sync"
)

type Variant int

const (
	Default Variant = iota
	Destructive
)

type Notice struct {
	Title       string
	Description string
	Variant     Variant
}

type Notifier interface {
	Notify(Notice)
}

// Func adapts a plain function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Log writes notices as log lines; the CLI uses it in place of toasts.
type Log struct {
	L *log.Logger
}

func (l Log) Notify(n Notice) {
	lg := l.L
	if lg == nil {
		lg = log.Default()
	}
	if n.Variant == Destructive {
		lg.Printf("! %s: %s", n.Title, n.Description)
		return
	}
	lg.Printf("%s: %s", n.Title, n.Description)
}

// Recorder keeps every notice in order.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Titles is a convenience for assertions.
func (r *Recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Title
	}
	return out
}
