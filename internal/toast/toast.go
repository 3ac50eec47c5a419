// Package toast keeps the short-lived notifications shown after an action.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

const (
	DefaultDuration = 3 * time.Second
	// ReportDuration keeps validation reports readable.
	ReportDuration = 10 * time.Second
)

type Toast struct {
	ID        string
	Message   string
	Severity  Severity
	CreatedAt time.Time
	Duration  time.Duration
}

type EventKind int

const (
	Added EventKind = iota + 1
	Removed
)

type Event struct {
	Kind  EventKind
	Toast Toast
}

type Listener func(Event)

type timer interface {
	Stop() bool
}

type AddOption func(*Toast)

// WithDuration overrides how long the toast stays visible.
func WithDuration(d time.Duration) AddOption {
	return func(t *Toast) { t.Duration = d }
}

// Service is safe for concurrent use. Listeners are called outside the lock,
// in the order events happen for a given toast.
type Service struct {
	mu        sync.Mutex
	toasts    []Toast
	timers    map[string]timer
	listeners map[int]Listener
	nextSub   int

	now       func() time.Time
	afterFunc func(time.Duration, func()) timer
}

func New() *Service {
	return &Service{
		timers:    make(map[string]timer),
		listeners: make(map[int]Listener),
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) timer { return time.AfterFunc(d, f) },
	}
}

// Add appends a toast and schedules its removal. Warnings default to
// ReportDuration, everything else to DefaultDuration.
func (s *Service) Add(message string, severity Severity, opts ...AddOption) Toast {
	t := Toast{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: severity,
		Duration: DefaultDuration,
	}
	if severity == Warning {
		t.Duration = ReportDuration
	}
	for _, opt := range opts {
		opt(&t)
	}

	s.mu.Lock()
	t.CreatedAt = s.now()
	s.toasts = append(s.toasts, t)
	if t.Duration > 0 {
		id := t.ID
		s.timers[id] = s.afterFunc(t.Duration, func() { s.Remove(id) })
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, Event{Kind: Added, Toast: t})
	return t
}

// Remove dismisses a toast early. Unknown ids are ignored.
func (s *Service) Remove(id string) {
	s.mu.Lock()
	var removed *Toast
	for i, t := range s.toasts {
		if t.ID == id {
			removed = &t
			s.toasts = append(s.toasts[:i:i], s.toasts[i+1:]...)
			break
		}
	}
	if tm, ok := s.timers[id]; ok {
		tm.Stop()
		delete(s.timers, id)
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if removed != nil {
		notify(listeners, Event{Kind: Removed, Toast: *removed})
	}
}

// List returns the visible toasts in insertion order.
func (s *Service) List() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Toast(nil), s.toasts...)
}

// Subscribe registers fn for add and remove events. The returned function
// unregisters it.
func (s *Service) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(listeners []Listener, ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
