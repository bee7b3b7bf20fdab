// Package store holds fetched server data behind observable surfaces.
package store

import (
	"context"
	"errors"
	"sync"
)

// Status is the lifecycle state of a surface
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// MarshalText renders the status by name in JSON payloads
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent view of a surface at one point in time
type Snapshot[T any] struct {
	Status Status `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error,omitempty"`

	version uint64
}

// Loading reports whether a request is in flight
func (s Snapshot[T]) Loading() bool { return s.Status == StatusLoading }

// Err returns the error message as an error, or nil unless the status is
// StatusError.
func (s Snapshot[T]) Err() error {
	if s.Status != StatusError {
		return nil
	}
	return errors.New(s.Error)
}

// Ticket identifies one issued request
type Ticket uint64

// Surface tracks the loading/error/data lifecycle of one query surface.
// Each Begin issues a ticket; only the newest ticket may complete or fail,
// so a slow response for a superseded request never overwrites fresher data.
type Surface[T any] struct {
	mu        sync.Mutex
	name      string
	status    Status
	data      T
	err       string
	issued    Ticket
	cancel    context.CancelFunc
	observers map[int]func(Snapshot[T])
	nextObs   int
	version   uint64

	// delivery is ordered by version; delivered is guarded by notifyMu
	notifyMu  sync.Mutex
	delivered uint64
}

// NewSurface creates an idle surface holding initial data
func NewSurface[T any](name string, initial T) *Surface[T] {
	return &Surface[T]{
		name:      name,
		data:      initial,
		observers: make(map[int]func(Snapshot[T])),
	}
}

// Name returns the surface name
func (s *Surface[T]) Name() string { return s.name }

// Snapshot returns the current state
func (s *Surface[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Data returns the current data
func (s *Surface[T]) Data() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Begin marks the surface loading and clears the error. The returned context
// is cancelled when a newer request begins.
func (s *Surface[T]) Begin(ctx context.Context) (context.Context, Ticket) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.issued++
	ticket := s.issued
	s.status = StatusLoading
	s.err = ""
	s.changedLocked()
	snap := s.snapshotLocked()
	observers := s.observersLocked()
	s.mu.Unlock()

	s.notify(observers, snap)
	return reqCtx, ticket
}

// Complete stores data for ticket. It reports false, and changes nothing,
// when a newer request has been issued since.
func (s *Surface[T]) Complete(ticket Ticket, data T) bool {
	return s.finish(ticket, func() {
		s.data = data
		s.status = StatusReady
		s.err = ""
	})
}

// Update is Complete with data derived from the current value
func (s *Surface[T]) Update(ticket Ticket, fn func(current T) T) bool {
	return s.finish(ticket, func() {
		s.data = fn(s.data)
		s.status = StatusReady
		s.err = ""
	})
}

// Fail records an error for ticket and keeps the previous data visible
func (s *Surface[T]) Fail(ticket Ticket, message string) bool {
	return s.finish(ticket, func() {
		s.status = StatusError
		s.err = message
	})
}

// IsCurrent reports whether ticket is the newest issued request
func (s *Surface[T]) IsCurrent(ticket Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket == s.issued
}

// Reset cancels any in-flight request and returns the surface to idle
func (s *Surface[T]) Reset(data T) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.issued++
	s.data = data
	s.status = StatusIdle
	s.err = ""
	s.changedLocked()
	snap := s.snapshotLocked()
	observers := s.observersLocked()
	s.mu.Unlock()

	s.notify(observers, snap)
}

// Subscribe registers fn for every state change. Observers run outside the
// surface lock and may read any surface, but must not change this one.
// A snapshot superseded by one already delivered is dropped, so the last
// snapshot an observer sees always matches the surface.
func (s *Surface[T]) Subscribe(fn func(Snapshot[T])) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Surface[T]) finish(ticket Ticket, apply func()) bool {
	s.mu.Lock()
	if ticket != s.issued {
		s.mu.Unlock()
		return false
	}
	apply()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.changedLocked()
	snap := s.snapshotLocked()
	observers := s.observersLocked()
	s.mu.Unlock()

	s.notify(observers, snap)
	return true
}

func (s *Surface[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{Status: s.status, Data: s.data, Error: s.err, version: s.version}
}

// changedLocked stamps a new state version for the next snapshot
func (s *Surface[T]) changedLocked() {
	s.version++
}

func (s *Surface[T]) observersLocked() []func(Snapshot[T]) {
	out := make([]func(Snapshot[T]), 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if fn, ok := s.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (s *Surface[T]) notify(observers []func(Snapshot[T]), snap Snapshot[T]) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.version <= s.delivered {
		return
	}
	s.delivered = snap.version
	for _, fn := range observers {
		fn(snap)
	}
}
