package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/untiswatch/untiswatch/internal/timetable"
)

// State is one published generation of cache state. It is immutable: a new
// generation is built by copying the previous one, never by editing in place,
// so a *State handed to a reader stays internally consistent forever.
//
// Snapshot is nil until the first successful fetch; Diff is meaningful only
// when Snapshot is set.
type State struct {
	Snapshot    *timetable.Snapshot
	Diff        timetable.Diff
	Generation  uint64
	LastSuccess time.Time
	LastErr     error
	LastErrAt   time.Time
}

// HasData reports whether at least one fetch has succeeded.
func (s *State) HasData() bool { return s.Snapshot != nil }

// Store holds the current State behind an atomically swapped pointer.
// Reads never block; writes are serialized so generations are totally
// ordered and a slow writer can never clobber a newer publish.
type Store struct {
	mu  sync.Mutex // serializes writers only
	cur atomic.Pointer[State]
	now func() time.Time // injectable for deterministic tests
}

// NewStore returns a Store in the empty pre-first-fetch state.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.cur.Store(&State{})
	return s
}

// View returns the current State. The result is a consistent point-in-time
// value: a concurrent Publish never changes what the caller already holds.
func (s *Store) View() *State {
	return s.cur.Load()
}

// Publish atomically replaces the current snapshot and diff, clears the
// error fields and advances the generation. It returns the new State.
func (s *Store) Publish(snap *timetable.Snapshot, diff timetable.Diff) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &State{
		Snapshot:    snap,
		Diff:        diff,
		Generation:  s.cur.Load().Generation + 1,
		LastSuccess: s.now(),
	}
	s.cur.Store(next)
	return next
}

// RecordError publishes a new generation that carries err in the error
// fields while keeping the snapshot and diff of the previous generation
// untouched. It returns the new State.
func (s *Store) RecordError(err error) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cur.Load()
	next := &State{
		Snapshot:    prev.Snapshot,
		Diff:        prev.Diff,
		Generation:  prev.Generation,
		LastSuccess: prev.LastSuccess,
		LastErr:     err,
		LastErrAt:   s.now(),
	}
	s.cur.Store(next)
	return next
}
