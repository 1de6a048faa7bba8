package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/untiswatch/untiswatch/internal/timetable"
)

// fakeFetcher returns queued results in order, then repeats the last one.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	block   chan struct{} // when non-nil, FetchTimetable waits on it
}

type fetchResult struct {
	snap *timetable.Snapshot
	err  error
}

func (f *fakeFetcher) FetchTimetable(ctx context.Context) (*timetable.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	i := f.calls - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	res := f.results[i]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res.snap, res.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder captures published states.
type recorder struct {
	mu     sync.Mutex
	states []*State
}

func (r *recorder) StatePublished(st *State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func TestRefreshNow_FirstCyclePublishesAllAdded(t *testing.T) {
	st := NewStore()
	s := snap(t, "Math", "Art")
	f := &fakeFetcher{results: []fetchResult{{snap: s}}}
	rec := &recorder{}
	r := NewRefresher(f, st, time.Minute, nil, rec)

	r.RefreshNow(context.Background())

	v := st.View()
	if !v.HasData() {
		t.Fatal("no data after successful refresh")
	}
	if v.Generation != 1 {
		t.Errorf("Generation: got %d, want 1", v.Generation)
	}
	if len(v.Diff.Added) != 2 {
		t.Errorf("Added: got %d, want 2 (no baseline)", len(v.Diff.Added))
	}
	if rec.count() != 1 {
		t.Errorf("listener calls: got %d, want 1", rec.count())
	}
}

func TestRefreshNow_DiffsAgainstPrevious(t *testing.T) {
	st := NewStore()
	f := &fakeFetcher{results: []fetchResult{
		{snap: snap(t, "Math", "Art")},
		{snap: snap(t, "Math", "Music")},
	}}
	r := NewRefresher(f, st, time.Minute, nil, nil)

	r.RefreshNow(context.Background())
	r.RefreshNow(context.Background())

	v := st.View()
	if v.Generation != 2 {
		t.Fatalf("Generation: got %d, want 2", v.Generation)
	}
	// Lesson 2's subject changed Art→Music under the same key.
	if len(v.Diff.Modified) != 1 {
		t.Errorf("Modified: got %d, want 1", len(v.Diff.Modified))
	}
	if len(v.Diff.Added) != 0 || len(v.Diff.Removed) != 0 {
		t.Errorf("Added/Removed: got %d/%d, want 0/0", len(v.Diff.Added), len(v.Diff.Removed))
	}
}

func TestRefreshNow_FailureKeepsLastGoodState(t *testing.T) {
	st := NewStore()
	f := &fakeFetcher{results: []fetchResult{
		{snap: snap(t, "Math")},
		{err: errors.New("upstream unreachable")},
	}}
	rec := &recorder{}
	r := NewRefresher(f, st, time.Minute, nil, rec)

	r.RefreshNow(context.Background())
	good := st.View()
	r.RefreshNow(context.Background())

	v := st.View()
	if v.Snapshot != good.Snapshot {
		t.Error("failed cycle replaced the snapshot")
	}
	if v.Generation != good.Generation {
		t.Errorf("Generation: got %d, want %d", v.Generation, good.Generation)
	}
	if v.LastErr == nil {
		t.Error("LastErr: got nil after failed cycle")
	}
	if rec.count() != 1 {
		t.Errorf("listener calls: got %d, want 1 (failures are not published)", rec.count())
	}
}

func TestRefreshNow_DuplicateKeyFailsCycle(t *testing.T) {
	st := NewStore()
	good := snap(t, "Math")
	f := &fakeFetcher{results: []fetchResult{
		{snap: good},
		{err: &timetable.DuplicateKeyError{Key: 7}},
	}}
	r := NewRefresher(f, st, time.Minute, nil, nil)

	r.RefreshNow(context.Background())
	r.RefreshNow(context.Background())

	v := st.View()
	if v.Snapshot != good {
		t.Error("invariant violation replaced the snapshot")
	}
	var dup *timetable.DuplicateKeyError
	if !errors.As(v.LastErr, &dup) {
		t.Errorf("LastErr: got %v, want *DuplicateKeyError", v.LastErr)
	}
}

func TestRefreshNow_SkipsOverlappingTrigger(t *testing.T) {
	st := NewStore()
	block := make(chan struct{})
	f := &fakeFetcher{
		results: []fetchResult{{snap: snap(t, "Math")}},
		block:   block,
	}
	r := NewRefresher(f, st, time.Minute, nil, nil)

	done := make(chan struct{})
	go func() {
		r.RefreshNow(context.Background())
		close(done)
	}()

	// Wait until the first cycle is inside the fetch.
	for f.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	// A trigger during an in-flight cycle returns immediately without fetching.
	r.RefreshNow(context.Background())
	if got := f.callCount(); got != 1 {
		t.Errorf("fetch calls: got %d, want 1 (overlap must be skipped)", got)
	}

	close(block)
	<-done
	if st.View().Generation != 1 {
		t.Errorf("Generation: got %d, want 1", st.View().Generation)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := NewStore()
	f := &fakeFetcher{results: []fetchResult{{snap: snap(t, "Math")}}}
	r := NewRefresher(f, st, 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// Let at least the immediate cycle plus one tick happen.
	for st.View().Generation == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRun_ReleasesHungFetch(t *testing.T) {
	st := NewStore()
	f := &fakeFetcher{
		results: []fetchResult{{snap: snap(t, "Math")}},
		block:   make(chan struct{}), // never closed — fetch hangs until ctx
	}
	r := NewRefresher(f, st, time.Minute, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RefreshNow(ctx)
		close(done)
	}()

	for f.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancellation did not release the in-flight fetch")
	}
	if st.View().LastErr == nil {
		t.Error("LastErr: got nil, want the cancellation error recorded")
	}
}
