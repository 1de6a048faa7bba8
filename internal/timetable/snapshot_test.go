package timetable

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewSnapshot_SortsByID(t *testing.T) {
	s := mustSnap(t, lesson(3, "Gym"), lesson(1, "Math"), lesson(2, "Art"))
	for i, want := range []int64{1, 2, 3} {
		if s.Lessons[i].ID != want {
			t.Errorf("Lessons[%d].ID: got %d, want %d", i, s.Lessons[i].ID, want)
		}
	}
}

func TestNewSnapshot_ComputesHashes(t *testing.T) {
	s := mustSnap(t, lesson(1, "Math"), lesson(2, "Math"))
	if s.Lessons[0].Hash == "" {
		t.Fatal("Hash: empty after NewSnapshot")
	}
	// Same content apart from ID — ID is identity, not content, so the
	// hashes match.
	if s.Lessons[0].Hash != s.Lessons[1].Hash {
		t.Error("hash differs for identical content")
	}
}

func TestNewSnapshot_DuplicateKey(t *testing.T) {
	_, err := NewSnapshot(base, []Lesson{lesson(7, "Math"), lesson(7, "Art")}, ComparePolicy{})
	if err == nil {
		t.Fatal("NewSnapshot with duplicate key: expected error, got nil")
	}
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("error type: got %T, want *DuplicateKeyError", err)
	}
	if dup.Key != 7 {
		t.Errorf("Key: got %d, want 7", dup.Key)
	}
}

func TestNewSnapshot_DoesNotMutateInput(t *testing.T) {
	in := []Lesson{lesson(2, "Art"), lesson(1, "Math")}
	if _, err := NewSnapshot(base, in, ComparePolicy{}); err != nil {
		t.Fatal(err)
	}
	if in[0].ID != 2 || in[0].Hash != "" {
		t.Error("NewSnapshot mutated its input slice")
	}
}

func TestLen_Nil(t *testing.T) {
	var s *Snapshot
	if s.Len() != 0 {
		t.Errorf("nil snapshot Len: got %d, want 0", s.Len())
	}
}

func TestSummarize_Cancellation(t *testing.T) {
	before := lesson(1, "Math")
	after := lesson(1, "Math")
	after.State = StateCancelled

	d := Compare(mustSnap(t, before), mustSnap(t, after))
	lines := Summarize(d)
	if len(lines) != 1 {
		t.Fatalf("Summarize: got %d lines, want 1", len(lines))
	}
	if !strings.Contains(lines[0], "cancelled") {
		t.Errorf("summary %q does not mention cancellation", lines[0])
	}
}

func TestSummarize_TeacherAndRoomChange(t *testing.T) {
	before := lesson(1, "Math")
	after := lesson(1, "Math")
	after.Teacher = "S. Kraus"
	after.Room = "202"

	d := Compare(mustSnap(t, before), mustSnap(t, after))
	lines := Summarize(d)
	if len(lines) != 1 {
		t.Fatalf("Summarize: got %d lines, want 1", len(lines))
	}
	for _, want := range []string{"T. Maier", "S. Kraus", "101", "202"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("summary %q missing %q", lines[0], want)
		}
	}
}

func TestSummarize_AddedAndRemoved(t *testing.T) {
	prev := mustSnap(t, lesson(1, "Math"))
	cur := mustSnap(t, lesson(2, "Gym"))

	lines := Summarize(Compare(prev, cur))
	if len(lines) != 2 {
		t.Fatalf("Summarize: got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "new lesson") || !strings.Contains(lines[0], "Gym") {
		t.Errorf("added line: got %q", lines[0])
	}
	if !strings.Contains(lines[1], "dropped") || !strings.Contains(lines[1], "Math") {
		t.Errorf("removed line: got %q", lines[1])
	}
}

// Hashing must not depend on wall-clock location — the same instant in two
// zones hashes identically.
func TestHash_TimezoneInsensitive(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	a := lesson(1, "Math")
	b := lesson(1, "Math")
	b.Start = a.Start.In(berlin)
	b.End = a.End.In(berlin)

	if hashOf(a, ComparePolicy{}) != hashOf(b, ComparePolicy{}) {
		t.Error("hash differs across timezone representations of the same instant")
	}
}
