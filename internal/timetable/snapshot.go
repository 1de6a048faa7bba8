package timetable

import (
	"fmt"
	"sort"
	"time"
)

// DuplicateKeyError reports two lessons sharing one identity key within a
// single fetch. It indicates malformed upstream data (or a parsing bug), not
// a transient condition — callers must fail the cycle rather than deduplicate.
type DuplicateKeyError struct {
	Key int64
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("timetable: duplicate lesson key %d in snapshot", e.Key)
}

// Snapshot is the immutable timetable state observed at one fetch.
// Lessons are held sorted by ID; order carries no meaning upstream, so
// sorting here makes every derived value reproducible.
type Snapshot struct {
	FetchedAt time.Time `json:"fetched_at"`
	Lessons   []Lesson  `json:"lessons"`
}

// NewSnapshot builds a Snapshot from one fetch cycle's lessons. Each lesson's
// content hash is computed under policy. A duplicate identity key returns a
// *DuplicateKeyError and no snapshot.
func NewSnapshot(fetchedAt time.Time, lessons []Lesson, policy ComparePolicy) (*Snapshot, error) {
	seen := make(map[int64]struct{}, len(lessons))
	out := make([]Lesson, len(lessons))
	for i, l := range lessons {
		if _, dup := seen[l.ID]; dup {
			return nil, &DuplicateKeyError{Key: l.ID}
		}
		seen[l.ID] = struct{}{}
		l.Hash = hashOf(l, policy)
		out[i] = l
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return &Snapshot{FetchedAt: fetchedAt, Lessons: out}, nil
}

// Len returns the number of lessons in the snapshot. Safe on nil.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Lessons)
}
