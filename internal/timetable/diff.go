package timetable

import "sort"

// Change is one modified lesson carrying both versions.
type Change struct {
	Old Lesson `json:"old"`
	New Lesson `json:"new"`
}

// Diff is the structural difference between two consecutive snapshots.
// The three sets are disjoint by identity key; lessons whose hash is
// unchanged appear in none of them. All slices are sorted by lesson ID.
type Diff struct {
	Added    []Lesson `json:"added"`
	Removed  []Lesson `json:"removed"`
	Modified []Change `json:"modified"`
}

// Empty reports whether the diff contains no changes.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Total returns the total number of changed lessons across all three sets.
func (d Diff) Total() int {
	return len(d.Added) + len(d.Removed) + len(d.Modified)
}

// Compare computes the diff from prev to cur. A nil prev means there is no
// baseline yet: every lesson in cur is reported as added.
//
// Comparison is by identity key and content hash only — the positional order
// of lessons in either snapshot never influences the result, and the same two
// snapshots always produce the same diff. Runs in linear time over the
// combined lesson count.
func Compare(prev, cur *Snapshot) Diff {
	d := Diff{
		Added:    []Lesson{},
		Removed:  []Lesson{},
		Modified: []Change{},
	}

	if prev == nil {
		d.Added = append(d.Added, cur.Lessons...)
		sortLessons(d.Added)
		return d
	}

	old := make(map[int64]Lesson, len(prev.Lessons))
	for _, l := range prev.Lessons {
		old[l.ID] = l
	}

	seen := make(map[int64]struct{}, len(cur.Lessons))
	for _, l := range cur.Lessons {
		seen[l.ID] = struct{}{}
		before, ok := old[l.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, l)
		case before.Hash != l.Hash:
			d.Modified = append(d.Modified, Change{Old: before, New: l})
		}
	}

	for _, l := range prev.Lessons {
		if _, ok := seen[l.ID]; !ok {
			d.Removed = append(d.Removed, l)
		}
	}

	sortLessons(d.Added)
	sortLessons(d.Removed)
	sort.Slice(d.Modified, func(i, j int) bool {
		return d.Modified[i].New.ID < d.Modified[j].New.ID
	})
	return d
}

func sortLessons(ls []Lesson) {
	sort.Slice(ls, func(i, j int) bool { return ls[i].ID < ls[j].ID })
}
