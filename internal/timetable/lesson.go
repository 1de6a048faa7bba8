package timetable

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Lesson states as reported by the upstream timetable provider.
const (
	StateHeld        = "held"
	StateCancelled   = "cancelled"
	StateSubstituted = "substituted"
)

// Lesson is one scheduled timetable entry.
//
// ID is the provider-assigned period identifier, stable across fetches and
// unique within one snapshot. Hash summarises the mutable fields selected by
// the snapshot's ComparePolicy; two versions of the same lesson compare equal
// exactly when their hashes match.
type Lesson struct {
	ID      int64     `json:"id"`
	Subject string    `json:"subject"`
	Teacher string    `json:"teacher"`
	Room    string    `json:"room"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	State   string    `json:"state"`

	// PrevTeacher and PrevRoom carry the original assignment when the
	// upstream reports a substitution. Empty otherwise.
	PrevTeacher string `json:"prev_teacher,omitempty"`
	PrevRoom    string `json:"prev_room,omitempty"`

	// Note is the free-text substitution note attached to the period.
	Note string `json:"note,omitempty"`

	Hash string `json:"hash"`
}

// ComparePolicy selects which mutable fields count toward "modified" when
// two versions of a lesson are compared. The zero value compares everything.
type ComparePolicy struct {
	// IgnoreRoom excludes room assignments from change detection, so a
	// pure room swap does not surface as a modification.
	IgnoreRoom bool `yaml:"ignore_room"`

	// IgnoreNote excludes the free-text substitution note, which some
	// schools rewrite without any schedule change behind it.
	IgnoreNote bool `yaml:"ignore_note"`
}

// sep separates hash input fields so adjacent values cannot collide.
const sep = "\x1f"

// hashOf derives the content hash of l under policy p.
func hashOf(l Lesson, p ComparePolicy) string {
	h := sha256.New()
	h.Write([]byte(l.Subject + sep))
	h.Write([]byte(l.Teacher + sep))
	h.Write([]byte(l.PrevTeacher + sep))
	h.Write([]byte(l.Start.UTC().Format(time.RFC3339) + sep))
	h.Write([]byte(l.End.UTC().Format(time.RFC3339) + sep))
	h.Write([]byte(l.State + sep))
	if !p.IgnoreRoom {
		h.Write([]byte(l.Room + sep))
		h.Write([]byte(l.PrevRoom + sep))
	}
	if !p.IgnoreNote {
		h.Write([]byte(l.Note + sep))
	}
	return hex.EncodeToString(h.Sum(nil))
}
