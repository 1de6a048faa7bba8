package timetable

import (
	"fmt"
	"strings"
)

// clock is the display format for lesson times in summaries.
const clock = "Mon 15:04"

// Summary renders one modified lesson as a single human-readable sentence,
// suitable for push notifications and voice assistants.
func (c Change) Summary() string {
	var parts []string
	o, n := c.Old, c.New

	if o.State != n.State {
		switch n.State {
		case StateCancelled:
			return fmt.Sprintf("%s at %s is cancelled", n.Subject, n.Start.Format(clock))
		case StateHeld:
			parts = append(parts, "takes place again")
		}
	}
	if o.Teacher != n.Teacher {
		parts = append(parts, fmt.Sprintf("teacher changed from %s to %s", orUnknown(o.Teacher), orUnknown(n.Teacher)))
	}
	if o.Room != n.Room {
		parts = append(parts, fmt.Sprintf("room changed from %s to %s", orUnknown(o.Room), orUnknown(n.Room)))
	}
	if !o.Start.Equal(n.Start) || !o.End.Equal(n.End) {
		parts = append(parts, fmt.Sprintf("moved to %s-%s", n.Start.Format(clock), n.End.Format("15:04")))
	}
	if o.Note != n.Note && n.Note != "" {
		parts = append(parts, n.Note)
	}
	if len(parts) == 0 {
		parts = append(parts, "updated")
	}
	return fmt.Sprintf("%s at %s: %s", n.Subject, n.Start.Format(clock), strings.Join(parts, "; "))
}

// Summarize flattens a diff into one sentence per change, additions first,
// then removals, then modifications.
func Summarize(d Diff) []string {
	out := make([]string, 0, d.Total())
	for _, l := range d.Added {
		out = append(out, fmt.Sprintf("new lesson: %s at %s in %s", l.Subject, l.Start.Format(clock), orUnknown(l.Room)))
	}
	for _, l := range d.Removed {
		out = append(out, fmt.Sprintf("lesson dropped: %s at %s", l.Subject, l.Start.Format(clock)))
	}
	for _, c := range d.Modified {
		out = append(out, c.Summary())
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
