package api

import (
	"errors"
	"fmt"

	"github.com/untiswatch/untiswatch/internal/cache"
	"github.com/untiswatch/untiswatch/internal/timetable"
	"github.com/untiswatch/untiswatch/internal/untis"
)

// DiagnosticHint is one human-readable insight included in the health
// response, written in plain English so a non-operator can act on it.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short label (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
}

// diagnostics derives hints from the current cache state, worst first.
func (h *Handler) diagnostics(v *cache.State) []DiagnosticHint {
	var hints []DiagnosticHint

	if !v.HasData() {
		if v.LastErr == nil {
			hints = append(hints, DiagnosticHint{
				Key:   "warming_up",
				Level: "info",
				Title: "Warming up",
				Detail: "The first timetable fetch has not completed yet. " +
					"Diff and snapshot endpoints return 404 until it does — " +
					"usually within one refresh interval. No action needed.",
			})
			return hints
		}
		hints = append(hints, errHint(v.LastErr, "critical",
			"No timetable has ever been fetched successfully, so there is no "+
				"last known state to serve. "))
		return hints
	}

	if v.LastErr != nil {
		hints = append(hints, errHint(v.LastErr, "warning",
			"The most recent refresh failed; clients are being served the "+
				"last known good timetable. "))
	}

	if h.now().Sub(v.LastSuccess) > h.staleAfter {
		hints = append(hints, DiagnosticHint{
			Key:   "stale",
			Level: "warning",
			Title: "Data is stale",
			Detail: fmt.Sprintf(
				"The last successful refresh was at %s, longer ago than the "+
					"configured staleness threshold. The served timetable may no "+
					"longer match the school's.",
				v.LastSuccess.Format("15:04:05")),
		})
	}

	if n := v.Diff.Total(); n > 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "changes",
			Level:  "info",
			Title:  fmt.Sprintf("%d timetable changes", n),
			Detail: fmt.Sprintf("The latest refresh found %d added, %d removed and %d modified lessons.", len(v.Diff.Added), len(v.Diff.Removed), len(v.Diff.Modified)),
		})
	}

	return hints
}

// errHint classifies a fetch error into a hint with a matching remedy.
func errHint(err error, level, prefix string) DiagnosticHint {
	var (
		authErr  *untis.AuthError
		parseErr *untis.ParseError
		dupErr   *timetable.DuplicateKeyError
	)
	switch {
	case errors.As(err, &authErr):
		return DiagnosticHint{
			Key:   "auth_failed",
			Level: level,
			Title: "Upstream rejects credentials",
			Detail: prefix + "WebUntis rejected the configured account. " +
				"Check the user name and the password environment variable — " +
				"retrying will not help until they are fixed.",
		}
	case errors.As(err, &parseErr):
		return DiagnosticHint{
			Key:   "bad_payload",
			Level: level,
			Title: "Upstream payload not understood",
			Detail: prefix + "The response did not have the expected shape: " +
				err.Error() + ". This usually means a WebUntis update changed the API.",
		}
	case errors.As(err, &dupErr):
		return DiagnosticHint{
			Key:   "duplicate_key",
			Level: level,
			Title: "Duplicate lesson key",
			Detail: prefix + err.Error() + ". The cycle was rejected to keep " +
				"the diff well-defined.",
		}
	default:
		return DiagnosticHint{
			Key:   "unreachable",
			Level: level,
			Title: "Can't reach upstream",
			Detail: prefix + "The last attempt failed with: \"" + err.Error() +
				"\". Check connectivity to the WebUntis host; transient " +
				"failures retry automatically on the next cycle.",
		}
	}
}
