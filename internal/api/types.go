package api

import "github.com/untiswatch/untiswatch/internal/timetable"

// DiffResponse is the payload for GET /api/v1/diff.
type DiffResponse struct {
	Generation uint64             `json:"generation"`
	FetchedAt  string             `json:"fetched_at"` // RFC3339
	Added      []timetable.Lesson `json:"added"`
	Removed    []timetable.Lesson `json:"removed"`
	Modified   []timetable.Change `json:"modified"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot.
type SnapshotResponse struct {
	Generation uint64             `json:"generation"`
	FetchedAt  string             `json:"fetched_at"` // RFC3339
	Lessons    []timetable.Lesson `json:"lessons"`
}

// ChangesResponse is the payload for GET /api/v1/changes: the current diff
// flattened into one human-readable sentence per change.
type ChangesResponse struct {
	Generation uint64   `json:"generation"`
	Changes    []string `json:"changes"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	HasData     bool             `json:"has_data"`
	State       string           `json:"state"` // fresh | stale | unknown
	Generation  uint64           `json:"generation"`
	LastSuccess string           `json:"last_success,omitempty"` // RFC3339
	LastError   string           `json:"last_error,omitempty"`
	LastErrorAt string           `json:"last_error_at,omitempty"` // RFC3339
	Lessons     int              `json:"lessons"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
