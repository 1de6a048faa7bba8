package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/untiswatch/untiswatch/internal/cache"
	"github.com/untiswatch/untiswatch/internal/timetable"
)

// Health states reported by GET /api/v1/health.
const (
	StateFresh   = "fresh"
	StateStale   = "stale"
	StateUnknown = "unknown"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads timetable state from the cache store and returns JSON responses.
type Handler struct {
	store      *cache.Store
	staleAfter time.Duration
	mux        *http.ServeMux
	now        func() time.Time // injectable for deterministic tests
}

// New creates a Handler wired to the given store and registers all routes.
// staleAfter is the last-success age beyond which health reports "stale".
func New(st *cache.Store, staleAfter time.Duration) *Handler {
	h := &Handler{
		store:      st,
		staleAfter: staleAfter,
		mux:        http.NewServeMux(),
		now:        time.Now,
	}

	h.mux.HandleFunc("/api/v1/diff", h.diff)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/changes", h.changes)
	h.mux.HandleFunc("/api/v1/health", h.health)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// diff returns GET /api/v1/diff — the changes found by the latest refresh.
// 404 until the first successful fetch.
func (h *Handler) diff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp, ok := BuildDiff(h.store.View())
	if !ok {
		jsonErr(w, http.StatusNotFound, "no timetable fetched yet")
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// BuildDiff maps a cache state to its diff JSON representation. ok is false
// before the first successful fetch. Shared with the WebSocket hub.
func BuildDiff(v *cache.State) (resp DiffResponse, ok bool) {
	if !v.HasData() {
		return DiffResponse{}, false
	}
	return DiffResponse{
		Generation: v.Generation,
		FetchedAt:  v.Snapshot.FetchedAt.UTC().Format(time.RFC3339),
		Added:      v.Diff.Added,
		Removed:    v.Diff.Removed,
		Modified:   v.Diff.Modified,
	}, true
}

// snapshot returns GET /api/v1/snapshot — the full current timetable.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	v := h.store.View()
	if !v.HasData() {
		jsonErr(w, http.StatusNotFound, "no timetable fetched yet")
		return
	}

	jsonResp(w, http.StatusOK, SnapshotResponse{
		Generation: v.Generation,
		FetchedAt:  v.Snapshot.FetchedAt.UTC().Format(time.RFC3339),
		Lessons:    v.Snapshot.Lessons,
	})
}

// changes returns GET /api/v1/changes — the current diff as sentences.
func (h *Handler) changes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	v := h.store.View()
	if !v.HasData() {
		jsonErr(w, http.StatusNotFound, "no timetable fetched yet")
		return
	}

	jsonResp(w, http.StatusOK, ChangesResponse{
		Generation: v.Generation,
		Changes:    timetable.Summarize(v.Diff),
	})
}

// health returns GET /api/v1/health — freshness and upstream status.
// Always 200: an unreachable upstream is reported, never propagated.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	v := h.store.View()
	resp := HealthResponse{
		HasData:     v.HasData(),
		State:       h.freshness(v),
		Generation:  v.Generation,
		Lessons:     v.Snapshot.Len(),
		Diagnostics: h.diagnostics(v),
	}
	if !v.LastSuccess.IsZero() {
		resp.LastSuccess = v.LastSuccess.UTC().Format(time.RFC3339)
	}
	if v.LastErr != nil {
		resp.LastError = v.LastErr.Error()
		resp.LastErrorAt = v.LastErrAt.UTC().Format(time.RFC3339)
	}

	jsonResp(w, http.StatusOK, resp)
}

// freshness derives the health state from the last-success age.
func (h *Handler) freshness(v *cache.State) string {
	switch {
	case !v.HasData():
		return StateUnknown
	case h.now().Sub(v.LastSuccess) > h.staleAfter:
		return StateStale
	default:
		return StateFresh
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
