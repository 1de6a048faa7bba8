package metrics

import (
	"errors"
	"sync"

	"github.com/untiswatch/untiswatch/internal/cache"
	"github.com/untiswatch/untiswatch/internal/timetable"
	"github.com/untiswatch/untiswatch/internal/untis"
)

// Failure kinds, used as the "kind" label on the failure counter.
const (
	kindNetwork   = "network"
	kindAuth      = "auth"
	kindParse     = "parse"
	kindInvariant = "invariant"
	kindOther     = "other"
)

// Collector accumulates refresh outcome counters and serves them together
// with store-derived gauges. Safe for concurrent use.
type Collector struct {
	store   *cache.Store
	clients func() int // connected WebSocket clients; nil disables the gauge

	mu        sync.Mutex
	successes float64
	failures  map[string]float64 // by failure kind
}

// New creates a Collector reading snapshot gauges from st. clients, when
// non-nil, is polled at scrape time for the WebSocket client gauge.
func New(st *cache.Store, clients func() int) *Collector {
	return &Collector{
		store:    st,
		clients:  clients,
		failures: make(map[string]float64),
	}
}

// StatePublished implements cache.Listener.
func (c *Collector) StatePublished(*cache.State) {
	c.mu.Lock()
	c.successes++
	c.mu.Unlock()
}

// RefreshFailed implements cache.FailureListener.
func (c *Collector) RefreshFailed(err error) {
	kind := failureKind(err)
	c.mu.Lock()
	c.failures[kind]++
	c.mu.Unlock()
}

// failureKind maps a refresh error to its counter label.
func failureKind(err error) string {
	var (
		netErr   *untis.NetError
		authErr  *untis.AuthError
		parseErr *untis.ParseError
		dupErr   *timetable.DuplicateKeyError
	)
	switch {
	case errors.As(err, &authErr):
		return kindAuth
	case errors.As(err, &dupErr):
		return kindInvariant
	case errors.As(err, &parseErr):
		return kindParse
	case errors.As(err, &netErr):
		return kindNetwork
	default:
		return kindOther
	}
}
