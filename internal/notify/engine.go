package notify

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/untiswatch/untiswatch/internal/cache"
	"github.com/untiswatch/untiswatch/internal/config"
	"github.com/untiswatch/untiswatch/internal/timetable"
)

// Notification is one outgoing change notification. It is also the JSON body
// posted to generic "http" targets.
type Notification struct {
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetched_at"`
	Total      int       `json:"total"`
	Changes    []string  `json:"changes"`
}

// Engine turns published generations into notifications.
//
// Engine is safe for concurrent use; Update may be called while publishes
// are being processed.
type Engine struct {
	mu       sync.Mutex
	cfg      config.NotifyConfig
	lastSent time.Time

	client *http.Client
	bots   map[string]telegramSender // keyed by token, created lazily
	now    func() time.Time
}

// New creates an Engine. An Engine with no targets is valid — StatePublished
// becomes a no-op apart from threshold logging.
func New(cfg config.NotifyConfig) *Engine {
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Update replaces the notification rules at runtime. The cooldown timer is
// kept so a config reload cannot be used to bypass it.
func (e *Engine) Update(cfg config.NotifyConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	slog.Info("notify: rules updated",
		"min_changes", cfg.MinChanges,
		"cooldown", cfg.Cooldown,
		"targets", len(cfg.Targets),
	)
}

// StatePublished implements cache.Listener. It never blocks: delivery runs in
// its own goroutine.
func (e *Engine) StatePublished(st *cache.State) {
	if st == nil || !st.HasData() || st.Diff.Empty() {
		return
	}

	e.mu.Lock()
	cfg := e.cfg
	now := e.now()

	min := cfg.MinChanges
	if min < 1 {
		min = 1
	}
	total := st.Diff.Total()
	if total < min {
		e.mu.Unlock()
		slog.Debug("notify: diff below threshold",
			"generation", st.Generation,
			"total", total,
			"min_changes", min,
		)
		return
	}
	if !e.lastSent.IsZero() && now.Sub(e.lastSent) < cfg.Cooldown {
		e.mu.Unlock()
		slog.Debug("notify: suppressed by cooldown",
			"generation", st.Generation,
			"since_last", now.Sub(e.lastSent),
		)
		return
	}
	e.lastSent = now
	e.mu.Unlock()

	if len(cfg.Targets) == 0 {
		return
	}

	n := Notification{
		Generation: st.Generation,
		FetchedAt:  st.Snapshot.FetchedAt,
		Total:      total,
		Changes:    timetable.Summarize(st.Diff),
	}

	slog.Info("notify: sending",
		"generation", n.Generation,
		"total", n.Total,
		"targets", len(cfg.Targets),
	)
	go e.deliver(n, cfg.Targets)
}
