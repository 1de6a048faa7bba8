package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/untiswatch/untiswatch/internal/timetable"
)

// Fetcher is the upstream boundary the refresher drives. Implementations
// must honor ctx cancellation and bound their own network waits.
type Fetcher interface {
	FetchTimetable(ctx context.Context) (*timetable.Snapshot, error)
}

// Listener is told about every successfully published generation.
// Calls happen on the refresh goroutine and must not block for long.
type Listener interface {
	StatePublished(st *State)
}

// FailureListener is an optional extension of Listener for observers that
// also want to see failed refresh cycles.
type FailureListener interface {
	RefreshFailed(err error)
}

// Refresher drives the periodic fetch→diff→publish cycle. At most one cycle
// is ever in flight: interval ticks and cron triggers that fire while a
// cycle is still running are skipped, never queued.
type Refresher struct {
	fetcher   Fetcher
	store     *Store
	interval  time.Duration
	crons     []string
	listeners []Listener

	inFlight atomic.Bool
}

// NewRefresher wires a Refresher. crons holds optional additional cron
// expressions (already validated by config) that force an extra refresh.
// Nil listeners are allowed and skipped.
func NewRefresher(f Fetcher, st *Store, interval time.Duration, crons []string, listeners ...Listener) *Refresher {
	return &Refresher{
		fetcher:   f,
		store:     st,
		interval:  interval,
		crons:     crons,
		listeners: listeners,
	}
}

// Run executes one immediate refresh, then refreshes every interval until
// ctx is cancelled. Cron triggers, when configured, run on the same
// single-cycle guard as the ticker.
func (r *Refresher) Run(ctx context.Context) {
	var engine *cron.Cron
	if len(r.crons) > 0 {
		engine = cron.New()
		for _, spec := range r.crons {
			spec := spec
			if _, err := engine.AddFunc(spec, func() {
				slog.Debug("cache: cron refresh trigger", "spec", spec)
				r.RefreshNow(ctx)
			}); err != nil {
				// Config validated the specs already; this is a programmer error.
				slog.Error("cache: bad cron spec", "spec", spec, "err", err)
			}
		}
		engine.Start()
		defer func() { <-engine.Stop().Done() }()
	}

	r.RefreshNow(ctx)

	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.RefreshNow(ctx)
		}
	}
}

// RefreshNow runs one fetch→diff→publish cycle, unless one is already in
// flight, in which case it returns immediately. The cycle is bounded by the
// refresh interval so a hung upstream cannot starve future ticks forever.
//
// On failure the previous snapshot and diff stay published untouched; only
// the error fields change.
func (r *Refresher) RefreshNow(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		slog.Debug("cache: refresh already in flight — skipping trigger")
		return
	}
	defer r.inFlight.Store(false)

	cctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	started := time.Now()
	snap, err := r.fetcher.FetchTimetable(cctx)
	if err != nil {
		var dup *timetable.DuplicateKeyError
		if errors.As(err, &dup) {
			// Not a transient upstream failure — the payload itself is
			// malformed. Surface loudly, keep the last good state.
			slog.Error("cache: snapshot violates identity key invariant",
				"key", dup.Key, "err", err)
		} else {
			slog.Warn("cache: refresh failed — serving last known state",
				"err", err, "elapsed", time.Since(started))
		}
		r.store.RecordError(err)
		for _, l := range r.listeners {
			if fl, ok := l.(FailureListener); ok {
				fl.RefreshFailed(err)
			}
		}
		return
	}

	prev := r.store.View().Snapshot
	diff := timetable.Compare(prev, snap)
	st := r.store.Publish(snap, diff)

	slog.Info("cache: published",
		"generation", st.Generation,
		"lessons", snap.Len(),
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"modified", len(diff.Modified),
		"elapsed", time.Since(started),
	)

	for _, l := range r.listeners {
		if l != nil {
			l.StatePublished(st)
		}
	}
}
