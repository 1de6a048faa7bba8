package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/untiswatch/untiswatch/internal/api"
	"github.com/untiswatch/untiswatch/internal/cache"
	"github.com/untiswatch/untiswatch/internal/config"
	"github.com/untiswatch/untiswatch/internal/metrics"
	"github.com/untiswatch/untiswatch/internal/notify"
	"github.com/untiswatch/untiswatch/internal/untis"
	"github.com/untiswatch/untiswatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("untiswatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"host", cfg.Upstream.Host,
		"school", cfg.Upstream.School,
		"refresh_interval", cfg.Refresh.Interval,
		"http_port", cfg.HTTP.Port,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := untis.New(cfg.Upstream, cfg.Compare)
	if err != nil {
		slog.Error("failed to build upstream client", "err", err)
		os.Exit(1)
	}

	st := cache.NewStore()

	// WebSocket hub — pushes every published generation to connected clients.
	hub := ws.New(st)
	go hub.Run(ctx)

	// Notification engine — evaluates each published diff against the rules.
	notifier := notify.New(cfg.Notify)

	collector := metrics.New(st, hub.Count)

	// Refresh loop: fetch → diff → publish, then fan out to listeners.
	refresher := cache.NewRefresher(client, st, cfg.Refresh.Interval, cfg.Refresh.Crons,
		hub, notifier, collector)
	go refresher.Run(ctx)

	// Notification rules reload on config file change; everything else
	// requires a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(next *config.Config) {
			notifier.Update(next.Notify)
		}); err != nil {
			slog.Error("config watch stopped", "err", err)
		}
	}()

	// Combined HTTP server: REST API + WebSocket stream + metrics.
	staleAfter := 2 * cfg.Refresh.Interval
	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(st, staleAfter))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", collector)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: mux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("untiswatch shutting down")
	srv.Shutdown(context.Background()) //nolint:errcheck
}
