package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harishwarrior/jankkiller/internal/adapters/vmservice"
	"github.com/Harishwarrior/jankkiller/internal/domain"
	cfgpkg "github.com/Harishwarrior/jankkiller/internal/infrastructure/config"
	httpapi "github.com/Harishwarrior/jankkiller/internal/infrastructure/httpapi"
	obs "github.com/Harishwarrior/jankkiller/internal/infrastructure/observability"
	"github.com/Harishwarrior/jankkiller/internal/observer"
)

func main() {
	cfg := cfgpkg.FromEnv()

	logger := obs.NewLogger(cfg.LogLevel)
	logger.Info().Str("addr", cfg.Addr).Str("version", obs.Version).Msg("starting jankkiller observer")

	metrics := obs.NewMetrics()

	// Profiling backend is optional: without a VM service URI, sessions are
	// still reconstructed and analyzed, just without CPU/timeline data.
	var backend observer.ProfilingBackend
	if cfg.VMServiceURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := vmservice.Dial(ctx, cfg.VMServiceURI)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("uri", cfg.VMServiceURI).Msg("vm service unavailable, enrichment disabled")
		} else {
			backend = client
			defer client.Close()
			logger.Info().Str("uri", cfg.VMServiceURI).Msg("vm service connected")
		}
	}

	monitor := httpapi.NewMonitorHub()
	correlator := observer.NewCorrelator(backend, cfg.VMIsolateID, logger)
	manager := observer.NewManager(correlator, func() {
		monitor.Broadcast(httpapi.MonitorEvent{Type: "sessions_changed"})
	}, logger)
	manager.SetMaxSessions(cfg.MaxSessions)
	manager.OnInsights = func(ins []domain.Insight) {
		for _, in := range ins {
			metrics.InsightsTotal.WithLabelValues(in.Type).Inc()
		}
	}

	deps := &httpapi.Deps{Cfg: cfg, Logger: logger, Metrics: metrics, Manager: manager, Monitor: monitor}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("jankkiller observer stopped")
}
