package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Harishwarrior/jankkiller/internal/infrastructure/config"
	obs "github.com/Harishwarrior/jankkiller/internal/infrastructure/observability"
	"github.com/Harishwarrior/jankkiller/internal/observer"
)

type Deps struct {
	Cfg     config.Config
	Logger  *zerolog.Logger
	Metrics *obs.Metrics
	Manager *observer.Manager
	Monitor *MonitorHub
}

func NewRouter(d *Deps) http.Handler {
	return withCORS(d.Cfg, buildBaseMux(d))
}

func buildBaseMux(d *Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":    "jankkiller",
			"version": obs.Version,
			"commit":  obs.Commit,
			"time":    time.Now().UTC(),
		})
	})

	// session records reconstructed from the event stream
	mux.HandleFunc("/api/sessions", d.handleListSessions)
	mux.HandleFunc("/api/sessions/", d.handleSessionByID)

	// archive round trip and regression comparison
	mux.HandleFunc("/api/export", d.handleExport)
	mux.HandleFunc("/api/import", d.handleImport)
	mux.HandleFunc("/api/compare", d.handleCompare)

	// instrumentation event stream in, UI notifications out
	mux.HandleFunc("/api/ingest/ws", d.handleIngestWS)
	mux.HandleFunc("/api/monitor/ws", d.Monitor.HandleWS)

	return mux
}

func withCORS(cfg config.Config, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
