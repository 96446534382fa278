// Package api implements C3: the REST request surface.
package api

import (
	"net/http"
	"time"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/logging"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/metrics"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig bundles the pieces NewRouter wires together.
type RouterConfig struct {
	Handlers         *Handlers
	Logger           *logging.Logger
	Metrics          *metrics.Metrics
	HealthChecker    *middleware.HealthChecker
	CallerLimiter    *middleware.CallerRateLimiter
	RequestTimeout   time.Duration
	BodyLimitBytes   int64
	CORS             middleware.CORSConfig
	WebSocketHandler http.HandlerFunc
}

// NewRouter builds the full mux.Router: transition routes, server time,
// operational probes, the push gateway's WebSocket endpoint, and the
// ordered middleware chain (spec.md §4.3 / §6).
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.BodyLimit(cfg.BodyLimitBytes))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.CallerLimiter != nil {
		r.Use(cfg.CallerLimiter.Handler())
	}

	h := cfg.Handlers
	r.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/start", h.StartSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/switch", h.SwitchCycle).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/pause", h.PauseSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/resume", h.ResumeSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/complete", h.CompleteSession).Methods(http.MethodPost)

	r.HandleFunc("/server-time", h.ServerTime).Methods(http.MethodGet)
	r.HandleFunc("/version", h.Version).Methods(http.MethodGet)

	if cfg.WebSocketHandler != nil {
		r.HandleFunc("/ws", cfg.WebSocketHandler).Methods(http.MethodGet)
	}

	r.HandleFunc("/healthz", cfg.HealthChecker.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", cfg.HealthChecker.ReadinessHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/admin/audit/failed", h.FailedAuditJobs).Methods(http.MethodGet)

	return r
}
