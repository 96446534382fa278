package api

import (
	"net/http"
	"time"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/audit"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/clockoracle"
	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/httputil"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/logging"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/metrics"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/ratelimit"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/syncengine"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/version"
)

// Handlers holds C3's dependencies: the engine, the server clock oracle,
// the audit pipeline it fires-and-forgets into, the switch-specific
// shared rate limiter, and the ambient logger/metrics.
type Handlers struct {
	engine        *syncengine.Engine
	clock         *clockoracle.Oracle
	auditPipeline *audit.Pipeline
	switchLimiter *ratelimit.SwitchLimiter
	logger        *logging.Logger
	metrics       *metrics.Metrics
}

// NewHandlers builds the Handlers bundle.
func NewHandlers(engine *syncengine.Engine, clock *clockoracle.Oracle, auditPipeline *audit.Pipeline, switchLimiter *ratelimit.SwitchLimiter, logger *logging.Logger, m *metrics.Metrics) *Handlers {
	return &Handlers{
		engine:        engine,
		clock:         clock,
		auditPipeline: auditPipeline,
		switchLimiter: switchLimiter,
		logger:        logger,
		metrics:       m,
	}
}

func (h *Handlers) observe(operation string, start time.Time, err error) {
	if h.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if svcErr, ok := svcerrors.As(err); ok {
			h.metrics.ErrorsTotal.WithLabelValues(string(svcErr.Code)).Inc()
		}
	}
	h.metrics.RequestsTotal.WithLabelValues(operation, status).Inc()
	h.metrics.RequestDuration.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req createSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.observe("create", start, err)
		httputil.WriteError(w, err)
		return
	}
	if err := validateStruct(req); err != nil {
		h.observe("create", start, err)
		httputil.WriteError(w, err)
		return
	}

	st, err := h.engine.CreateSession(r.Context(), toCreateConfig(req))
	h.observe("create", start, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.auditPipeline.EnqueueWrite(st.SessionID, st, audit.EventCreated)
	httputil.WriteData(w, http.StatusCreated, st)
}

func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := httputil.PathParam(r, "id")
	st, err := h.engine.StartSession(r.Context(), sessionID)
	h.observe("start", start, err)
	h.logTransition(r, sessionID, "start", err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.auditPipeline.EnqueueWrite(st.SessionID, st, audit.EventStarted)
	httputil.WriteData(w, http.StatusOK, st)
}

func (h *Handlers) SwitchCycle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := httputil.PathParam(r, "id")

	if h.switchLimiter != nil {
		ok, err := h.switchLimiter.Allow(r.Context(), sessionID)
		if err != nil {
			h.observe("switch", start, err)
			httputil.WriteError(w, err)
			return
		}
		if !ok {
			err := svcerrors.RateLimited(1)
			h.observe("switch", start, err)
			httputil.WriteError(w, err)
			return
		}
	}

	var req switchRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.observe("switch", start, err)
			httputil.WriteError(w, err)
			return
		}
		if err := validateStruct(req); err != nil {
			h.observe("switch", start, err)
			httputil.WriteError(w, err)
			return
		}
	}

	st, err := h.engine.SwitchCycle(r.Context(), sessionID, toNextSelector(req))
	h.observe("switch", start, err)
	h.logTransition(r, sessionID, "switch", err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.auditPipeline.EnqueueWrite(st.SessionID, st, audit.EventSwitched)
	httputil.WriteData(w, http.StatusOK, st)
}

func (h *Handlers) PauseSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := httputil.PathParam(r, "id")
	st, err := h.engine.PauseSession(r.Context(), sessionID)
	h.observe("pause", start, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.auditPipeline.EnqueueWrite(st.SessionID, st, audit.EventPaused)
	httputil.WriteData(w, http.StatusOK, st)
}

func (h *Handlers) ResumeSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := httputil.PathParam(r, "id")
	st, err := h.engine.ResumeSession(r.Context(), sessionID)
	h.observe("resume", start, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.auditPipeline.EnqueueWrite(st.SessionID, st, audit.EventResumed)
	httputil.WriteData(w, http.StatusOK, st)
}

func (h *Handlers) CompleteSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := httputil.PathParam(r, "id")

	var req completeRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.observe("complete", start, err)
			httputil.WriteError(w, err)
			return
		}
	}

	st, err := h.engine.CompleteSession(r.Context(), sessionID, req.Outcome)
	h.observe("complete", start, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.auditPipeline.EnqueueWrite(st.SessionID, st, audit.EventCompleted)
	httputil.WriteData(w, http.StatusOK, st)
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := httputil.PathParam(r, "id")
	err := h.engine.DeleteSession(r.Context(), sessionID)
	h.observe("delete", start, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := httputil.PathParam(r, "id")
	st, err := h.engine.GetCurrentState(r.Context(), sessionID)
	h.observe("get", start, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, st)
}

func (h *Handlers) ServerTime(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.clock.Now())
}

// Version reports the running build identity, for deploy verification.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, version.Current())
}

// FailedAuditJobs is the small read-only admin endpoint SPEC_FULL.md §12
// adds as a surface for C5's failed-jobs bucket.
func (h *Handlers) FailedAuditJobs(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.auditPipeline.FailedJobs())
}

func (h *Handlers) logTransition(r *http.Request, sessionID, operation string, err error) {
	if err != nil {
		return
	}
	h.logger.LogTransition(r.Context(), sessionID, operation, 0, 0)
}
