package middleware

import (
	"net/http"
	"sync"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/httputil"
)

// HealthChecker runs named readiness checks (hot store ping, durable
// store ping) on demand.
type HealthChecker struct {
	mu     sync.Mutex
	checks map[string]func() error
}

// NewHealthChecker builds an empty checker; register checks with
// RegisterCheck before mounting its handlers.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]func() error)}
}

// RegisterCheck adds a named readiness check.
func (h *HealthChecker) RegisterCheck(name string, check func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// LivenessHandler returns a static OK, per spec.md §6.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadinessHandler validates connectivity to every registered dependency.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		checks := make(map[string]func() error, len(h.checks))
		for k, v := range h.checks {
			checks[k] = v
		}
		h.mu.Unlock()

		results := make(map[string]string, len(checks))
		allOK := true
		for name, check := range checks {
			if err := check(); err != nil {
				results[name] = err.Error()
				allOK = false
			} else {
				results[name] = "ok"
			}
		}

		status := http.StatusOK
		if !allOK {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, map[string]interface{}{
			"status": map[bool]string{true: "ready", false: "not_ready"}[allOK],
			"checks": results,
		})
	}
}
