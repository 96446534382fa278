package middleware

import (
	"fmt"
	"net/http"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/httputil"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/logging"
	"github.com/gorilla/mux"
)

// Recovery converts a panic in any downstream handler into a logged
// internal ServiceError instead of crashing the process.
func Recovery(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithContext(r.Context()).WithField("panic", fmt.Sprint(rec)).Error("recovered from panic")
					httputil.WriteError(w, svcerrors.Internal("internal error", fmt.Errorf("panic: %v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
