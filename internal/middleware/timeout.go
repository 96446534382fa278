package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/httputil"
	"github.com/gorilla/mux"
)

type timeoutResponseWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	wroteHeader bool
}

func (w *timeoutResponseWriter) WriteHeader(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *timeoutResponseWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	w.wroteHeader = true
	w.mu.Unlock()
	return w.ResponseWriter.Write(b)
}

// Timeout bounds every request by d, propagated via context.Context so
// downstream store/durable-store calls can abort cleanly (spec.md §5:
// "Every I/O must be bounded by a deadline propagated from the caller").
func Timeout(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			tw := &timeoutResponseWriter{ResponseWriter: w}
			done := make(chan struct{})

			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				wrote := tw.wroteHeader
				tw.mu.Unlock()
				if !wrote {
					httputil.WriteError(w, svcerrors.Timeout(r.URL.Path))
				}
			}
		})
	}
}
