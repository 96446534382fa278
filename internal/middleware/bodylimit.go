package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
)

// DefaultBodyLimitBytes caps request bodies at 1 MiB; session create
// payloads with up to 100 participants (spec.md §8) stay well under this.
const DefaultBodyLimitBytes = 1 << 20

// BodyLimit wraps the request body in http.MaxBytesReader so downstream
// JSON decoding fails fast on oversized payloads instead of consuming
// unbounded memory.
func BodyLimit(maxBytes int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
