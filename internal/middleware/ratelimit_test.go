package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallerRateLimiterAllowsWithinBudget(t *testing.T) {
	rl := NewCallerRateLimiter(2)
	handler := rl.Handler()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:1111"

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestCallerRateLimiterRejectsOverBudget(t *testing.T) {
	rl := NewCallerRateLimiter(1)
	handler := rl.Handler()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "5.6.7.8:2222"

	handler.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestCallerRateLimiterIsolatesKeys(t *testing.T) {
	rl := NewCallerRateLimiter(1)
	handler := rl.Handler()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	reqA := httptest.NewRequest(http.MethodGet, "/", nil)
	reqA.RemoteAddr = "1.1.1.1:1"
	reqB := httptest.NewRequest(http.MethodGet, "/", nil)
	reqB.RemoteAddr = "2.2.2.2:2"

	wA := httptest.NewRecorder()
	handler.ServeHTTP(wA, reqA)
	assert.Equal(t, http.StatusOK, wA.Code)

	wB := httptest.NewRecorder()
	handler.ServeHTTP(wB, reqB)
	assert.Equal(t, http.StatusOK, wB.Code)
}
