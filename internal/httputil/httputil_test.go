package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDataEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteData(w, http.StatusOK, map[string]string{"session_id": "abc"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data"`)
	assert.Contains(t, w.Body.String(), `"session_id":"abc"`)
}

func TestWriteErrorMapsServiceError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, svcerrors.Conflict(5, 6))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"CONFLICT"`)
	assert.Contains(t, w.Body.String(), `"expected_version":5`)
}

func TestWriteErrorSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, svcerrors.RateLimited(7))

	require.Equal(t, "7", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestWriteErrorFallsBackToInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, assertError("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"INTERNAL"`)
}

type assertError string

func (e assertError) Error() string { return string(e) }
