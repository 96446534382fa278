// Package httputil provides JSON response helpers shared by the request
// surface: success/error envelopes and request parameter parsing.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/gorilla/mux"
)

// ErrorBody is the wire shape of the "error" field in an error envelope.
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorEnvelope is the full error response body: {error:{...}}.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// DataEnvelope wraps a successful payload: {data:...}.
type DataEnvelope struct {
	Data interface{} `json:"data"`
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a successful {data:...} envelope.
func WriteData(w http.ResponseWriter, status int, v interface{}) {
	WriteJSON(w, status, DataEnvelope{Data: v})
}

// WriteError maps err to a ServiceError (falling back to internal) and
// writes the {error:{...}} envelope with the appropriate status code and,
// for rate-limit errors, a Retry-After header.
func WriteError(w http.ResponseWriter, err error) {
	svcErr := toServiceError(err)

	if svcErr.Code == svcerrors.CodeRateLimited {
		if ra, ok := svcErr.Details["retry_after_seconds"]; ok {
			if secs, ok := ra.(int); ok {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
		}
	}

	WriteJSON(w, svcErr.HTTPStatus, ErrorEnvelope{Error: ErrorBody{
		Code:    string(svcErr.Code),
		Message: svcErr.Message,
		Details: svcErr.Details,
	}})
}

func toServiceError(err error) *svcerrors.ServiceError {
	if svcErr, ok := svcerrors.As(err); ok {
		return svcErr
	}

	switch {
	case errors.Is(err, svcerrors.ErrSessionNotFound):
		return svcerrors.SessionNotFound("")
	case errors.Is(err, svcerrors.ErrConflict):
		return svcerrors.Conflict(0, 0)
	case errors.Is(err, svcerrors.ErrInvalidTransition):
		return svcerrors.InvalidTransition("", "")
	case errors.Is(err, svcerrors.ErrValidation):
		return svcerrors.ValidationError(err.Error(), nil)
	case errors.Is(err, svcerrors.ErrStoreUnavailable):
		return svcerrors.StoreUnavailable("", err)
	case errors.Is(err, svcerrors.ErrStateCorrupt):
		return svcerrors.StateCorrupt("", err)
	default:
		return svcerrors.Internal("internal error", err)
	}
}

// DecodeJSON decodes the request body into v, rejecting unknown fields
// and surfacing a ValidationError on malformed JSON or an oversized body
// (see middleware.BodyLimit, which wraps the body in http.MaxBytesReader).
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return svcerrors.ValidationError("request body too large", nil)
		}
		return svcerrors.ValidationError("malformed request body: "+err.Error(), nil)
	}
	return nil
}

// PathParam returns the named mux path parameter.
func PathParam(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// QueryInt parses a query parameter as an int, returning fallback when
// absent or malformed.
func QueryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// QueryString returns a query parameter, or fallback when absent.
func QueryString(r *http.Request, name, fallback string) string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	return v
}
