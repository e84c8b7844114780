package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/negotiation"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxBody caps request bodies.
const maxBody = 1 << 20

func newRequestID() string { return "req_" + uuid.NewString() }

// withRequestID adopts the caller's request id or assigns one, echoes it and
// stores it for the audit log.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(negotiation.WithRequestID(r.Context(), id)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// StatusFor maps an engine error kind onto an HTTP status.
func StatusFor(kind model.Kind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindVersionConflict, model.KindIllegalTransition:
		return http.StatusConflict
	case model.KindOutOfBounds, model.KindLockedFieldMutation, model.KindInvalidMode:
		return http.StatusUnprocessableEntity
	case model.KindQuotaExhausted, model.KindRateLimited:
		return http.StatusTooManyRequests
	case model.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Key     string            `json:"key,omitempty"`
	Hint    string            `json:"hint,omitempty"`
	Fields  model.FieldErrors `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	writeJSON(w, status, map[string]any{
		"request_id": negotiation.RequestID(r.Context()),
		"error":      body,
	})
}

// fail writes err with the status its kind maps to. Untyped errors are
// internal.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if me, ok := model.AsError(err); ok {
		writeError(w, r, StatusFor(me.Kind), errorBody{
			Code:    string(me.Kind),
			Message: me.Reason,
			Key:     me.Key,
			Hint:    me.Hint,
			Fields:  me.Fields,
		})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, r, http.StatusServiceUnavailable, errorBody{Code: "unavailable", Message: err.Error()})
		return
	}
	h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
		"request_id", negotiation.RequestID(r.Context()), "error", err)
	writeError(w, r, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"})
}

func badJSON(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, errorBody{Code: "bad_json", Message: err.Error()})
}

func (h *Handler) ok(w http.ResponseWriter, r *http.Request, status int, key string, v any) {
	writeJSON(w, status, map[string]any{
		"request_id": negotiation.RequestID(r.Context()),
		key:          v,
	})
}
