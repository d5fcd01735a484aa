package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akinrinmade/jara-daily/internal/store"
)

// Error codes carried in error bodies. The remote client maps them back to
// store sentinel errors.
const (
	CodePoolExhausted      = "pool_exhausted"
	CodePoolNotInitialized = "pool_not_initialized"
	CodeProfileNotFound    = "profile_not_found"
	CodeInvalidGrant       = "invalid_grant"
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeInternal           = "internal"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// storeError maps a store error onto a status and code.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrPoolExhausted):
		Error(w, http.StatusConflict, CodePoolExhausted, err.Error())
	case errors.Is(err, store.ErrPoolNotInitialized):
		Error(w, http.StatusServiceUnavailable, CodePoolNotInitialized, err.Error())
	case errors.Is(err, store.ErrProfileNotFound):
		Error(w, http.StatusNotFound, CodeProfileNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidGrant):
		Error(w, http.StatusBadRequest, CodeInvalidGrant, err.Error())
	default:
		Error(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
