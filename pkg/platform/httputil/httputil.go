// Package httputil holds the shared JSON response and decoding helpers used
// by every HTTP handler.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "traceport/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

// Validator lets request DTOs hook their own validation into Decode.
type Validator interface {
	Validate() error
}

// errorResponse is the shared error body. The description is omitted for
// server-side failures so internals never leak to callers.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteError maps a domain error to its HTTP status and standard error body.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.ToHTTPStatus(err)

	resp := errorResponse{Error: string(dErrors.CodeInternal)}
	var de *dErrors.Error
	if errors.As(err, &de) {
		resp.Error = string(de.Code)
		if status < http.StatusInternalServerError {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// Decode reads and validates a JSON request body. On failure it writes a
// bad_request response and reports false.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return req, false
	}

	if v, ok := any(req).(Validator); ok {
		if err := v.Validate(); err != nil {
			WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error()))
			return req, false
		}
	}
	return req, true
}
