// Package httpx contains the JSON request/response plumbing shared by every
// handler: decoding, the error taxonomy, and the boundary that serializes any
// error to an {"error": ...} body.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Error is an HTTP-mapped error. Services return domain errors; routers wrap
// them into Errors at the boundary.
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e Error) Error() string { return e.Message }

// NewError creates an HTTP error with an explicit status code.
func NewError(code int, format string, args ...any) Error {
	return Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrAuthenticationRequired = Error{Code: http.StatusUnauthorized, Message: "Authentication required"}
	ErrInvalidAuthentication  = Error{Code: http.StatusUnauthorized, Message: "Invalid authentication"}
	ErrAdminOnly              = Error{Code: http.StatusForbidden, Message: "Admin access required"}
	ErrNotFound               = Error{Code: http.StatusNotFound, Message: "Not found"}
	ErrInternal               = Error{Code: http.StatusInternalServerError, Message: "Internal server error"}
)

// BadRequest builds a 400 with a field-specific message.
func BadRequest(msg string) Error {
	return Error{Code: http.StatusBadRequest, Message: msg}
}

// Upstream mirrors a payment provider's HTTP status, passing its message
// through unchanged.
func Upstream(status int, msg string) Error {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return Error{Code: status, Message: msg}
}

// JSON writes a JSON body with the given status.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK writes a 200 JSON body.
func OK(w http.ResponseWriter, body any) {
	JSON(w, http.StatusOK, body)
}

// RespondError maps err to the taxonomy and writes the {"error"} body.
// Unclassified errors become 500s with a generic message; the cause is logged,
// not leaked.
func RespondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var httpErr Error
	if !errors.As(err, &httpErr) {
		httpErr = ErrInternal
		log.ErrorContext(r.Context(), "unhandled error", "error", err, "path", r.URL.Path)
	} else if httpErr.Code >= 500 {
		log.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
	}
	JSON(w, httpErr.Code, httpErr)
}

// Decode reads a JSON request body into v. A malformed body is a 400.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return BadRequest("Invalid request body")
	}
	return nil
}
