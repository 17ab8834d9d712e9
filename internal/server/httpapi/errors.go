package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/todoauth/internal/common"
)

const msgUnavailable = "Service may be unavailable. Please try again later."

// apiError is the JSON error body: {"error": ..., "code": ...} plus any
// endpoint-specific fields.
type apiError struct {
	status  int
	code    string
	message string
	extra   map[string]any
}

var errorTable = []struct {
	target error
	apiError
}{
	{common.ErrTokenExpired, apiError{status: http.StatusBadRequest, code: "expired", message: "Token has expired"}},
	{common.ErrAlreadyVerified, apiError{status: http.StatusBadRequest, code: "already_verified", message: "Email is already verified"}},
	{common.ErrUnknownAccount, apiError{status: http.StatusUnauthorized, code: "unknown_account", message: "No account found with this email address."}},
	{common.ErrInvalidCredential, apiError{status: http.StatusUnauthorized, code: "invalid_credential", message: "Incorrect password. Please try again."}},
	{common.ErrEmailNotVerified, apiError{status: http.StatusForbidden, code: "email_not_verified", message: "Please verify your email address before logging in."}},
	{common.ErrInvalidAssertion, apiError{status: http.StatusBadRequest, code: "invalid_assertion", message: "Invalid Google token"}},
	{common.ErrInvalidToken, apiError{status: http.StatusUnauthorized, code: "invalid_token", message: "Given token not valid for any token type"}},
	{common.ErrBridgeConflict, apiError{status: http.StatusConflict, code: "bridge_conflict", message: "An account with this email exists but its email is not verified."}},
	{common.ErrorNotFound, apiError{status: http.StatusNotFound, code: "not_found", message: "Not found."}},
	{common.ErrUpstreamUnavailable, apiError{status: http.StatusServiceUnavailable, code: "upstream_unavailable", message: msgUnavailable}},
}

// errorFor maps a service error onto its HTTP representation. Anything
// unrecognized becomes a 503 with a generic message.
func errorFor(err error) apiError {
	var v *common.ValidationError
	if errors.As(err, &v) {
		e := apiError{status: http.StatusBadRequest, code: "validation_error", message: "Invalid input."}
		if len(v.Fields) == 1 {
			for _, msg := range v.Fields {
				e.message = msg
			}
		}
		e.extra = map[string]any{"errors": v.Fields}
		return e
	}

	for _, row := range errorTable {
		if errors.Is(err, row.target) {
			return row.apiError
		}
	}
	return apiError{status: http.StatusServiceUnavailable, code: "internal", message: msgUnavailable}
}

func (e apiError) body() map[string]any {
	b := map[string]any{"error": e.message, "code": e.code}
	for k, v := range e.extra {
		b[k] = v
	}
	return b
}

// writeError logs err when it maps to a server-side failure and writes the
// mapped body. The cause is never echoed to the client.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, e apiError, cause error) {
	if e.status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			"request_id", requestIDFrom(r.Context()), "path", r.URL.Path, "code", e.code, "error", cause)
	}
	writeJSON(w, e.status, e.body())
}

// fail writes the default mapping for err.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, errorFor(err), err)
}
