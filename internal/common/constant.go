// Package common contains shared constants and sentinel errors used across
// the auth server components.
package common

const (
	// AuthorizationHeaderName carries the bearer access token on inbound requests.
	AuthorizationHeaderName = "Authorization"

	// RequestIDHeaderName is echoed back on every response.
	RequestIDHeaderName = "X-Request-Id"

	// VerificationTokenBytes is the entropy of a verification token (256 bits).
	VerificationTokenBytes = 32
)
