package models

import "time"

// VerificationToken is a single-use, time-limited credential proving control
// of an email address. Rows are never deleted; IsUsed only goes false→true.
type VerificationToken struct {
	Token     string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
	IsUsed    bool
}

// Expired reports whether the token is past its TTL at now.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
