// Package models defines server-side data models persisted in the database.
package models

import "time"

// UnusablePasswordHash marks accounts that cannot log in with a password,
// such as those created from a Google sign-in.
const UnusablePasswordHash = "!"

// Account is a registered user identity with credentials and verification
// state. IsActive gates login; IsEmailVerified records proof of mailbox
// control. An active account is always verified.
type Account struct {
	ID              string
	Email           string
	Username        string
	FirstName       string
	LastName        string
	PasswordHash    string
	IsActive        bool
	IsEmailVerified bool
	AvatarKey       string
	DateJoined      time.Time
}

// HasUsablePassword reports whether password login is possible at all.
func (a *Account) HasUsablePassword() bool {
	return a.PasswordHash != "" && a.PasswordHash != UnusablePasswordHash
}

// DisplayName is the name used to greet the user in notifications.
func (a *Account) DisplayName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	default:
		return a.Username
	}
}
