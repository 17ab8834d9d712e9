package models

import "time"

// Profile is the public projection of an Account returned to clients.
type Profile struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	DateJoined      time.Time `json:"date_joined"`
	IsEmailVerified bool      `json:"is_email_verified"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
}

// NewProfile projects a without an avatar URL; callers that can presign fill
// AvatarURL themselves.
func NewProfile(a *Account) *Profile {
	return &Profile{
		ID:              a.ID,
		Email:           a.Email,
		Username:        a.Username,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		DateJoined:      a.DateJoined,
		IsEmailVerified: a.IsEmailVerified,
	}
}
