package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccount_HasUsablePassword(t *testing.T) {
	assert.False(t, (&Account{}).HasUsablePassword())
	assert.False(t, (&Account{PasswordHash: UnusablePasswordHash}).HasUsablePassword())
	assert.True(t, (&Account{PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"}).HasUsablePassword())
}

func TestAccount_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&Account{Username: "ada", FirstName: "Ada", LastName: "Lovelace"}).DisplayName())
	assert.Equal(t, "Ada", (&Account{Username: "ada", FirstName: "Ada"}).DisplayName())
	assert.Equal(t, "ada", (&Account{Username: "ada", LastName: "Lovelace"}).DisplayName())
}

func TestVerificationToken_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := &VerificationToken{ExpiresAt: now}

	assert.False(t, tok.Expired(now), "boundary instant is still valid")
	assert.True(t, tok.Expired(now.Add(time.Nanosecond)))
}

func TestNewProfile(t *testing.T) {
	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Account{ID: "id-1", Email: "a@x.com", Username: "a", FirstName: "A", LastName: "B",
		PasswordHash: "secret", IsEmailVerified: true, AvatarKey: "avatars/k", DateJoined: joined}

	p := NewProfile(a)

	assert.Equal(t, &Profile{ID: "id-1", Email: "a@x.com", Username: "a", FirstName: "A", LastName: "B",
		DateJoined: joined, IsEmailVerified: true}, p)
}
