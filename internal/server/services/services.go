// Package services implements the authentication workflows on top of the
// repositories: registration, email verification, password login, session
// issuance and Google sign-in.
package services

import (
	"context"

	"github.com/dmitrijs2005/todoauth/internal/logging"
	"github.com/dmitrijs2005/todoauth/internal/server/auth"
	"github.com/dmitrijs2005/todoauth/internal/server/google"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
)

// PasswordHasher hashes and checks passwords. Implemented by password.Hasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// AvatarStore presigns avatar URLs. Implemented by storage.AvatarStore.
type AvatarStore interface {
	Enabled() bool
	PresignUpload(ctx context.Context, key string) (string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// AssertionVerifier confirms a third-party identity. Implemented by google.Verifier.
type AssertionVerifier interface {
	Verify(ctx context.Context, token string) (*google.Identity, error)
}

// LoginResult is an issued session plus the account's public profile.
type LoginResult struct {
	Session *auth.TokenPair
	Profile *models.Profile
}

// profiles projects accounts for clients, adding a presigned avatar URL
// when one can be produced.
type profiles struct {
	avatars AvatarStore
	logger  logging.Logger
}

func (p profiles) build(ctx context.Context, a *models.Account) *models.Profile {
	profile := models.NewProfile(a)
	if a.AvatarKey == "" || p.avatars == nil || !p.avatars.Enabled() {
		return profile
	}

	url, err := p.avatars.PresignDownload(ctx, a.AvatarKey)
	if err != nil {
		p.logger.Warn(ctx, "avatar presign failed", "account_id", a.ID, "error", err)
		return profile
	}
	profile.AvatarURL = url
	return profile
}
