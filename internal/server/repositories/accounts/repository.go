// Package accounts declares the account repository contract and its
// PostgreSQL implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/todoauth/internal/server/models"
)

// Repository defines persistence operations for accounts. Emails are passed
// already normalized; lookups are exact.
type Repository interface {
	// Create inserts a, assigning an ID when empty. A taken email or username
	// yields ErrDuplicateEmail or ErrDuplicateUsername.
	Create(ctx context.Context, a *models.Account) (*models.Account, error)

	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// MarkVerified sets is_email_verified and is_active together.
	MarkVerified(ctx context.Context, id string) error

	// VerifyAndResetPassword marks the account verified and replaces its
	// password hash with the unusable marker in one statement.
	VerifyAndResetPassword(ctx context.Context, id string) error

	UpdateProfile(ctx context.Context, id string, username, firstName, lastName string) (*models.Account, error)
	SetAvatarKey(ctx context.Context, id string, key string) error
}
