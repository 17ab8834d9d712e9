// Package verificationtokens declares the email verification token store
// and its PostgreSQL implementation.
package verificationtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/todoauth/internal/server/models"
)

// Repository persists single-use verification tokens. Rows are never deleted.
type Repository interface {
	// Create inserts t as an unused token.
	Create(ctx context.Context, t *models.VerificationToken) error

	// Get returns the token row regardless of its state.
	Get(ctx context.Context, token string) (*models.VerificationToken, error)

	// Claim atomically marks an unused, unexpired token as used and returns
	// its owner. When nothing was claimed it returns common.ErrorNotFound;
	// of two concurrent callers at most one succeeds.
	Claim(ctx context.Context, token string, now time.Time) (accountID string, err error)

	// InvalidateUnused marks every unused token of the account as used and
	// reports how many were affected.
	InvalidateUnused(ctx context.Context, accountID string) (int64, error)
}
