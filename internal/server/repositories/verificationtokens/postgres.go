package verificationtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/dbx"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new token row.
func (r *PostgresRepository) Create(ctx context.Context, t *models.VerificationToken) error {
	query := `
		INSERT INTO email_verification_tokens (token, account_id, created_at, expires_at, is_used)
		VALUES ($1, $2, $3, $4, false)
	`
	if _, err := r.db.ExecContext(ctx, query, t.Token, t.AccountID, t.CreatedAt, t.ExpiresAt); err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the token row, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, token string) (*models.VerificationToken, error) {
	query := `
		SELECT token, account_id, created_at, expires_at, is_used
		FROM email_verification_tokens
		WHERE token = $1
	`
	t := &models.VerificationToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(&t.Token, &t.AccountID, &t.CreatedAt, &t.ExpiresAt, &t.IsUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Claim flips is_used in a single conditional UPDATE so the database decides
// the winner between concurrent consumers.
func (r *PostgresRepository) Claim(ctx context.Context, token string, now time.Time) (string, error) {
	query := `
		UPDATE email_verification_tokens SET is_used = true
		WHERE token = $1 AND is_used = false AND expires_at >= $2
		RETURNING account_id
	`
	var accountID string
	if err := r.db.QueryRowContext(ctx, query, token, now).Scan(&accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return accountID, nil
}

// InvalidateUnused supersedes all outstanding tokens of the account.
func (r *PostgresRepository) InvalidateUnused(ctx context.Context, accountID string) (int64, error) {
	query := `
		UPDATE email_verification_tokens SET is_used = true
		WHERE account_id = $1 AND is_used = false
	`
	res, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
