package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/dbx"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/google/uuid"
)

const (
	emailConstraint    = "accounts_email_key"
	usernameConstraint = "accounts_username_key"
)

var (
	ErrDuplicateEmail    = fmt.Errorf("email %w", common.ErrAlreadyExists)
	ErrDuplicateUsername = fmt.Errorf("username %w", common.ErrAlreadyExists)
)

const accountColumns = `id, email, username, first_name, last_name, password_hash,
		 is_active, is_email_verified, avatar_key, date_joined`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO accounts (id, email, username, first_name, last_name, password_hash, is_active, is_email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING date_joined
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Email, a.Username, a.FirstName, a.LastName, a.PasswordHash, a.IsActive, a.IsEmailVerified).
		Scan(&a.DateJoined)

	if err != nil {
		switch {
		case dbx.IsUniqueViolation(err, emailConstraint):
			return nil, ErrDuplicateEmail
		case dbx.IsUniqueViolation(err, usernameConstraint):
			return nil, ErrDuplicateUsername
		case dbx.IsUniqueViolation(err, ""):
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM accounts
		 WHERE id = $1
		 `
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM accounts
		 WHERE email = $1
		 `
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts SET is_email_verified = true, is_active = true
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) VerifyAndResetPassword(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts SET is_email_verified = true, is_active = true, password_hash = $2
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id, models.UnusablePasswordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, username, firstName, lastName string) (*models.Account, error) {
	query :=
		`UPDATE accounts SET username = $2, first_name = $3, last_name = $4
		 WHERE id = $1
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id, username, firstName, lastName))
	if dbx.IsUniqueViolation(err, usernameConstraint) {
		return nil, ErrDuplicateUsername
	}
	return a, err
}

func (r *PostgresRepository) SetAvatarKey(ctx context.Context, id string, key string) error {
	query :=
		`UPDATE accounts SET avatar_key = $2
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.FirstName, &a.LastName, &a.PasswordHash,
		&a.IsActive, &a.IsEmailVerified, &a.AvatarKey, &a.DateJoined)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
