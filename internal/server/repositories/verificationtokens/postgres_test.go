package verificationtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	qInsert     = `(?s)^INSERT\s+INTO\s+email_verification_tokens\s*\(token,\s*account_id,\s*created_at,\s*expires_at,\s*is_used\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*false\)\s*$`
	qGet        = `(?s)^SELECT\s+token,\s*account_id,\s*created_at,\s*expires_at,\s*is_used\s+FROM\s+email_verification_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	qClaim      = `(?s)^UPDATE\s+email_verification_tokens\s+SET\s+is_used\s*=\s*true\s+WHERE\s+token\s*=\s*\$1\s+AND\s+is_used\s*=\s*false\s+AND\s+expires_at\s*>=\s*\$2\s+RETURNING\s+account_id\s*$`
	qInvalidate = `(?s)^UPDATE\s+email_verification_tokens\s+SET\s+is_used\s*=\s*true\s+WHERE\s+account_id\s*=\s*\$1\s+AND\s+is_used\s*=\s*false\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := &models.VerificationToken{Token: "abc", AccountID: "acc-1", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}

	mock.ExpectExec(qInsert).WithArgs("abc", "acc-1", now, now.Add(24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qInsert).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectExec(qInsert).WillReturnError(errors.New("db down"))

	require.NoError(t, repo.Create(context.Background(), tok))
	assert.ErrorIs(t, repo.Create(context.Background(), tok), common.ErrAlreadyExists)
	assert.ErrorContains(t, repo.Create(context.Background(), tok), "db error: db down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(qGet).WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"token", "account_id", "created_at", "expires_at", "is_used"}).
			AddRow("abc", "acc-1", created, created.Add(24*time.Hour), true))
	mock.ExpectQuery(qGet).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	got, err := repo.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, &models.VerificationToken{
		Token: "abc", AccountID: "acc-1", CreatedAt: created, ExpiresAt: created.Add(24 * time.Hour), IsUsed: true,
	}, got)

	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestClaim(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(qClaim).WithArgs("abc", now).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("acc-1"))
	mock.ExpectQuery(qClaim).WithArgs("abc", now).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}))
	mock.ExpectQuery(qClaim).WithArgs("abc", now).WillReturnError(errors.New("db err"))

	id, err := repo.Claim(context.Background(), "abc", now)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)

	_, err = repo.Claim(context.Background(), "abc", now)
	assert.ErrorIs(t, err, common.ErrorNotFound, "second claim finds nothing")

	_, err = repo.Claim(context.Background(), "abc", now)
	assert.ErrorContains(t, err, "db error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateUnused(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(qInvalidate).WithArgs("acc-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(qInvalidate).WithArgs("acc-1").WillReturnError(errors.New("db err"))

	n, err := repo.InvalidateUnused(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.InvalidateUnused(context.Background(), "acc-1")
	assert.ErrorContains(t, err, "db error")
}
