package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/dbx"
	"github.com/dmitrijs2005/todoauth/internal/logging"
	"github.com/dmitrijs2005/todoauth/internal/server/config"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/dmitrijs2005/todoauth/internal/server/notify"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/verificationtokens"
)

// IssueResult reports an issued token and whether the notification went
// out. Sent=false is a partial success: the token is stored and valid.
type IssueResult struct {
	Token *models.VerificationToken
	URL   string
	Sent  bool
}

// VerificationService issues, consumes and reissues email verification
// tokens.
type VerificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    notify.Notifier
	ttl         time.Duration
	frontendURL string
	logger      logging.Logger
	now         func() time.Time
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, n notify.Notifier, cfg *config.Config, logger logging.Logger) *VerificationService {
	return &VerificationService{
		db:          db,
		repomanager: m,
		notifier:    n,
		ttl:         cfg.VerificationTokenValidityDuration,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		logger:      logger.With("module", "verification"),
		now:         time.Now,
	}
}

// Issue stores a new token for account and dispatches the link.
// Only a storage failure is returned as an error.
func (s *VerificationService) Issue(ctx context.Context, account *models.Account) (*IssueResult, error) {
	token, err := s.persist(ctx, s.db, account)
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, account, token), nil
}

// persist creates the token row through db, which may be a transaction.
func (s *VerificationService) persist(ctx context.Context, db dbx.DBTX, account *models.Account) (*models.VerificationToken, error) {
	id, err := common.MakeRandHexString(common.VerificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating verification token: %w", err)
	}

	now := s.now()
	token := &models.VerificationToken{
		Token:     id,
		AccountID: account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.repomanager.VerificationTokens(db).Create(ctx, token); err != nil {
		return nil, fmt.Errorf("error creating verification token: %w", err)
	}
	return token, nil
}

// dispatch sends the link. It must run after the token is committed.
func (s *VerificationService) dispatch(ctx context.Context, account *models.Account, token *models.VerificationToken) *IssueResult {
	res := &IssueResult{
		Token: token,
		URL:   s.frontendURL + "/verify-email/" + token.Token,
		Sent:  true,
	}

	err := s.notifier.SendVerification(ctx, notify.Verification{
		Email:     account.Email,
		Name:      account.DisplayName(),
		URL:       res.URL,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		s.logger.Warn(ctx, "verification dispatch failed", "account_id", account.ID, "error", err)
		res.Sent = false
	}
	return res
}

// Consume redeems a token and activates its account. A missing or already
// used token gives common.ErrorNotFound; an unused one past its expiry gives
// common.ErrTokenExpired and is left as is.
func (s *VerificationService) Consume(ctx context.Context, tokenID string) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return common.NewValidationError("token", "Token is required")
	}
	if !common.IsHexToken(strings.ToLower(tokenID), common.VerificationTokenBytes) {
		return common.NewValidationError("token", "Invalid verification token")
	}
	tokenID = strings.ToLower(tokenID)

	now := s.now()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.VerificationTokens(tx)

		accountID, err := tokens.Claim(ctx, tokenID, now)
		if errors.Is(err, common.ErrorNotFound) {
			return s.explainUnclaimed(ctx, tokens, tokenID, now)
		}
		if err != nil {
			return err
		}

		return s.repomanager.Accounts(tx).MarkVerified(ctx, accountID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "email verified", "token_prefix", tokenID[:8])
	return nil
}

// explainUnclaimed tells an expired token apart from a missing or used one.
func (s *VerificationService) explainUnclaimed(ctx context.Context, tokens verificationtokens.Repository, tokenID string, now time.Time) error {
	t, err := tokens.Get(ctx, tokenID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrorNotFound
	case err != nil:
		return err
	case !t.IsUsed && t.Expired(now):
		return common.ErrTokenExpired
	default:
		return common.ErrorNotFound
	}
}

// Reissue supersedes every unused token of the account behind email and
// issues a fresh one.
func (s *VerificationService) Reissue(ctx context.Context, email string) (*IssueResult, error) {
	email = common.NormalizeEmail(email)
	if email == "" {
		return nil, common.NewValidationError("email", "Email is required")
	}

	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account.IsEmailVerified {
		return nil, common.ErrAlreadyVerified
	}

	var token *models.VerificationToken
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.VerificationTokens(tx).InvalidateUnused(ctx, account.ID)
		if err != nil {
			return err
		}
		s.logger.Debug(ctx, "superseded verification tokens", "account_id", account.ID, "count", n)

		token, err = s.persist(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.dispatch(ctx, account, token), nil
}
