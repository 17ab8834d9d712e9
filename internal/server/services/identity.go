package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/logging"
	"github.com/dmitrijs2005/todoauth/internal/server/config"
	"github.com/dmitrijs2005/todoauth/internal/server/google"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/repomanager"
)

const maxUsernameAttempts = 5

// IdentityService signs users in with a Google assertion, linking to an
// existing account by email or creating one.
type IdentityService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	verifier                    AssertionVerifier
	sessions                    *SessionService
	profiles                    profiles
	bridgeRequiresVerifiedLocal bool
	logger                      logging.Logger
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, verifier AssertionVerifier,
	sessions *SessionService, avatars AvatarStore, cfg *config.Config, logger logging.Logger) *IdentityService {

	logger = logger.With("module", "identity")
	return &IdentityService{
		db:                          db,
		repomanager:                 m,
		verifier:                    verifier,
		sessions:                    sessions,
		profiles:                    profiles{avatars: avatars, logger: logger},
		bridgeRequiresVerifiedLocal: cfg.BridgeRequiresVerifiedLocal,
		logger:                      logger,
	}
}

// VerifyAssertion confirms providerToken with Google.
func (s *IdentityService) VerifyAssertion(ctx context.Context, providerToken string) (*google.Identity, error) {
	if strings.TrimSpace(providerToken) == "" {
		return nil, common.NewValidationError("token", "Google token is required")
	}
	return s.verifier.Verify(ctx, providerToken)
}

// ResolveAccount maps a confirmed identity to a local account. An existing
// account with the same email is reused. If that account never verified its
// email, the provider assertion verifies it, unless bridging onto unverified
// accounts is disabled, in which case common.ErrBridgeConflict is returned.
func (s *IdentityService) ResolveAccount(ctx context.Context, id *google.Identity) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)
	email := common.NormalizeEmail(id.Email)

	account, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.bridge(ctx, account)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username, err := s.pickUsername(ctx, email, attempt)
		if err != nil {
			return nil, err
		}

		account, err = repo.Create(ctx, &models.Account{
			Email:           email,
			Username:        username,
			FirstName:       truncateRunes(id.GivenName, maxNameLength),
			LastName:        truncateRunes(id.FamilyName, maxNameLength),
			PasswordHash:    models.UnusablePasswordHash,
			IsActive:        true,
			IsEmailVerified: true,
		})
		switch {
		case err == nil:
			s.logger.Info(ctx, "account created from google identity", "account_id", account.ID)
			return account, nil
		case errors.Is(err, accounts.ErrDuplicateEmail):
			// Lost a race with a concurrent sign-in for the same email.
			existing, err := repo.GetByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			return s.bridge(ctx, existing)
		case errors.Is(err, accounts.ErrDuplicateUsername):
			continue
		default:
			return nil, err
		}
	}
	return nil, errors.New("could not allocate a unique username")
}

func (s *IdentityService) bridge(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.IsEmailVerified {
		return account, nil
	}
	if s.bridgeRequiresVerifiedLocal {
		return nil, common.ErrBridgeConflict
	}

	// Whoever registered the address never proved they own it, so the
	// password they chose must not keep working alongside Google sign-in.
	if err := s.repomanager.Accounts(s.db).VerifyAndResetPassword(ctx, account.ID); err != nil {
		return nil, err
	}
	account.IsEmailVerified = true
	account.IsActive = true
	account.PasswordHash = models.UnusablePasswordHash
	s.logger.Info(ctx, "unverified account verified by google sign-in, password reset", "account_id", account.ID)
	return account, nil
}

// pickUsername derives a username from the email local part; after the
// first attempt or on collision it appends a random suffix.
func (s *IdentityService) pickUsername(ctx context.Context, email string, attempt int) (string, error) {
	base := usernameBase(email)

	if attempt == 0 {
		taken, err := s.repomanager.Accounts(s.db).UsernameExists(ctx, base)
		if err != nil {
			return "", err
		}
		if !taken {
			return base, nil
		}
	}

	suffix, err := common.MakeRandHexString(3)
	if err != nil {
		return "", err
	}
	return truncateRunes(base, maxUsernameLength-len(suffix)-1) + "_" + suffix, nil
}

func usernameBase(email string) string {
	local, _, _ := strings.Cut(email, "@")

	var b strings.Builder
	for _, r := range local {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			b.WriteRune(r)
		}
	}
	base := truncateRunes(b.String(), maxUsernameLength)
	if base == "" {
		base = "user"
	}
	return base
}

// SignIn verifies providerToken, resolves the account and issues a session.
func (s *IdentityService) SignIn(ctx context.Context, providerToken string) (*LoginResult, error) {
	id, err := s.VerifyAssertion(ctx, providerToken)
	if err != nil {
		return nil, err
	}

	account, err := s.ResolveAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Issue(account)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: session, Profile: s.profiles.build(ctx, account)}, nil
}
