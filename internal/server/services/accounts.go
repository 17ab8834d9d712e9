package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/dbx"
	"github.com/dmitrijs2005/todoauth/internal/logging"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/todoauth/internal/server/storage"
)

type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	PasswordConfirm *string
	FirstName       string
	LastName        string
}

type RegisterResult struct {
	Account   *models.Account
	EmailSent bool
}

// ProfileUpdate holds optional profile changes; nil fields are kept.
type ProfileUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// AccountService registers accounts, checks passwords and serves profiles.
type AccountService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	hasher       PasswordHasher
	verification *VerificationService
	sessions     *SessionService
	avatars      AvatarStore
	profiles     profiles
	logger       logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher,
	verification *VerificationService, sessions *SessionService, avatars AvatarStore, logger logging.Logger) *AccountService {

	logger = logger.With("module", "accounts")
	return &AccountService{
		db:           db,
		repomanager:  m,
		hasher:       hasher,
		verification: verification,
		sessions:     sessions,
		avatars:      avatars,
		profiles:     profiles{avatars: avatars, logger: logger},
		logger:       logger,
	}
}

// Register creates an inactive, unverified account and sends it a
// verification link. Field problems come back as *common.ValidationError.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Email = common.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	v := &common.ValidationError{}
	switch {
	case in.Email == "":
		v.Add("email", msgRequired)
	case !common.IsValidEmail(in.Email):
		v.Add("email", msgInvalidEmail)
	}
	validateUsername(v, in.Username)
	confirm := ""
	if in.PasswordConfirm != nil {
		confirm = *in.PasswordConfirm
	}
	validatePassword(v, in.Password, confirm, in.PasswordConfirm != nil)
	validateName(v, "first_name", in.FirstName)
	validateName(v, "last_name", in.LastName)
	if !v.Empty() {
		return nil, v
	}

	repo := s.repomanager.Accounts(s.db)
	if _, err := repo.GetByEmail(ctx, in.Email); err == nil {
		v.Add("email", msgEmailTaken)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	taken, err := repo.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		v.Add("username", msgUsernameTaken)
	}
	if !v.Empty() {
		return nil, v
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	account := &models.Account{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}

	var token *models.VerificationToken
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if account, err = s.repomanager.Accounts(tx).Create(ctx, account); err != nil {
			return err
		}
		token, err = s.verification.persist(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, duplicateAsValidation(err)
	}

	issued := s.verification.dispatch(ctx, account, token)
	s.logger.Info(ctx, "account registered", "account_id", account.ID, "email_sent", issued.Sent)

	return &RegisterResult{Account: account, EmailSent: issued.Sent}, nil
}

// duplicateAsValidation turns a unique-constraint race into the same field
// error the pre-checks produce.
func duplicateAsValidation(err error) error {
	switch {
	case errors.Is(err, accounts.ErrDuplicateEmail):
		return common.NewValidationError("email", msgEmailTaken)
	case errors.Is(err, accounts.ErrDuplicateUsername):
		return common.NewValidationError("username", msgUsernameTaken)
	}
	return err
}

// Authenticate checks email and password. The verification state is only
// revealed once the password has matched.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	email = common.NormalizeEmail(email)
	if email == "" || password == "" {
		v := &common.ValidationError{}
		if email == "" {
			v.Add("email", msgRequired)
		}
		if password == "" {
			v.Add("password", msgRequired)
		}
		return nil, v
	}

	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownAccount
		}
		return nil, err
	}

	if !account.HasUsablePassword() {
		return nil, common.ErrInvalidCredential
	}
	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		s.logger.Warn(ctx, "stored password hash unreadable", "account_id", account.ID, "error", err)
		return nil, common.ErrInvalidCredential
	}
	if !ok {
		return nil, common.ErrInvalidCredential
	}

	if !account.IsEmailVerified {
		return nil, common.ErrEmailNotVerified
	}
	if !account.IsActive {
		return nil, common.ErrInvalidCredential
	}

	session, err := s.sessions.Issue(account)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: session, Profile: s.profiles.build(ctx, account)}, nil
}

// Profile returns the public profile of accountID.
func (s *AccountService) Profile(ctx context.Context, accountID string) (*models.Profile, error) {
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.profiles.build(ctx, account), nil
}

// UpdateProfile changes the username and display names.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, in ProfileUpdate) (*models.Profile, error) {
	repo := s.repomanager.Accounts(s.db)

	account, err := repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	username, firstName, lastName := account.Username, account.FirstName, account.LastName
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
	}
	if in.FirstName != nil {
		firstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		lastName = strings.TrimSpace(*in.LastName)
	}

	v := &common.ValidationError{}
	validateUsername(v, username)
	validateName(v, "first_name", firstName)
	validateName(v, "last_name", lastName)
	if !v.Empty() {
		return nil, v
	}

	if username != account.Username {
		taken, err := repo.UsernameExists(ctx, username)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, common.NewValidationError("username", msgUsernameTaken)
		}
	}

	account, err = repo.UpdateProfile(ctx, accountID, username, firstName, lastName)
	if err != nil {
		return nil, duplicateAsValidation(err)
	}
	return s.profiles.build(ctx, account), nil
}

// AvatarUploadURL presigns an upload for a fresh avatar object. The account
// keeps its current avatar until ConfirmAvatar is called for the new key.
func (s *AccountService) AvatarUploadURL(ctx context.Context, accountID string) (string, string, error) {
	if s.avatars == nil || !s.avatars.Enabled() {
		return "", "", fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, storage.ErrNotConfigured)
	}

	key := storage.NewKey(accountID)
	url, err := s.avatars.PresignUpload(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	return key, url, nil
}

// ConfirmAvatar points the account at key once the object exists in the
// bucket. Keys outside the account's prefix are rejected.
func (s *AccountService) ConfirmAvatar(ctx context.Context, accountID, key string) (*models.Profile, error) {
	if s.avatars == nil || !s.avatars.Enabled() {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, storage.ErrNotConfigured)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, common.NewValidationError("key", msgRequired)
	}
	name, ok := strings.CutPrefix(key, storage.KeyPrefix(accountID))
	if !ok || name == "" || strings.Contains(name, "/") {
		return nil, common.NewValidationError("key", msgAvatarKey)
	}

	exists, err := s.avatars.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	if !exists {
		return nil, common.NewValidationError("key", msgAvatarMissing)
	}

	repo := s.repomanager.Accounts(s.db)
	if err := repo.SetAvatarKey(ctx, accountID, key); err != nil {
		return nil, err
	}
	account, err := repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "avatar updated", "account_id", accountID)
	return s.profiles.build(ctx, account), nil
}
