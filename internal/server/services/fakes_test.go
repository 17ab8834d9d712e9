package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/dbx"
	"github.com/dmitrijs2005/todoauth/internal/logging"
	"github.com/dmitrijs2005/todoauth/internal/server/auth"
	"github.com/dmitrijs2005/todoauth/internal/server/config"
	"github.com/dmitrijs2005/todoauth/internal/server/google"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/dmitrijs2005/todoauth/internal/server/notify"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/verificationtokens"
)

// --- in-memory repositories ---

// memStore backs both fake repositories. It ignores the DBTX it is bound
// to, so a rolled back transaction does not undo its writes.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	tokens   map[string]*models.VerificationToken

	createAccountErr error
	createTokenErr   error
	getByEmailErr    error
	markVerifiedErr  error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*models.Account),
		tokens:   make(map[string]*models.VerificationToken),
	}
}

func (s *memStore) account(id string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *memStore) accountByEmail(email string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (s *memStore) put(a *models.Account) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = "acc-" + a.Username
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return a
}

func (s *memStore) tokensFor(accountID string) []*models.VerificationToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.VerificationToken
	for _, t := range s.tokens {
		if t.AccountID == accountID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (s *memStore) unusedTokensFor(accountID string) []*models.VerificationToken {
	var out []*models.VerificationToken
	for _, t := range s.tokensFor(accountID) {
		if !t.IsUsed {
			out = append(out, t)
		}
	}
	return out
}

type memAccounts struct{ s *memStore }

func (r *memAccounts) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createAccountErr != nil {
		return nil, r.s.createAccountErr
	}
	for _, existing := range r.s.accounts {
		if existing.Email == a.Email {
			return nil, accounts.ErrDuplicateEmail
		}
		if existing.Username == a.Username {
			return nil, accounts.ErrDuplicateUsername
		}
	}
	if a.ID == "" {
		a.ID = "acc-" + a.Username
	}
	a.DateJoined = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cp := *a
	r.s.accounts[a.ID] = &cp
	return a, nil
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if a := r.s.account(id); a != nil {
		return a, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if r.s.getByEmailErr != nil {
		return nil, r.s.getByEmailErr
	}
	if a := r.s.accountByEmail(email); a != nil {
		return a, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) UsernameExists(ctx context.Context, username string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAccounts) MarkVerified(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.markVerifiedErr != nil {
		return r.s.markVerifiedErr
	}
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.IsEmailVerified, a.IsActive = true, true
	return nil
}

func (r *memAccounts) VerifyAndResetPassword(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.markVerifiedErr != nil {
		return r.s.markVerifiedErr
	}
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.IsEmailVerified, a.IsActive = true, true
	a.PasswordHash = models.UnusablePasswordHash
	return nil
}

func (r *memAccounts) UpdateProfile(ctx context.Context, id string, username, firstName, lastName string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	for _, other := range r.s.accounts {
		if other.ID != id && other.Username == username {
			return nil, accounts.ErrDuplicateUsername
		}
	}
	a.Username, a.FirstName, a.LastName = username, firstName, lastName
	cp := *a
	return &cp, nil
}

func (r *memAccounts) SetAvatarKey(ctx context.Context, id string, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.AvatarKey = key
	return nil
}

type memTokens struct{ s *memStore }

func (r *memTokens) Create(ctx context.Context, t *models.VerificationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createTokenErr != nil {
		return r.s.createTokenErr
	}
	if _, ok := r.s.tokens[t.Token]; ok {
		return common.ErrAlreadyExists
	}
	cp := *t
	r.s.tokens[t.Token] = &cp
	return nil
}

func (r *memTokens) Get(ctx context.Context, token string) (*models.VerificationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

// Claim mirrors the conditional UPDATE: one winner under the mutex.
func (r *memTokens) Claim(ctx context.Context, token string, now time.Time) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[token]
	if !ok || t.IsUsed || now.After(t.ExpiresAt) {
		return "", common.ErrorNotFound
	}
	t.IsUsed = true
	return t.AccountID, nil
}

func (r *memTokens) InvalidateUnused(ctx context.Context, accountID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.tokens {
		if t.AccountID == accountID && !t.IsUsed {
			t.IsUsed = true
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository     { return &memAccounts{m.s} }
func (m *fakeRepoManager) VerificationTokens(db dbx.DBTX) verificationtokens.Repository {
	return &memTokens{m.s}
}

// --- collaborators ---

// plainHasher stores "plain:<pw>" so tests can seed accounts by hand.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "plain:" + pw, nil }

func (plainHasher) Verify(pw, encoded string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, "plain:")
	if !ok {
		return false, errors.New("unknown hash format")
	}
	return stored == pw, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Verification
	err  error
}

func (n *fakeNotifier) SendVerification(ctx context.Context, v notify.Verification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, v)
	return nil
}

func (n *fakeNotifier) last(t *testing.T) notify.Verification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("no verification sent")
	}
	return n.sent[len(n.sent)-1]
}

type fakeVerifier struct {
	identity *google.Identity
	err      error
	calls    int
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (*google.Identity, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	cp := *v.identity
	return &cp, nil
}

type fakeAvatars struct {
	enabled  bool
	putErr   error
	getErr   error
	headErr  error
	uploaded map[string]bool
}

func (a *fakeAvatars) Enabled() bool { return a.enabled }

func (a *fakeAvatars) PresignUpload(ctx context.Context, key string) (string, error) {
	if a.putErr != nil {
		return "", a.putErr
	}
	return "https://s3.test/put/" + key, nil
}

func (a *fakeAvatars) PresignDownload(ctx context.Context, key string) (string, error) {
	if a.getErr != nil {
		return "", a.getErr
	}
	return "https://s3.test/get/" + key, nil
}

func (a *fakeAvatars) Exists(ctx context.Context, key string) (bool, error) {
	if a.headErr != nil {
		return false, a.headErr
	}
	return a.uploaded[key], nil
}

// --- harness ---

type harness struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	store    *memStore
	notifier *fakeNotifier
	verifier *fakeVerifier
	avatars  *fakeAvatars
	now      time.Time

	verification *VerificationService
	sessions     *SessionService
	accounts     *AccountService
	identity     *IdentityService
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.FrontendURL = "http://front.test/"
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		db:       db,
		mock:     mock,
		store:    newMemStore(),
		notifier: &fakeNotifier{},
		verifier: &fakeVerifier{},
		avatars:  &fakeAvatars{},
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := logging.Logger(logging.NewJSON(io.Discard, "debug"))
	rm := &fakeRepoManager{s: h.store}

	h.verification = NewVerificationService(db, rm, h.notifier, cfg, logger)
	h.verification.now = func() time.Time { return h.now }
	h.sessions = NewSessionService(auth.NewTokenManager([]byte("test-secret"), cfg.JWTIssuer,
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration))
	h.accounts = NewAccountService(db, rm, plainHasher{}, h.verification, h.sessions, h.avatars, logger)
	h.identity = NewIdentityService(db, rm, h.verifier, h.sessions, h.avatars, cfg, logger)
	return h
}

// expectTx registers a BEGIN followed by COMMIT.
func (h *harness) expectTx() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

// expectRollback registers a BEGIN followed by ROLLBACK.
func (h *harness) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func (h *harness) verifyMock(t *testing.T) {
	t.Helper()
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
