package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/logging"
	"github.com/dmitrijs2005/todoauth/internal/server/auth"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/dmitrijs2005/todoauth/internal/server/services"
)

const validAccess = "access-ok"

type fakeAccounts struct {
	registerIn  services.RegisterInput
	registerRes *services.RegisterResult
	registerErr error

	loginRes *services.LoginResult
	loginErr error

	profile    *models.Profile
	profileErr error
	update     services.ProfileUpdate

	avatarKey, avatarURL string
	avatarErr            error
	confirmedKey         string
	confirmErr           error
	panicOnProfile       bool
}

func (f *fakeAccounts) Register(ctx context.Context, in services.RegisterInput) (*services.RegisterResult, error) {
	f.registerIn = in
	return f.registerRes, f.registerErr
}

func (f *fakeAccounts) Authenticate(ctx context.Context, email, password string) (*services.LoginResult, error) {
	return f.loginRes, f.loginErr
}

func (f *fakeAccounts) Profile(ctx context.Context, accountID string) (*models.Profile, error) {
	if f.panicOnProfile {
		panic("boom")
	}
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p := *f.profile
	p.ID = accountID
	return &p, nil
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, accountID string, in services.ProfileUpdate) (*models.Profile, error) {
	f.update = in
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeAccounts) AvatarUploadURL(ctx context.Context, accountID string) (string, string, error) {
	return f.avatarKey, f.avatarURL, f.avatarErr
}

func (f *fakeAccounts) ConfirmAvatar(ctx context.Context, accountID, key string) (*models.Profile, error) {
	f.confirmedKey = key
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	p := *f.profile
	p.ID = accountID
	p.AvatarURL = "https://s3.test/get/" + key
	return &p, nil
}

type fakeVerification struct {
	consumed  string
	err       error
	reissue   *services.IssueResult
	reissueTo string
}

func (f *fakeVerification) Consume(ctx context.Context, token string) error {
	f.consumed = token
	return f.err
}

func (f *fakeVerification) Reissue(ctx context.Context, email string) (*services.IssueResult, error) {
	f.reissueTo = email
	if f.err != nil {
		return nil, f.err
	}
	return f.reissue, nil
}

// fakeSessions accepts validAccess as the token of account "acc-1".
type fakeSessions struct {
	refreshErr error
}

func (f *fakeSessions) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &auth.TokenPair{AccessToken: "new-access", AccessExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeSessions) Authenticate(accessToken string) (string, error) {
	if accessToken != validAccess {
		return "", common.ErrInvalidToken
	}
	return "acc-1", nil
}

type fakeIdentity struct {
	res *services.LoginResult
	err error
}

func (f *fakeIdentity) SignIn(ctx context.Context, providerToken string) (*services.LoginResult, error) {
	return f.res, f.err
}

type fixture struct {
	accounts     *fakeAccounts
	verification *fakeVerification
	sessions     *fakeSessions
	identity     *fakeIdentity
	pingErr      error
	server       *HTTPServer
}

func newFixture() *fixture {
	f := &fixture{
		accounts:     &fakeAccounts{profile: &models.Profile{Email: "a@x.com", Username: "a"}},
		verification: &fakeVerification{},
		sessions:     &fakeSessions{},
		identity:     &fakeIdentity{},
	}
	f.server = NewHTTPServer("127.0.0.1:0", "/api/auth", time.Second, logging.Nop{}, Services{
		Accounts:     f.accounts,
		Verification: f.verification,
		Sessions:     f.sessions,
		Identity:     f.identity,
		DB:           pingFunc(func(ctx context.Context) error { return f.pingErr }),
	})
	return f
}

type pingFunc func(ctx context.Context) error

func (p pingFunc) PingContext(ctx context.Context) error { return p(ctx) }

var errBoom = errors.New("boom")
