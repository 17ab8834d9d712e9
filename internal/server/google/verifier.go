// Package google verifies Google sign-in assertions: ID tokens from the web
// client and OAuth2 access tokens from the mobile client.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/dmitrijs2005/todoauth/internal/common"
	"golang.org/x/oauth2"
)

const (
	DefaultIssuer      = "https://accounts.google.com"
	DefaultJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Google issues ID tokens under either issuer spelling.
var validIssuers = map[string]struct{}{
	"https://accounts.google.com": {},
	"accounts.google.com":         {},
}

// Identity is a provider-confirmed external identity.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	FamilyName    string
}

type Config struct {
	ClientID           string
	AcceptAccessTokens bool
	JWKSURL            string
	UserInfoURL        string
	HTTPClient         *http.Client
}

// Verifier checks provider tokens. It is safe for concurrent use; the JWKS
// is fetched lazily and cached by go-oidc.
type Verifier struct {
	clientID           string
	acceptAccessTokens bool
	idTokens           *oidc.IDTokenVerifier
	provider           *oidc.Provider
	httpClient         *http.Client
}

// NewVerifier builds a Verifier against Google's published endpoints. ctx
// must outlive the Verifier: go-oidc uses it for background key fetches.
func NewVerifier(ctx context.Context, cfg Config) *Verifier {
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultJWKSURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}

	provider := (&oidc.ProviderConfig{
		IssuerURL:   DefaultIssuer,
		JWKSURL:     cfg.JWKSURL,
		UserInfoURL: cfg.UserInfoURL,
		Algorithms:  []string{oidc.RS256},
	}).NewProvider(ctx)

	return newVerifier(cfg, provider, provider.Verifier(idTokenConfig(cfg.ClientID)))
}

func newVerifier(cfg Config, provider *oidc.Provider, idTokens *oidc.IDTokenVerifier) *Verifier {
	return &Verifier{
		clientID:           cfg.ClientID,
		acceptAccessTokens: cfg.AcceptAccessTokens,
		idTokens:           idTokens,
		provider:           provider,
		httpClient:         cfg.HTTPClient,
	}
}

// The issuer is checked by hand against both spellings.
func idTokenConfig(clientID string) *oidc.Config {
	return &oidc.Config{ClientID: clientID, SkipIssuerCheck: true}
}

// Verify returns the identity behind token. Rejections wrap
// common.ErrInvalidAssertion; failures to reach Google wrap
// common.ErrUpstreamUnavailable.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", common.ErrInvalidAssertion)
	}
	if v.clientID == "" {
		return nil, fmt.Errorf("%w: google sign-in is not configured", common.ErrUpstreamUnavailable)
	}

	var (
		id  *Identity
		err error
	)
	switch {
	case looksLikeJWT(token):
		id, err = v.verifyIDToken(ctx, token)
	case v.acceptAccessTokens:
		id, err = v.verifyAccessToken(ctx, token)
	default:
		return nil, fmt.Errorf("%w: not an ID token", common.ErrInvalidAssertion)
	}
	if err != nil {
		return nil, err
	}

	if id.Email == "" {
		return nil, fmt.Errorf("%w: no email in assertion", common.ErrInvalidAssertion)
	}
	if !id.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified by provider", common.ErrInvalidAssertion)
	}
	id.Email = common.NormalizeEmail(id.Email)
	return id, nil
}

type idTokenClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
}

func (v *Verifier) verifyIDToken(ctx context.Context, raw string) (*Identity, error) {
	ctx = v.clientContext(ctx)

	tok, err := v.idTokens.Verify(ctx, raw)
	if err != nil {
		return nil, classify(err)
	}
	if _, ok := validIssuers[tok.Issuer]; !ok {
		return nil, fmt.Errorf("%w: unexpected issuer %q", common.ErrInvalidAssertion, tok.Issuer)
	}

	var c idTokenClaims
	if err := tok.Claims(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidAssertion, err)
	}

	return &Identity{
		Subject:       tok.Subject,
		Email:         c.Email,
		EmailVerified: bool(c.EmailVerified),
		Name:          c.Name,
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
	}, nil
}

type userInfoClaims struct {
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

func (v *Verifier) verifyAccessToken(ctx context.Context, accessToken string) (*Identity, error) {
	ctx = v.clientContext(ctx)

	info, err := v.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, classify(err)
	}

	var c userInfoClaims
	if err := info.Claims(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidAssertion, err)
	}

	return &Identity{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          c.Name,
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
	}, nil
}

func (v *Verifier) clientContext(ctx context.Context) context.Context {
	if v.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, v.httpClient)
}

// classify separates transport failures from token rejections.
// jwksFetchFailure marks key-set fetch errors. go-oidc formats the transport
// error into the signature failure with %v, so the chain cannot be unwrapped.
const jwksFetchFailure = "fetching keys"

func classify(err error) error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		strings.Contains(err.Error(), jwksFetchFailure) {
		return fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%w: %v", common.ErrInvalidAssertion, err)
}

func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// flexBool accepts both true and "true"; older Google tokens send strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		*b = flexBool(strings.EqualFold(t, "true"))
	case nil:
		*b = false
	default:
		return fmt.Errorf("email_verified: unexpected type %T", v)
	}
	return nil
}
