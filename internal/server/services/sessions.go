package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/server/auth"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
)

// SessionService mints and refreshes stateless JWT sessions.
type SessionService struct {
	tokens *auth.TokenManager
}

func NewSessionService(tokens *auth.TokenManager) *SessionService {
	return &SessionService{tokens: tokens}
}

// Issue returns an access/refresh pair bound to the account ID.
func (s *SessionService) Issue(account *models.Account) (*auth.TokenPair, error) {
	return s.tokens.IssuePair(account.ID)
}

// Refresh validates refreshToken and mints a new access token for the same
// subject. The returned pair carries only the access token.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, common.NewValidationError("refresh", "Refresh token required")
	}

	subject, err := s.tokens.Parse(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return s.tokens.IssueAccess(subject)
}

// Authenticate returns the account ID of a valid access token.
func (s *SessionService) Authenticate(accessToken string) (string, error) {
	return s.tokens.Parse(accessToken, auth.TokenTypeAccess)
}
