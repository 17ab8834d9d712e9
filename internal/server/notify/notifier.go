// Package notify delivers verification links to users out of band.
package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/todoauth/internal/logging"
)

// Verification is the content of a verification message.
type Verification struct {
	Email     string
	Name      string
	URL       string
	Token     string
	ExpiresAt time.Time
}

// Notifier sends a verification message. A returned error means the user
// did not get the link; the token itself stays valid.
type Notifier interface {
	SendVerification(ctx context.Context, v Verification) error
}

// LogNotifier writes the link to the log instead of mailing it.
// It is the development sink used when no SMTP server is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notify")}
}

func (n *LogNotifier) SendVerification(ctx context.Context, v Verification) error {
	n.logger.Info(ctx, "verification email",
		"to", v.Email,
		"name", v.Name,
		"url", v.URL,
		"expires_at", v.ExpiresAt.Format(time.RFC3339),
	)
	return nil
}
