package mailer

import (
	"context"

	"github.com/ilyakharev/authd/internal/logging"
)

// DevSender logs instead of delivering. It is the default when no SMTP host
// is configured, which keeps local development and tests free of external
// mail infrastructure.
type DevSender struct {
	logger logging.Logger
}

// NewDevSender constructs a log-only Sender.
func NewDevSender(l logging.Logger) *DevSender {
	return &DevSender{logger: l.With("module", "mailer")}
}

func (s *DevSender) SendVerificationCode(ctx context.Context, email, code string) error {
	s.logger.Info(ctx, "verification code issued", "email", email, "code", code)
	return nil
}

func (s *DevSender) SendAlreadyRegistered(ctx context.Context, email string) error {
	s.logger.Info(ctx, "already-registered notice", "email", email)
	return nil
}
