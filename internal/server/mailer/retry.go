package mailer

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetrySender decorates another Sender with bounded exponential backoff,
// implementing the at-least-once contract for transient SMTP failures.
// Retrying can deliver the same message more than once; that is an accepted
// trade-off, since a duplicated notice is harmless while a silently dropped
// verification code forces the user through the resend flow.
type RetrySender struct {
	next     Sender
	attempts uint64
	base     time.Duration
}

// NewRetrySender wraps next with up to attempts total tries.
func NewRetrySender(next Sender, attempts uint64, base time.Duration) *RetrySender {
	return &RetrySender{next: next, attempts: attempts, base: base}
}

func (s *RetrySender) SendVerificationCode(ctx context.Context, email, code string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.next.SendVerificationCode(ctx, email, code)
	})
}

func (s *RetrySender) SendAlreadyRegistered(ctx context.Context, email string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.next.SendAlreadyRegistered(ctx, email)
	})
}

func (s *RetrySender) do(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(s.attempts-1, retry.NewExponential(s.base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
