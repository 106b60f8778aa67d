package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilyakharev/authd/internal/common"
	"github.com/ilyakharev/authd/internal/dbx"
	"github.com/ilyakharev/authd/internal/logging"
	"github.com/ilyakharev/authd/internal/server/mailer"
	"github.com/ilyakharev/authd/internal/server/otp"
	"github.com/ilyakharev/authd/internal/server/repositories/repomanager"
)

// mailTimeout bounds the post-commit, fire-and-forget email sends.
const mailTimeout = 15 * time.Second

// notifier fires best-effort emails on their own goroutine, detached from
// the request context. Failures are logged and never surfaced to callers:
// losing a message occasionally is the accepted cost of keeping delivery
// outside the transaction boundary.
type notifier struct {
	sender mailer.Sender
	logger logging.Logger
}

func (n *notifier) code(email, code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := n.sender.SendVerificationCode(ctx, email, code); err != nil {
			n.logger.Error(ctx, "failed to send verification email", "email", email, "error", err)
		}
	}()
}

func (n *notifier) registered(email string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := n.sender.SendAlreadyRegistered(ctx, email); err != nil {
			n.logger.Error(ctx, "failed to send already-registered email", "email", email, "error", err)
		}
	}()
}

// rotateOTP enforces the issuance cooldown for an unverified user and, once
// it has elapsed, replaces the active OTP: invalidate everything unused,
// insert the fresh record. It reports whether a new code was issued. The
// caller must hold the user row lock so concurrent rotations for the same
// account are serialized; the loser of that race observes the winner's
// fresh created_at and lands in the cooldown branch.
func rotateOTP(ctx context.Context, tx dbx.DBTX, m repomanager.RepositoryManager, userID string, code *otp.Code, cooldown time.Duration) (bool, error) {
	verifRepo := m.Verifications(tx)

	latest, err := verifRepo.LatestForUserForUpdate(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return false, fmt.Errorf("error fetching latest otp: %w", err)
	}
	if latest != nil && time.Since(latest.CreatedAt) <= cooldown {
		return false, nil
	}

	// only the newest code may be active
	if err := verifRepo.InvalidateActive(ctx, userID); err != nil {
		return false, fmt.Errorf("error invalidating otps: %w", err)
	}
	if err := verifRepo.Create(ctx, userID, code.Hash, code.ExpiresAt); err != nil {
		return false, fmt.Errorf("error creating otp: %w", err)
	}
	return true, nil
}
