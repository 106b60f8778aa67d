package verifications

import (
	"context"
	"time"

	"github.com/ilyakharev/authd/internal/server/models"
)

// Repository persists OTP verification records. The "at most one active
// record per user" invariant is procedural: callers invalidate old records
// under a row lock before inserting a new one.
type Repository interface {
	// Create inserts a fresh OTP record for userID.
	Create(ctx context.Context, userID string, otpHash string, expiresAt time.Time) error

	// LatestForUserForUpdate returns the newest record for userID with the
	// row locked, or common.ErrorNotFound.
	LatestForUserForUpdate(ctx context.Context, userID string) (*models.EmailVerification, error)

	// LatestByEmailForUpdate returns the newest record for the user with
	// the given email, locking the verification row only, or
	// common.ErrorNotFound.
	LatestByEmailForUpdate(ctx context.Context, email string) (*models.EmailVerification, error)

	// InvalidateActive marks every unused record of userID as used.
	InvalidateActive(ctx context.Context, userID string) error

	// IncrementRetries bumps the failed-attempt counter of a record and
	// returns the new count.
	IncrementRetries(ctx context.Context, id string) (int, error)

	// MarkUsed consumes a record, matching on both id and hash.
	MarkUsed(ctx context.Context, id string, otpHash string) error
}
