package users

import (
	"context"

	"github.com/ilyakharev/authd/internal/server/models"
)

// Repository persists user accounts.
//
// The ForUpdate variants take a row-level lock (SELECT ... FOR UPDATE) and
// therefore only make sense on a transactional handle; they serialize
// concurrent signup and verification attempts for the same account.
type Repository interface {
	// Create inserts an unverified, passwordless user. It returns
	// common.ErrorAlreadyExists when the email unique constraint fires.
	Create(ctx context.Context, email string) (*models.User, error)

	// GetByEmailForUpdate returns the locked user row for email, or
	// common.ErrorNotFound.
	GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error)

	// GetByIDForUpdate returns the locked user row for id, or
	// common.ErrorNotFound.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)

	// GetByEmail returns the user row for email without locking.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user row for id without locking.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// MarkVerified flips is_verified to true.
	MarkVerified(ctx context.Context, id string) error

	// SetPassword stores the hash only while the user is verified and has
	// no password yet, and reports how many rows matched. Zero means a
	// concurrent request already set it.
	SetPassword(ctx context.Context, id string, passwordHash string) (int64, error)
}
