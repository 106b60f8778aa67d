package refreshtokens

import (
	"context"
	"time"

	"github.com/ilyakharev/authd/internal/server/models"
)

// Repository persists refresh-token records keyed by jti.
type Repository interface {
	// Create inserts a record for a freshly minted refresh token.
	Create(ctx context.Context, jti, userID, tokenHash string, expiresAt time.Time) error

	// Find returns the record for jti, or common.ErrorNotFound. Absence
	// covers never-issued, already-rotated and revoked tokens alike.
	Find(ctx context.Context, jti string) (*models.RefreshToken, error)

	// Delete consumes the record for jti. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context, jti string) error
}
