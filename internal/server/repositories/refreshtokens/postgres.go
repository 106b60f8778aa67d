// Package refreshtokens provides the PostgreSQL-backed repository for
// server-side refresh-token records.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ilyakharev/authd/internal/common"
	"github.com/ilyakharev/authd/internal/dbx"
	"github.com/ilyakharev/authd/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, jti, userID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (jti, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, jti, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, jti string) (*models.RefreshToken, error) {
	query := `
		SELECT jti, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE jti = $1`
	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, jti).Scan(
		&token.JTI, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, jti string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE jti = $1`
	if _, err := r.db.ExecContext(ctx, query, jti); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}
