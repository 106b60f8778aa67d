// Package verifications provides the PostgreSQL-backed repository for OTP
// verification records.
package verifications

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

const verificationColumns = "id, user_id, otp_hash, expires_at, used_at, retries, created_at"

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, otpHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO email_verifications (user_id, otp_hash, expires_at)
		VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, userID, otpHash, expiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LatestForUserForUpdate(ctx context.Context, userID string) (*models.EmailVerification, error) {
	query := `
		SELECT ` + verificationColumns + `
		FROM email_verifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`
	return r.getRecord(ctx, query, userID)
}

// LatestByEmailForUpdate joins on users so OTP validation can go straight
// from an email to the newest record. FOR UPDATE OF locks the verification
// row only; the user row stays unlocked here.
func (r *PostgresRepository) LatestByEmailForUpdate(ctx context.Context, email string) (*models.EmailVerification, error) {
	query := `
		SELECT ev.id, ev.user_id, ev.otp_hash, ev.expires_at, ev.used_at, ev.retries, ev.created_at
		FROM email_verifications ev
		JOIN users u ON ev.user_id = u.id
		WHERE u.email = $1
		ORDER BY ev.created_at DESC
		LIMIT 1
		FOR UPDATE OF ev`
	return r.getRecord(ctx, query, email)
}

func (r *PostgresRepository) InvalidateActive(ctx context.Context, userID string) error {
	query := `
		UPDATE email_verifications
		SET used_at = now()
		WHERE user_id = $1
		  AND used_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IncrementRetries(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE email_verifications
		SET retries = retries + 1
		WHERE id = $1
		RETURNING retries`
	var retries int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&retries); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}
	return retries, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, otpHash string) error {
	query := `
		UPDATE email_verifications
		SET used_at = now()
		WHERE id = $1 AND otp_hash = $2`
	if _, err := r.db.ExecContext(ctx, query, id, otpHash); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getRecord(ctx context.Context, query string, arg any) (*models.EmailVerification, error) {
	record := &models.EmailVerification{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&record.ID, &record.UserID, &record.OTPHash, &record.ExpiresAt,
		&record.UsedAt, &record.Retries, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return record, nil
}
