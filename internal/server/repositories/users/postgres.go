// Package users provides the PostgreSQL-backed repository for user accounts.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ilyakharev/authd/internal/common"
	"github.com/ilyakharev/authd/internal/dbx"
	"github.com/ilyakharev/authd/internal/server/models"
)

// pgUniqueViolation is the PostgreSQL error code raised when an insert hits
// a unique constraint.
const pgUniqueViolation = "23505"

const userColumns = "id, email, password, role, is_verified, created_at"

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a fresh account row. The database fills in the id, role and
// verification defaults. A unique-constraint hit is reported as
// common.ErrorAlreadyExists so the caller can step aside.
func (r *PostgresRepository) Create(ctx context.Context, email string) (*models.User, error) {
	query := `
		INSERT INTO users (email)
		VALUES ($1)
		RETURNING ` + userColumns

	user, err := r.scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
		FOR UPDATE`
	return r.getUser(ctx, query, email)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
		FOR UPDATE`
	return r.getUser(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return r.getUser(ctx, query, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.getUser(ctx, query, id)
}

// MarkVerified flips is_verified. The transition is monotonic: the filter on
// is_verified = false makes a second call a no-op.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_verified = true
		WHERE id = $1 AND is_verified = false`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// SetPassword performs the conditional update that makes password
// establishment single-use: only a verified user without a password matches.
func (r *PostgresRepository) SetPassword(ctx context.Context, id string, passwordHash string) (int64, error) {
	query := `
		UPDATE users
		SET password = $1
		WHERE id = $2
		  AND is_verified = true
		  AND password IS NULL`
	res, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}
	return affected, nil
}

func (r *PostgresRepository) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := r.scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Password, &user.Role, &user.IsVerified, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}
