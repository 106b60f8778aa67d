package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ilyakharev/authd/internal/common"
	"github.com/ilyakharev/authd/internal/dbx"
	"github.com/ilyakharev/authd/internal/logging"
	"github.com/ilyakharev/authd/internal/server/auth"
	"github.com/ilyakharev/authd/internal/server/config"
	"github.com/ilyakharev/authd/internal/server/mailer"
	"github.com/ilyakharev/authd/internal/server/models"
	"github.com/ilyakharev/authd/internal/server/otp"
	"github.com/ilyakharev/authd/internal/server/repositories/repomanager"
)

// AuthService implements the account-lifecycle operations: the registration
// state machine, login, credential setup, and refresh-token rotation.
//
// Every mutating flow that derives a decision from more than one stored fact
// runs inside a single transaction with the contended row locked via
// SELECT ... FOR UPDATE; email sends happen strictly after commit.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	notify      notifier
	otpTTL      time.Duration
	otpCooldown time.Duration
	bcryptCost  int
	dummyHash   string
}

// NewAuthService constructs an AuthService from its collaborators and the
// server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, issuer *auth.Issuer, sender mailer.Sender, logger logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		notify:      notifier{sender: sender, logger: logger.With("module", "auth_service")},
		otpTTL:      cfg.OTPValidityDuration,
		otpCooldown: cfg.OTPCooldown,
		bcryptCost:  cfg.BcryptCost,
		dummyHash:   cfg.DummyPasswordHash,
	}
}

// Register runs the signup state machine for email. It always returns a
// success-shaped result; which branch was taken is visible in Reason but
// the message never reveals whether the account existed.
//
// Inside one transaction, with the user row locked:
//   - no row: create the user and its first OTP (NEW_USER)
//   - row, verified: nothing to do (ALREADY_VERIFIED)
//   - row, unverified, latest OTP younger than the cooldown: no mutation
//     (COOLDOWN)
//   - row, unverified otherwise: invalidate active OTPs, insert a fresh one
//     (RESENT_OTP)
//
// If the insert loses a race to a concurrent signup despite the lock, the
// unique constraint fires and this request steps aside: it reports NEW_USER
// without sending anything, since the winning request owns the active code.
func (s *AuthService) Register(ctx context.Context, email string) (*RegistrationResult, error) {
	code, err := otp.Generate(s.otpTTL)
	if err != nil {
		return nil, common.ErrorInternal
	}

	var result *RegistrationResult
	var sendCode, sendRegistered bool

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userRepo := s.repomanager.Users(tx)

		user, err := userRepo.GetByEmailForUpdate(ctx, email)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error fetching user for signup: %w", err)
		}

		if user == nil {
			created, err := userRepo.Create(ctx, email)
			if errors.Is(err, common.ErrorAlreadyExists) {
				// a concurrent signup won the insert; its OTP stands
				result = &RegistrationResult{OK: true, Reason: ReasonNewUser, Message: EmailSentMessage, Email: email}
				return nil
			}
			if err != nil {
				return fmt.Errorf("error creating user: %w", err)
			}
			if err := s.repomanager.Verifications(tx).Create(ctx, created.ID, code.Hash, code.ExpiresAt); err != nil {
				return fmt.Errorf("error creating otp: %w", err)
			}
			result = &RegistrationResult{OK: true, Reason: ReasonNewUser, Message: EmailSentMessage, Email: email}
			sendCode = true
			return nil
		}

		if user.IsVerified {
			result = &RegistrationResult{OK: true, Reason: ReasonAlreadyVerified, Message: EmailSentMessage, Email: email}
			sendRegistered = true
			return nil
		}

		rotated, err := rotateOTP(ctx, tx, s.repomanager, user.ID, code, s.otpCooldown)
		if err != nil {
			return err
		}
		if !rotated {
			result = &RegistrationResult{OK: true, Reason: ReasonCooldown, Message: CooldownMessage, Email: email}
			return nil
		}
		result = &RegistrationResult{OK: true, Reason: ReasonResentOTP, Message: EmailSentMessage, Email: email}
		sendCode = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sendCode {
		s.notify.code(email, code.Plain)
	}
	if sendRegistered {
		s.notify.registered(email)
	}
	return result, nil
}

// Login verifies credentials and mints a token pair. The bcrypt comparison
// runs even when the user does not exist, against a configured dummy hash,
// so "no such user" and "wrong password" are indistinguishable by timing.
// All failure branches collapse to common.ErrorInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	storedHash := s.dummyHash
	if user != nil && user.Password.Valid {
		storedHash = user.Password.String
	}
	matchErr := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))

	if user == nil || !user.IsVerified || !user.Password.Valid {
		return nil, common.ErrorInvalidCredentials
	}
	if matchErr != nil {
		// courtesy notice: someone is probing an account that exists
		s.notify.registered(email)
		return nil, common.ErrorInvalidCredentials
	}

	return s.generateTokenPair(ctx, s.db, user.ID, user.Role)
}

// SetPassword establishes the account password authorized by a setup token.
// The conditional update (is_verified = true AND password IS NULL) is what
// makes the operation single-use: a concurrent duplicate sees zero rows
// affected and gets the generic failure result.
func (s *AuthService) SetPassword(ctx context.Context, setupToken, password string) (*Result, error) {
	claims, err := s.issuer.ParseSetup(setupToken)
	if err != nil {
		return nil, common.ErrorInvalidToken
	}
	userID := claims.Subject

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	var result *Result
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userRepo := s.repomanager.Users(tx)

		user, err := userRepo.GetByIDForUpdate(ctx, userID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error fetching user: %w", err)
		}
		if user == nil || !user.IsVerified || user.Password.Valid {
			result = &Result{OK: false, Message: SomethingWentWrongMessage}
			return nil
		}

		affected, err := userRepo.SetPassword(ctx, userID, string(hash))
		if err != nil {
			return fmt.Errorf("error setting password: %w", err)
		}
		if affected == 0 {
			result = &Result{OK: false, Message: SomethingWentWrongMessage}
			return nil
		}
		result = &Result{OK: true, Message: PasswordSetMessage}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RefreshTokens rotates a refresh token: verify, look up by jti, consume the
// stored record, and mint a replacement pair under the user's current role.
// The delete happens before the reissue inside one transaction, so a crash
// can lose a session but never leave two live tokens for the same lineage.
// A replayed token finds no record and fails exactly like a forged one.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, common.ErrorInvalidToken
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokenRepo := s.repomanager.RefreshTokens(tx)

		if _, err := tokenRepo.Find(ctx, claims.ID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorSessionExpired
			}
			return fmt.Errorf("error searching refresh token: %w", err)
		}
		if err := tokenRepo.Delete(ctx, claims.ID); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorSessionExpired
			}
			return fmt.Errorf("error fetching user: %w", err)
		}

		pair, err = s.generateTokenPair(ctx, tx, user.ID, user.Role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout consumes the presented refresh token's stored record. A token whose
// record is already gone logs out successfully; only an unverifiable token
// is rejected.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (*Result, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, common.ErrorInvalidToken
	}
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, claims.ID); err != nil {
		return nil, common.ErrorInternal
	}
	return &Result{OK: true, Message: LoggedOutMessage}, nil
}

// --- helpers below ---

func (s *AuthService) generateTokenPair(ctx context.Context, db dbx.DBTX, userID string, role models.Role) (*TokenPair, error) {
	access, err := s.issuer.AccessToken(userID, role)
	if err != nil {
		return nil, common.ErrorInternal
	}

	jti := uuid.NewString()
	refresh, expiresAt, err := s.issuer.RefreshToken(userID, jti)
	if err != nil {
		return nil, common.ErrorInternal
	}

	if err := s.repomanager.RefreshTokens(db).Create(ctx, jti, userID, hashToken(refresh), expiresAt); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// hashToken stores a digest of the refresh token rather than the token
// itself, so a leaked table does not leak usable credentials.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
