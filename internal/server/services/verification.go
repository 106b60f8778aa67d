package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ilyakharev/authd/internal/common"
	"github.com/ilyakharev/authd/internal/dbx"
	"github.com/ilyakharev/authd/internal/logging"
	"github.com/ilyakharev/authd/internal/server/auth"
	"github.com/ilyakharev/authd/internal/server/config"
	"github.com/ilyakharev/authd/internal/server/mailer"
	"github.com/ilyakharev/authd/internal/server/otp"
	"github.com/ilyakharev/authd/internal/server/repositories/repomanager"
)

// VerificationService validates submitted OTPs and re-issues codes for
// unverified accounts.
type VerificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	notify      notifier
	otpTTL      time.Duration
	otpCooldown time.Duration
	retryLimit  int
}

// NewVerificationService constructs a VerificationService from its
// collaborators and the server config.
func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, issuer *auth.Issuer, sender mailer.Sender, logger logging.Logger, cfg *config.Config) *VerificationService {
	return &VerificationService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		notify:      notifier{sender: sender, logger: logger.With("module", "verification_service")},
		otpTTL:      cfg.OTPValidityDuration,
		otpCooldown: cfg.OTPCooldown,
		retryLimit:  cfg.OTPRetryLimit,
	}
}

// ValidateOTP checks a submitted code against the newest stored record for
// email. Missing, consumed and expired records, as well as mismatches, all
// yield the same generic failure; the caller never learns which, nor how
// many attempts remain.
//
// A mismatch increments the record's retry counter, and the counter
// reaching the limit consumes the record, forcing an explicit resend. The
// transaction commits on those paths so the counter survives. On a match
// the user flips to verified and the record is consumed in the same
// transaction; the setup token is minted only after the commit.
func (s *VerificationService) ValidateOTP(ctx context.Context, email, code string) (*OTPResult, error) {
	submittedHash := otp.Hash(code)

	var verifiedUserID string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		verifRepo := s.repomanager.Verifications(tx)

		record, err := verifRepo.LatestByEmailForUpdate(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return fmt.Errorf("error fetching otp: %w", err)
		}
		if !record.Active(time.Now()) {
			return nil
		}

		if !otp.Equal(record.OTPHash, submittedHash) {
			retries, err := verifRepo.IncrementRetries(ctx, record.ID)
			if err != nil {
				return fmt.Errorf("error incrementing retries: %w", err)
			}
			if retries >= s.retryLimit {
				// brute-force cutoff: burn the record, keep the user
				// unverified until an explicit resend
				if err := verifRepo.InvalidateActive(ctx, record.UserID); err != nil {
					return fmt.Errorf("error invalidating otps: %w", err)
				}
			}
			return nil
		}

		if err := s.repomanager.Users(tx).MarkVerified(ctx, record.UserID); err != nil {
			return fmt.Errorf("error marking user verified: %w", err)
		}
		if err := verifRepo.MarkUsed(ctx, record.ID, submittedHash); err != nil {
			return fmt.Errorf("error consuming otp: %w", err)
		}
		verifiedUserID = record.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if verifiedUserID == "" {
		return &OTPResult{OK: false, Message: OTPInvalidMessage}, nil
	}

	token, err := s.issuer.SetupToken(verifiedUserID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &OTPResult{OK: true, Message: VerifiedMessage, SetupToken: token}, nil
}

// ResendOTP re-issues a verification code. Like Register it is
// enumeration-safe: absent, verified, cooling-down and re-issued accounts
// all receive the same generic result, and only an unverified account past
// its cooldown actually gets a fresh code.
func (s *VerificationService) ResendOTP(ctx context.Context, email string) (*Result, error) {
	code, err := otp.Generate(s.otpTTL)
	if err != nil {
		return nil, common.ErrorInternal
	}

	var sendCode, sendRegistered bool
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByEmailForUpdate(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return fmt.Errorf("error fetching user: %w", err)
		}

		if user.IsVerified {
			sendRegistered = true
			return nil
		}

		rotated, err := rotateOTP(ctx, tx, s.repomanager, user.ID, code, s.otpCooldown)
		if err != nil {
			return err
		}
		sendCode = rotated
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
	return &Result{OK: true, Message: ResendMessage}, nil
}
