package models

import (
	"database/sql"
	"time"
)

// EmailVerification is one issued OTP. A user accumulates historical rows;
// at most one row per user has UsedAt unset at any committed state. Retries
// counts failed match attempts against this row and is never reset.
type EmailVerification struct {
	ID        string
	UserID    string
	OTPHash   string
	ExpiresAt time.Time
	UsedAt    sql.NullTime
	Retries   int
	CreatedAt time.Time
}

// Active reports whether the record can still satisfy a verification
// attempt at the given instant.
func (v *EmailVerification) Active(now time.Time) bool {
	return !v.UsedAt.Valid && v.ExpiresAt.After(now)
}
