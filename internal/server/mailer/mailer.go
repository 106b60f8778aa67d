// Package mailer defines the outbound-email contract of the account service
// and its implementations. Delivery is best-effort: callers fire sends from
// outside any database transaction and only log failures.
package mailer

import "context"

// Sender delivers the two notification kinds the signup flow produces.
type Sender interface {
	// SendVerificationCode emails a one-time code to a new or unverified
	// account.
	SendVerificationCode(ctx context.Context, email, code string) error

	// SendAlreadyRegistered notifies an address that someone tried to sign
	// up (or log in) with it while an account already exists.
	SendAlreadyRegistered(ctx context.Context, email string) error
}
