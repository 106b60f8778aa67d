// Package services contains the server-side business logic of the account
// service: the registration state machine, OTP validation, credential setup,
// login, and refresh-token rotation.
package services

// User-facing messages. Branch on the Reason discriminants, never on these
// strings; display text is allowed to change without affecting control flow.
const (
	EmailSentMessage          = "Verification email sent. Please check your inbox."
	CooldownMessage           = "Please wait before requesting another code."
	ResendMessage             = "If an account exists, a new code has been sent."
	VerifiedMessage           = "Email verified successfully"
	OTPInvalidMessage         = "OTP is invalid or expired"
	PasswordSetMessage        = "Password set successfully"
	SomethingWentWrongMessage = "Something went wrong. Please try again later."
	LoggedOutMessage          = "Logged out successfully"
)

// RegistrationReason is the machine-readable outcome of a signup attempt.
type RegistrationReason string

const (
	ReasonNewUser         RegistrationReason = "NEW_USER"
	ReasonResentOTP       RegistrationReason = "RESENT_OTP"
	ReasonAlreadyVerified RegistrationReason = "ALREADY_VERIFIED"
	ReasonCooldown        RegistrationReason = "COOLDOWN"
)

// RegistrationResult is the uniform, success-shaped response to a signup
// attempt. Every branch, including "email already taken", produces OK=true
// with a generic message so callers cannot probe which emails exist.
type RegistrationResult struct {
	OK      bool
	Reason  RegistrationReason
	Message string
	Email   string
}

// OTPResult reports an OTP validation attempt. SetupToken is populated only
// on success; failures all collapse to the same generic message regardless
// of whether the code was wrong, expired, consumed, or never issued.
type OTPResult struct {
	OK         bool
	Message    string
	SetupToken string
}

// Result is a simple outcome for the flows without extra payload.
type Result struct {
	OK      bool
	Message string
}

// TokenPair bundles a short-lived access token and a long-lived refresh
// token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
