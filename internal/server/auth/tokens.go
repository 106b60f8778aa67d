// Package auth mints and verifies the three JWT kinds used by the account
// service: access tokens, refresh tokens and the single-purpose setup token
// issued after email verification. Each kind is signed with its own HMAC
// secret and parsed into its own claims type, so a token of one kind can
// never pass verification as another.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ilyakharev/authd/internal/common"
	"github.com/ilyakharev/authd/internal/server/models"
)

// SetupPurpose is the purpose discriminant embedded in setup tokens. Parse
// rejects any setup token without it, so a stray access or refresh token
// can never authorize a password-set call.
const SetupPurpose = "set-password"

var signingMethods = []string{jwt.SigningMethodHS256.Alg()}

// AccessClaims are carried by short-lived access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
}

// RefreshClaims are carried by refresh tokens. The jti lives in
// RegisteredClaims.ID and doubles as the storage key of the server-side
// refresh-token record.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// SetupClaims are carried by the post-verification setup token. The user id
// lives in RegisteredClaims.Subject.
type SetupClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

// Issuer signs and verifies tokens of all three kinds.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	setupSecret   []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	setupTTL      time.Duration
}

// NewIssuer constructs an Issuer from the three signing secrets and the
// per-kind lifetimes.
func NewIssuer(accessSecret, refreshSecret, setupSecret []byte, accessTTL, refreshTTL, setupTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		setupSecret:   setupSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		setupTTL:      setupTTL,
	}
}

// AccessToken mints a short-lived access token carrying the user id and role.
func (i *Issuer) AccessToken(userID string, role models.Role) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		UserID: userID,
		Role:   role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
}

// RefreshToken mints a refresh token with the given jti and returns the
// signed token along with its expiry, which the caller persists next to the
// token hash.
func (i *Issuer) RefreshToken(userID, jti string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(i.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID: userID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// SetupToken mints the short-lived token that authorizes exactly one
// password-establishment call for the verified user.
func (i *Issuer) SetupToken(userID string) (string, error) {
	now := time.Now()
	claims := SetupClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.setupTTL)),
		},
		Purpose: SetupPurpose,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.setupSecret)
}

// ParseAccess verifies an access token and returns its claims.
func (i *Issuer) ParseAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(tokenString, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (i *Issuer) ParseRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(tokenString, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, common.ErrorInvalidToken
	}
	return claims, nil
}

// ParseSetup verifies a setup token, including its purpose discriminant,
// and returns its claims.
func (i *Issuer) ParseSetup(tokenString string) (*SetupClaims, error) {
	claims := &SetupClaims{}
	if err := i.parse(tokenString, claims, i.setupSecret); err != nil {
		return nil, err
	}
	if claims.Purpose != SetupPurpose || claims.Subject == "" {
		return nil, common.ErrorInvalidToken
	}
	return claims, nil
}

func (i *Issuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods(signingMethods))
	if err != nil {
		return common.ErrorInvalidToken
	}
	if !token.Valid {
		return common.ErrorInvalidToken
	}
	return nil
}
