package models

import "time"

// RefreshToken is a stored refresh-token record keyed by the token's jti.
// Its presence is the validity oracle: the row is deleted the moment the
// token is presented for rotation or logout, so a replayed token finds
// nothing and is rejected.
type RefreshToken struct {
	JTI       string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
