// Package models defines the persistent entities of the account service.
package models

import (
	"database/sql"
	"time"
)

// Role is the authorization role carried in access-token claims.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is an account row. A user is created unverified and without a
// password on the first signup attempt; IsVerified transitions false->true
// exactly once, and Password transitions NULL->set exactly once after
// verification.
type User struct {
	ID         string
	Email      string
	Password   sql.NullString
	Role       Role
	IsVerified bool
	CreatedAt  time.Time
}
