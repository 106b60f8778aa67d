// Package common holds sentinel errors shared between repositories and
// services.
package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service specific errors
	ErrorInternal = errors.New("internal error")

	// auth-specific errors; the text is user-facing and deliberately generic
	// where enumeration or brute force is a concern
	ErrorInvalidCredentials = errors.New("Invalid credentials or account not verified")
	ErrorInvalidToken       = errors.New("Invalid or expired token")
	ErrorSessionExpired     = errors.New("Session expired, please login again")
)
