// Package domain contains the core business entities for Meridian Identity.
package domain

import "errors"

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same login/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserNotActive indicates the account has not been confirmed yet.
	ErrUserNotActive = errors.New("user is not activated")

	// ErrUserAlreadyActive indicates a confirmation was attempted on an
	// account that is already active.
	ErrUserAlreadyActive = errors.New("user is already activated")

	// ErrInvalidCredentials indicates authentication failed. Unknown
	// identity and wrong password both map here so callers cannot
	// enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPasswordMismatch indicates two passwords that must agree do
	// not: the confirmation at registration, or the current password
	// supplied for a credential update.
	ErrPasswordMismatch = errors.New("password mismatch")

	// ErrMissingToken indicates no session token was supplied.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken indicates a session or confirmation token is
	// malformed, tampered with, expired, or of the wrong kind.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidLogin indicates the login fails the 4-64
	// alphanumeric/underscore constraint.
	ErrInvalidLogin = errors.New("invalid login")

	// ErrInvalidEmail indicates the email address is malformed.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrInvalidPassword indicates the password fails the 8-32
	// characters, no spaces policy.
	ErrInvalidPassword = errors.New("password length should be 8-32 symbols and not contents spaces")
)
