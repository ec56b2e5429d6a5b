// Package service provides business logic services for Meridian Identity.
package service

import "errors"

// Service-level errors. Domain conditions (not found, conflict,
// invalid credentials) live in internal/domain; these cover failures
// that are nobody's fault but the infrastructure.
var (
	ErrInternalError = errors.New("internal server error")
)
