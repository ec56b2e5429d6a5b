// Package repository defines the data access layer for Meridian Identity.
// Implementations exist for PostgreSQL (jackc/pgx) and SQLite
// (modernc.org/sqlite); business logic depends only on the interfaces
// defined here.
package repository

import (
	"context"

	"github.com/prn-tf/meridian-identity/internal/domain"
)

// ListOptions contains pagination options for listing entities.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository defines persistence operations for users. All mutating
// operations are atomic per call: either the full row change lands, or
// none of it does.
type UserRepository interface {
	// Create persists a new user. Returns domain.ErrUserAlreadyExists
	// when the login or email uniqueness constraint is violated.
	Create(ctx context.Context, user *domain.User) error

	// GetByIdentity retrieves a user by id, login, or email. Email
	// matching is done on the lowercased stored value. Returns
	// domain.ErrUserNotFound when no row matches.
	GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error)

	// UpdateLogin changes the login of the user matched by identity.
	// Returns domain.ErrUserNotFound if no row matches and
	// domain.ErrUserAlreadyExists on a uniqueness violation.
	UpdateLogin(ctx context.Context, identity domain.Identity, newLogin string) error

	// UpdateEmail changes the email of the user matched by identity.
	// The new value is normalized to lowercase before the write.
	UpdateEmail(ctx context.Context, identity domain.Identity, newEmail string) error

	// UpdatePassword swaps the stored password hash, conditional on the
	// previous hash still being in place. A write that loses the race
	// against a concurrent password change returns
	// domain.ErrPasswordMismatch.
	UpdatePassword(ctx context.Context, id, oldHash, newHash string) error

	// SetActive flips the confirmation flag of the user with the given
	// id. Returns domain.ErrUserNotFound if the user does not exist.
	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes the user matched by identity. Returns
	// domain.ErrUserNotFound if no row matches. Deletion is final.
	Delete(ctx context.Context, identity domain.Identity) error

	// List returns users ordered by creation time, newest first.
	List(ctx context.Context, opts ListOptions) ([]*domain.User, error)

	// ExistsByLogin checks whether a login is taken.
	ExistsByLogin(ctx context.Context, login string) (bool, error)

	// ExistsByEmail checks whether an email is taken (case-insensitive).
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// DatabaseHealth is implemented by both database wrappers and used by
// health endpoints and graceful shutdown.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
