// Package domain contains the core business entities for Meridian Identity.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the user account service.
package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRole is the role assigned to every self-registered user.
const DefaultRole = "user"

// loginPattern constrains logins to 4-64 alphanumeric/underscore characters.
var loginPattern = regexp.MustCompile(`^[0-9a-zA-Z_]{4,64}$`)

// User represents a registered account in the system.
type User struct {
	// ID is the unique identifier for the user, assigned at creation
	// and never reassigned.
	ID string `json:"id"`

	// Login is the unique login name.
	// Constraints: 4-64 characters, alphanumeric and underscore.
	Login string `json:"login"`

	// Email is the unique email address, stored lowercased.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Name and Surname form the user's display name.
	Name    string `json:"name"`
	Surname string `json:"surname"`

	// Photo is an optional reference to the user's avatar.
	Photo string `json:"photo,omitempty"`

	// Role is a free-form role string, "user" by default.
	Role string `json:"role"`

	// IsActive indicates whether the account has been confirmed.
	// Inactive users cannot authenticate.
	IsActive bool `json:"is_active"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values. The account starts
// inactive and must be confirmed before it can authenticate.
func NewUser(login, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Login:        login,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         DefaultRole,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// PublicProfile is the reduced field set returned for unauthenticated
// lookups. It carries no credentials, role, or bookkeeping fields.
type PublicProfile struct {
	ID      string `json:"id"`
	Login   string `json:"login"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Photo   string `json:"photo,omitempty"`
}

// Public returns the public projection of the user.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:      u.ID,
		Login:   u.Login,
		Email:   u.Email,
		Name:    u.Name,
		Surname: u.Surname,
		Photo:   u.Photo,
	}
}

// ValidLogin reports whether login satisfies the login constraints.
func ValidLogin(login string) bool {
	return loginPattern.MatchString(login)
}

// ValidPassword reports whether password satisfies the password policy:
// 8-32 characters, no spaces.
func ValidPassword(password string) bool {
	if len(password) < 8 || len(password) > 32 {
		return false
	}
	return !strings.ContainsAny(password, " \t")
}

// NormalizeEmail lowercases an email address. Applied at every write
// and lookup so that email uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IdentityKind tags the form of identity used to address a user.
type IdentityKind int

const (
	// IdentityByID addresses a user by their immutable ID.
	IdentityByID IdentityKind = iota

	// IdentityByLogin addresses a user by login name.
	IdentityByLogin

	// IdentityByEmail addresses a user by email (case-insensitive).
	IdentityByEmail
)

// Identity is a tagged union selecting a user by exactly one of the
// three identity forms. Constructed via ByID, ByLogin, or ByEmail.
type Identity struct {
	Kind  IdentityKind
	Value string
}

// ByID returns an Identity addressing a user by ID.
func ByID(id string) Identity {
	return Identity{Kind: IdentityByID, Value: id}
}

// ByLogin returns an Identity addressing a user by login.
func ByLogin(login string) Identity {
	return Identity{Kind: IdentityByLogin, Value: login}
}

// ByEmail returns an Identity addressing a user by email.
// The value is normalized to lowercase.
func ByEmail(email string) Identity {
	return Identity{Kind: IdentityByEmail, Value: NormalizeEmail(email)}
}

// String returns a loggable description of the identity.
func (i Identity) String() string {
	switch i.Kind {
	case IdentityByLogin:
		return "login:" + i.Value
	case IdentityByEmail:
		return "email:" + i.Value
	default:
		return "id:" + i.Value
	}
}
