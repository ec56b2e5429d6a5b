package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/pkg/crypto"
	"github.com/prn-tf/meridian-identity/internal/repository"
)

// UserService handles account lookup and credential updates.
type UserService struct {
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users repository.UserRepository, logger zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger.With().Str("service", "user").Logger(),
	}
}

// Get retrieves a user by any identity form.
func (s *UserService) Get(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	user, err := s.users.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("identity", identity.String()).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// UpdateLogin changes the login of the matched user. No password
// re-check is required for this operation.
func (s *UserService) UpdateLogin(ctx context.Context, identity domain.Identity, newLogin string) error {
	if !domain.ValidLogin(newLogin) {
		return domain.ErrInvalidLogin
	}

	if err := s.users.UpdateLogin(ctx, identity, newLogin); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return domain.ErrUserNotFound
		case errors.Is(err, domain.ErrUserAlreadyExists):
			return domain.ErrUserAlreadyExists
		}
		s.logger.Error().Err(err).Str("identity", identity.String()).Msg("failed to update login")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("identity", identity.String()).Str("new_login", newLogin).Msg("login updated")
	return nil
}

// UpdateEmail changes the email of the matched user. The new value is
// lowercased before the write.
func (s *UserService) UpdateEmail(ctx context.Context, identity domain.Identity, newEmail string) error {
	if _, err := mail.ParseAddress(newEmail); err != nil {
		return domain.ErrInvalidEmail
	}

	if err := s.users.UpdateEmail(ctx, identity, newEmail); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return domain.ErrUserNotFound
		case errors.Is(err, domain.ErrUserAlreadyExists):
			return domain.ErrUserAlreadyExists
		}
		s.logger.Error().Err(err).Str("identity", identity.String()).Msg("failed to update email")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("identity", identity.String()).Msg("email updated")
	return nil
}

// UpdatePasswordInput contains the data needed to change a password.
type UpdatePasswordInput struct {
	UserID      string
	OldPassword string
	NewPassword string
}

// UpdatePassword verifies the old password and swaps in the new hash.
// The write is conditional on the old hash still being current, so two
// racing updates cannot both win.
func (s *UserService) UpdatePassword(ctx context.Context, input UpdatePasswordInput) error {
	if !domain.ValidPassword(input.NewPassword) {
		return domain.ErrInvalidPassword
	}

	user, err := s.users.GetByIdentity(ctx, domain.ByID(input.UserID))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", input.UserID).Msg("failed to get user for password update")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !crypto.CheckPassword(input.OldPassword, user.PasswordHash) {
		return domain.ErrPasswordMismatch
	}

	newHash, err := crypto.HashPassword(input.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, user.PasswordHash, newHash); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return domain.ErrUserNotFound
		case errors.Is(err, domain.ErrPasswordMismatch):
			return domain.ErrPasswordMismatch
		}
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to update password")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("password updated")
	return nil
}

// Delete removes the matched user. Deletion is final.
func (s *UserService) Delete(ctx context.Context, identity domain.Identity) error {
	if err := s.users.Delete(ctx, identity); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("identity", identity.String()).Msg("failed to delete user")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("identity", identity.String()).Msg("user deleted")
	return nil
}

// CreateUserInput contains the data for administrative user creation.
type CreateUserInput struct {
	Login    string
	Email    string
	Password string
	Name     string
	Surname  string
	Role     string
	IsActive bool
}

// Create provisions a user directly, bypassing email confirmation.
// Used by the admin CLI.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if !domain.ValidLogin(input.Login) {
		return nil, domain.ErrInvalidLogin
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if !domain.ValidPassword(input.Password) {
		return nil, domain.ErrInvalidPassword
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Login, input.Email, hash)
	user.Name = input.Name
	user.Surname = input.Surname
	user.IsActive = input.IsActive
	if input.Role != "" {
		user.Role = input.Role
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.ErrUserAlreadyExists
		}
		s.logger.Error().Err(err).Str("login", input.Login).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("login", user.Login).Msg("user created")
	return user, nil
}

// SetActive flips the confirmation flag directly. Used by the admin CLI.
func (s *UserService) SetActive(ctx context.Context, identity domain.Identity, active bool) error {
	user, err := s.users.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.users.SetActive(ctx, user.ID, active); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("user_id", user.ID).Bool("is_active", active).Msg("user active status updated")
	return nil
}

// ListUsersInput contains pagination options for listing users.
type ListUsersInput struct {
	Limit  int
	Offset int
}

// List returns users with pagination, newest first.
func (s *UserService) List(ctx context.Context, input ListUsersInput) ([]*domain.User, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	users, err := s.users.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return users, nil
}
