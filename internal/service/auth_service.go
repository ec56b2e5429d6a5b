package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/domain"
	mailer "github.com/prn-tf/meridian-identity/internal/mail"
	"github.com/prn-tf/meridian-identity/internal/nonce"
	"github.com/prn-tf/meridian-identity/internal/pkg/crypto"
	"github.com/prn-tf/meridian-identity/internal/repository"
	"github.com/prn-tf/meridian-identity/internal/token"
)

// confirmationMarkerTTL bounds how long a consumed confirmation token
// stays marked.
const confirmationMarkerTTL = 24 * time.Hour

// mailSendTimeout bounds the asynchronous confirmation send.
const mailSendTimeout = 30 * time.Second

// AuthService orchestrates registration, confirmation and sessions.
type AuthService struct {
	users         repository.UserRepository
	tokens        *token.Issuer
	markers       nonce.Store
	confirmations *mailer.ConfirmationSender
	logger        zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repository.UserRepository,
	tokens *token.Issuer,
	markers nonce.Store,
	confirmations *mailer.ConfirmationSender,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		tokens:        tokens,
		markers:       markers,
		confirmations: confirmations,
		logger:        logger.With().Str("service", "auth").Logger(),
	}
}

// RegisterInput contains the data needed to register a new account.
type RegisterInput struct {
	Name            string
	Surname         string
	Login           string
	Email           string
	Password        string
	ConfirmPassword string
	Photo           string
}

// RegisterOutput contains the result of a registration.
type RegisterOutput struct {
	User *domain.User
}

// Register creates an inactive account and sends the confirmation
// email. The mail send is fire-and-forget: a delivery failure is
// logged but the account is created either way.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if input.Password != input.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}

	if err := s.validateRegisterInput(input); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Login, input.Email, hash)
	user.Name = input.Name
	user.Surname = input.Surname
	user.Photo = input.Photo

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.ErrUserAlreadyExists
		}
		s.logger.Error().Err(err).Str("login", input.Login).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	confirmToken, err := crypto.SealToken(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to seal confirmation token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	go s.sendConfirmation(user, confirmToken)

	s.logger.Info().
		Str("user_id", user.ID).
		Str("login", user.Login).
		Msg("user registered")

	return &RegisterOutput{User: user}, nil
}

// sendConfirmation delivers the confirmation email on its own clock.
func (s *AuthService) sendConfirmation(user *domain.User, confirmToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), mailSendTimeout)
	defer cancel()

	if err := s.confirmations.Send(ctx, user.Email, user.Login, confirmToken); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", user.ID).
			Str("email", user.Email).
			Msg("failed to send confirmation email")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("confirmation email sent")
}

// Confirm activates the account the token was sealed for. Each token
// works exactly once. The marker is consumed only after the account is
// known to exist and be inactive, and is released again when the
// activation write fails.
func (s *AuthService) Confirm(ctx context.Context, rawToken string) error {
	userID, err := crypto.OpenToken(rawToken)
	if err != nil {
		return domain.ErrInvalidToken
	}

	user, err := s.users.GetByIdentity(ctx, domain.ByID(userID))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to get user for confirmation")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if user.IsActive {
		return domain.ErrUserAlreadyActive
	}

	markerKey := nonce.ConfirmationKey(tokenDigest(rawToken))
	first, err := s.markers.Consume(ctx, markerKey, confirmationMarkerTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to consume confirmation marker")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !first {
		return domain.ErrUserAlreadyActive
	}

	if err := s.users.SetActive(ctx, user.ID, true); err != nil {
		if releaseErr := s.markers.Release(ctx, markerKey); releaseErr != nil {
			s.logger.Error().Err(releaseErr).Str("user_id", user.ID).Msg("failed to release confirmation marker")
		}
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to activate user")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("login", user.Login).Msg("user confirmed")
	return nil
}

// LoginInput contains credentials for a login attempt. Exactly one of
// Login or Email identifies the account.
type LoginInput struct {
	Login    string
	Email    string
	Password string
}

// LoginOutput contains the authenticated user and the issued session.
type LoginOutput struct {
	User    *domain.User
	Access  token.Token
	Refresh token.Token
}

// Login verifies credentials and issues an access/refresh pair.
// Unknown accounts and wrong passwords are indistinguishable to the
// caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	identity := domain.ByLogin(input.Login)
	if input.Email != "" {
		identity = domain.ByEmail(input.Email)
	}

	user, err := s.users.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug().Str("identity", identity.String()).Msg("login attempt for unknown account")
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Str("identity", identity.String()).Msg("failed to get user for login")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Str("user_id", user.ID).Msg("login attempt for unconfirmed account")
		return nil, domain.ErrUserNotActive
	}

	if !crypto.CheckPassword(input.Password, user.PasswordHash) {
		s.logger.Debug().Str("user_id", user.ID).Msg("login attempt with wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(token.KindAccess, user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue access token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	refresh, err := s.tokens.Issue(token.KindRefresh, user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue refresh token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("login", user.Login).Msg("user logged in")

	return &LoginOutput{User: user, Access: access, Refresh: refresh}, nil
}

// RefreshOutput contains the user and the replacement access token.
type RefreshOutput struct {
	User   *domain.User
	Access token.Token
}

// Refresh trades a valid refresh token for a new access token. The
// refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*RefreshOutput, error) {
	subject, _, err := s.tokens.Verify(rawRefresh, token.KindRefresh)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.GetByIdentity(ctx, domain.ByID(subject))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", subject).Msg("failed to get user for refresh")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	access, err := s.tokens.Issue(token.KindAccess, user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue access token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Debug().Str("user_id", user.ID).Msg("session refreshed")

	return &RefreshOutput{User: user, Access: access}, nil
}

// Logout revokes the access token the session was using. Revocation is
// best effort: a marker-store failure is logged and the logout still
// succeeds, since the cookies are cleared either way.
func (s *AuthService) Logout(ctx context.Context, jti string) {
	if jti == "" {
		return
	}

	if _, err := s.markers.Consume(ctx, nonce.RevokedTokenKey(jti), s.tokens.AccessTTL()); err != nil {
		s.logger.Warn().Err(err).Str("jti", jti).Msg("failed to revoke access token")
		return
	}

	s.logger.Info().Str("jti", jti).Msg("access token revoked")
}

// Authenticate resolves a raw access token to its user. Used by the
// HTTP auth guard.
func (s *AuthService) Authenticate(ctx context.Context, rawAccess string) (*domain.User, string, error) {
	if rawAccess == "" {
		return nil, "", domain.ErrMissingToken
	}

	subject, jti, err := s.tokens.Verify(rawAccess, token.KindAccess)
	if err != nil {
		return nil, "", domain.ErrInvalidToken
	}

	revoked, err := s.markers.Exists(ctx, nonce.RevokedTokenKey(jti))
	if err != nil {
		s.logger.Error().Err(err).Str("jti", jti).Msg("failed to check token revocation")
		return nil, "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if revoked {
		return nil, "", domain.ErrInvalidToken
	}

	user, err := s.users.GetByIdentity(ctx, domain.ByID(subject))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", subject).Msg("failed to get user for auth guard")
		return nil, "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !user.CanAuthenticate() {
		return nil, "", domain.ErrUserNotActive
	}

	return user, jti, nil
}

// validateRegisterInput validates the input for registering a user.
func (s *AuthService) validateRegisterInput(input RegisterInput) error {
	if !domain.ValidLogin(input.Login) {
		return domain.ErrInvalidLogin
	}

	if _, err := mail.ParseAddress(input.Email); err != nil {
		return domain.ErrInvalidEmail
	}

	if !domain.ValidPassword(input.Password) {
		return domain.ErrInvalidPassword
	}

	return nil
}

// tokenDigest fingerprints a confirmation token for the marker store
// so the raw ciphertext never lands in Redis.
func tokenDigest(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
