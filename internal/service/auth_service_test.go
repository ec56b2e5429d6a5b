package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/mail"
	"github.com/prn-tf/meridian-identity/internal/nonce"
	"github.com/prn-tf/meridian-identity/internal/pkg/crypto"
	"github.com/prn-tf/meridian-identity/internal/token"
)

var testKey = mustGenerateKey()

func mustGenerateKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		panic(err)
	}
	return key
}

// authFixture wires an AuthService against in-memory collaborators.
type authFixture struct {
	svc     *AuthService
	repo    *MockUserRepository
	markers *nonce.MemoryStore
	tokens  *token.Issuer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	tokens, err := token.NewIssuer(token.Config{
		PrivateKey: testKey,
		PublicKey:  &testKey.PublicKey,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * time.Minute,
		Issuer:     "meridian-test",
	})
	require.NoError(t, err)

	confirmations, err := mail.NewConfirmationSender(mail.NopMailer{}, "http://localhost:3000")
	require.NoError(t, err)

	repo := NewMockUserRepository()
	markers := nonce.NewMemoryStore()
	t.Cleanup(func() { _ = markers.Close() })

	return &authFixture{
		svc:     NewAuthService(repo, tokens, markers, confirmations, zerolog.Nop()),
		repo:    repo,
		markers: markers,
		tokens:  tokens,
	}
}

// registerActiveUser registers and activates an account directly.
func (f *authFixture) registerActiveUser(t *testing.T, login, email, password string) *domain.User {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := domain.NewUser(login, email, hash)
	user.IsActive = true
	require.NoError(t, f.repo.Create(context.Background(), user))
	return user
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name    string
		input   RegisterInput
		wantErr error
		setup   func(*authFixture)
	}{
		{
			name: "success",
			input: RegisterInput{
				Name: "Alice", Surname: "Smith",
				Login: "alice123", Email: "Alice@Example.COM",
				Password: "Secret12", ConfirmPassword: "Secret12",
			},
		},
		{
			name: "password mismatch",
			input: RegisterInput{
				Login: "alice123", Email: "alice@example.com",
				Password: "Secret12", ConfirmPassword: "Secret13",
			},
			wantErr: domain.ErrPasswordMismatch,
		},
		{
			name: "invalid login",
			input: RegisterInput{
				Login: "ab", Email: "alice@example.com",
				Password: "Secret12", ConfirmPassword: "Secret12",
			},
			wantErr: domain.ErrInvalidLogin,
		},
		{
			name: "invalid email",
			input: RegisterInput{
				Login: "alice123", Email: "not-an-email",
				Password: "Secret12", ConfirmPassword: "Secret12",
			},
			wantErr: domain.ErrInvalidEmail,
		},
		{
			name: "invalid password",
			input: RegisterInput{
				Login: "alice123", Email: "alice@example.com",
				Password: "short", ConfirmPassword: "short",
			},
			wantErr: domain.ErrInvalidPassword,
		},
		{
			name: "duplicate login",
			input: RegisterInput{
				Login: "alice123", Email: "new@example.com",
				Password: "Secret12", ConfirmPassword: "Secret12",
			},
			wantErr: domain.ErrUserAlreadyExists,
			setup: func(f *authFixture) {
				f.registerActiveUser(t, "alice123", "alice@example.com", "Secret12")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			out, err := f.svc.Register(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, out.User)
			require.False(t, out.User.IsActive)
			require.Equal(t, "alice123", out.User.Login)
			require.Equal(t, "alice@example.com", out.User.Email)
			require.Equal(t, domain.DefaultRole, out.User.Role)
			require.True(t, crypto.CheckPassword("Secret12", out.User.PasswordHash))
			require.NotEqual(t, "Secret12", out.User.PasswordHash)
		})
	}
}

func TestAuthService_Confirm(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	out, err := f.svc.Register(ctx, RegisterInput{
		Login: "alice123", Email: "alice@example.com",
		Password: "Secret12", ConfirmPassword: "Secret12",
	})
	require.NoError(t, err)

	confirmToken, err := crypto.SealToken(out.User.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Confirm(ctx, confirmToken))

	got, err := f.repo.GetByIdentity(ctx, domain.ByID(out.User.ID))
	require.NoError(t, err)
	require.True(t, got.IsActive)

	// The same token does not work twice.
	require.ErrorIs(t, f.svc.Confirm(ctx, confirmToken), domain.ErrUserAlreadyActive)

	// A fresh token for an already active user is also rejected.
	freshToken, err := crypto.SealToken(out.User.ID)
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.Confirm(ctx, freshToken), domain.ErrUserAlreadyActive)
}

func TestAuthService_Confirm_Invalid(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Confirm(ctx, "garbage"), domain.ErrInvalidToken)

	ghostToken, err := crypto.SealToken("no-such-user-id")
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.Confirm(ctx, ghostToken), domain.ErrUserNotFound)

	// Replaying the ghost token keeps reporting not-found, not
	// already-activated.
	require.ErrorIs(t, f.svc.Confirm(ctx, ghostToken), domain.ErrUserNotFound)
}

func TestAuthService_Confirm_RetryAfterFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	out, err := f.svc.Register(ctx, RegisterInput{
		Login: "alice123", Email: "alice@example.com",
		Password: "Secret12", ConfirmPassword: "Secret12",
	})
	require.NoError(t, err)

	confirmToken, err := crypto.SealToken(out.User.ID)
	require.NoError(t, err)

	// The activation write fails transiently on the first attempt.
	f.repo.updateErr = errors.New("connection reset")
	require.ErrorIs(t, f.svc.Confirm(ctx, confirmToken), ErrInternalError)

	got, err := f.repo.GetByIdentity(ctx, domain.ByID(out.User.ID))
	require.NoError(t, err)
	require.False(t, got.IsActive)

	// The same emailed link still works once the store recovers.
	f.repo.updateErr = nil
	require.NoError(t, f.svc.Confirm(ctx, confirmToken))

	got, err = f.repo.GetByIdentity(ctx, domain.ByID(out.User.ID))
	require.NoError(t, err)
	require.True(t, got.IsActive)
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerActiveUser(t, "alice123", "alice@example.com", "Secret12")

	t.Run("by login", func(t *testing.T) {
		out, err := f.svc.Login(ctx, LoginInput{Login: "alice123", Password: "Secret12"})
		require.NoError(t, err)
		require.Equal(t, user.ID, out.User.ID)
		require.NotEmpty(t, out.Access.Value)
		require.NotEmpty(t, out.Refresh.Value)
		require.NotEqual(t, out.Access.Value, out.Refresh.Value)
	})

	t.Run("by email case-insensitive", func(t *testing.T) {
		out, err := f.svc.Login(ctx, LoginInput{Email: "ALICE@Example.com", Password: "Secret12"})
		require.NoError(t, err)
		require.Equal(t, user.ID, out.User.ID)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := f.svc.Login(ctx, LoginInput{Login: "ghost999", Password: "Secret12"})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, LoginInput{Login: "alice123", Password: "WrongPass1"})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("inactive account", func(t *testing.T) {
		inactive := domain.NewUser("carol123", "carol@example.com", "hash")
		require.NoError(t, f.repo.Create(ctx, inactive))

		_, err := f.svc.Login(ctx, LoginInput{Login: "carol123", Password: "Secret12"})
		require.ErrorIs(t, err, domain.ErrUserNotActive)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerActiveUser(t, "alice123", "alice@example.com", "Secret12")

	login, err := f.svc.Login(ctx, LoginInput{Login: "alice123", Password: "Secret12"})
	require.NoError(t, err)

	out, err := f.svc.Refresh(ctx, login.Refresh.Value)
	require.NoError(t, err)
	require.Equal(t, user.ID, out.User.ID)
	require.NotEmpty(t, out.Access.Value)
	require.NotEqual(t, login.Access.ID, out.Access.ID)

	// An access token is not a refresh token.
	_, err = f.svc.Refresh(ctx, login.Access.Value)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = f.svc.Refresh(ctx, "garbage")
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	// A deleted account cannot refresh.
	require.NoError(t, f.repo.Delete(ctx, domain.ByID(user.ID)))
	_, err = f.svc.Refresh(ctx, login.Refresh.Value)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_AuthenticateAndLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerActiveUser(t, "alice123", "alice@example.com", "Secret12")

	login, err := f.svc.Login(ctx, LoginInput{Login: "alice123", Password: "Secret12"})
	require.NoError(t, err)

	got, jti, err := f.svc.Authenticate(ctx, login.Access.Value)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, login.Access.ID, jti)

	// Revoked tokens stop authenticating.
	f.svc.Logout(ctx, jti)
	_, _, err = f.svc.Authenticate(ctx, login.Access.Value)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAuthService_Authenticate_Failures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerActiveUser(t, "alice123", "alice@example.com", "Secret12")

	login, err := f.svc.Login(ctx, LoginInput{Login: "alice123", Password: "Secret12"})
	require.NoError(t, err)

	_, _, err = f.svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrMissingToken)

	_, _, err = f.svc.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	// Deactivated account.
	require.NoError(t, f.repo.SetActive(ctx, user.ID, false))
	_, _, err = f.svc.Authenticate(ctx, login.Access.Value)
	require.ErrorIs(t, err, domain.ErrUserNotActive)

	// Deleted account.
	require.NoError(t, f.repo.Delete(ctx, domain.ByID(user.ID)))
	_, _, err = f.svc.Authenticate(ctx, login.Access.Value)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
