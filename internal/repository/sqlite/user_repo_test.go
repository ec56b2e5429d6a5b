package sqlite

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/repository"
)

// newTestRepo opens an in-memory database with the schema applied.
func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()

	ctx := context.Background()
	db, err := NewDB(ctx, DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))

	return NewUserRepository(db)
}

func seedUser(t *testing.T, repo repository.UserRepository, login, email string) *domain.User {
	t.Helper()
	user := domain.NewUser(login, email, "hash-"+login)
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := seedUser(t, repo, "alice123", "Alice@Example.COM")

	for _, identity := range []domain.Identity{
		domain.ByID(user.ID),
		domain.ByLogin("alice123"),
		domain.ByEmail("alice@example.com"),
		domain.ByEmail("ALICE@EXAMPLE.COM"),
	} {
		got, err := repo.GetByIdentity(ctx, identity)
		require.NoError(t, err, "identity %s", identity)
		require.Equal(t, user.ID, got.ID)
		require.Equal(t, "alice@example.com", got.Email)
		require.Equal(t, "hash-alice123", got.PasswordHash)
		require.False(t, got.IsActive)
	}
}

func TestUserRepository_GetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByIdentity(context.Background(), domain.ByLogin("ghost"))
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedUser(t, repo, "alice123", "alice@example.com")

	sameLogin := domain.NewUser("alice123", "other@example.com", "hash")
	require.ErrorIs(t, repo.Create(ctx, sameLogin), domain.ErrUserAlreadyExists)

	sameEmail := domain.NewUser("bob12345", "alice@example.com", "hash")
	require.ErrorIs(t, repo.Create(ctx, sameEmail), domain.ErrUserAlreadyExists)

	users, err := repo.List(ctx, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestUserRepository_UpdateLogin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := seedUser(t, repo, "alice123", "alice@example.com")

	require.NoError(t, repo.UpdateLogin(ctx, domain.ByID(user.ID), "alice456"))

	got, err := repo.GetByIdentity(ctx, domain.ByLogin("alice456"))
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = repo.GetByIdentity(ctx, domain.ByLogin("alice123"))
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	require.ErrorIs(t, repo.UpdateLogin(ctx, domain.ByLogin("ghost"), "whoever1"), domain.ErrUserNotFound)

	// Taking another user's login is a conflict.
	seedUser(t, repo, "bob12345", "bob@example.com")
	require.ErrorIs(t, repo.UpdateLogin(ctx, domain.ByID(user.ID), "bob12345"), domain.ErrUserAlreadyExists)
}

func TestUserRepository_UpdateEmail_Normalizes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := seedUser(t, repo, "alice123", "alice@example.com")

	require.NoError(t, repo.UpdateEmail(ctx, domain.ByID(user.ID), "New.Alice@Example.COM"))

	got, err := repo.GetByIdentity(ctx, domain.ByID(user.ID))
	require.NoError(t, err)
	require.Equal(t, "new.alice@example.com", got.Email)
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := seedUser(t, repo, "alice123", "alice@example.com")

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "hash-alice123", "new-hash"))

	got, err := repo.GetByIdentity(ctx, domain.ByID(user.ID))
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)

	// Stale old hash loses the conditional write.
	require.ErrorIs(t, repo.UpdatePassword(ctx, user.ID, "hash-alice123", "another-hash"), domain.ErrPasswordMismatch)

	require.ErrorIs(t, repo.UpdatePassword(ctx, "no-such-id", "x", "y"), domain.ErrUserNotFound)
}

func TestUserRepository_SetActive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := seedUser(t, repo, "alice123", "alice@example.com")

	require.NoError(t, repo.SetActive(ctx, user.ID, true))

	got, err := repo.GetByIdentity(ctx, domain.ByID(user.ID))
	require.NoError(t, err)
	require.True(t, got.IsActive)

	require.ErrorIs(t, repo.SetActive(ctx, "no-such-id", true), domain.ErrUserNotFound)
}

func TestUserRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := seedUser(t, repo, "alice123", "alice@example.com")

	require.NoError(t, repo.Delete(ctx, domain.ByID(user.ID)))

	for _, identity := range []domain.Identity{
		domain.ByID(user.ID),
		domain.ByLogin("alice123"),
		domain.ByEmail("alice@example.com"),
	} {
		_, err := repo.GetByIdentity(ctx, identity)
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	}

	require.ErrorIs(t, repo.Delete(ctx, domain.ByID(user.ID)), domain.ErrUserNotFound)
}

func TestUserRepository_Exists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedUser(t, repo, "alice123", "alice@example.com")

	exists, err := repo.ExistsByLogin(ctx, "alice123")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByLogin(ctx, "ghost")
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestUserRepository_List(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedUser(t, repo, "alice123", "alice@example.com")
	seedUser(t, repo, "bob12345", "bob@example.com")
	seedUser(t, repo, "carol123", "carol@example.com")

	users, err := repo.List(ctx, repository.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, users, 2)

	rest, err := repo.List(ctx, repository.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
}
