package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/repository"
)

// uniqueViolationCode is the PostgreSQL SQLSTATE for unique violations.
const uniqueViolationCode = "23505"

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, login, email, password_hash, name, surname, COALESCE(photo, ''), role, is_active, created_at, updated_at`

// Create persists a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, login, email, password_hash, name, surname, photo, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		user.ID,
		user.Login,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Surname,
		user.Photo,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: login or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByIdentity retrieves a user by id, login, or email.
func (r *userRepository) GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, identityColumn(identity))

	user := &domain.User{}
	err := r.db.Pool.QueryRow(ctx, query, identity.Value).Scan(
		&user.ID,
		&user.Login,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Surname,
		&user.Photo,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", identity, err)
	}

	return user, nil
}

// UpdateLogin changes the login of the matched user.
func (r *userRepository) UpdateLogin(ctx context.Context, identity domain.Identity, newLogin string) error {
	query := fmt.Sprintf(`UPDATE users SET login = $1, updated_at = now() WHERE %s = $2`, identityColumn(identity))
	return r.exec(ctx, query, newLogin, identity.Value)
}

// UpdateEmail changes the email of the matched user.
func (r *userRepository) UpdateEmail(ctx context.Context, identity domain.Identity, newEmail string) error {
	query := fmt.Sprintf(`UPDATE users SET email = $1, updated_at = now() WHERE %s = $2`, identityColumn(identity))
	return r.exec(ctx, query, domain.NormalizeEmail(newEmail), identity.Value)
}

// UpdatePassword swaps the password hash conditional on the previous
// hash still being in place.
func (r *userRepository) UpdatePassword(ctx context.Context, id, oldHash, newHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2 AND password_hash = $3`

	tag, err := r.db.Pool.Exec(ctx, query, newHash, id, oldHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a vanished user from a lost CAS race.
		var exists bool
		if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if !exists {
			return domain.ErrUserNotFound
		}
		return domain.ErrPasswordMismatch
	}

	return nil
}

// SetActive flips the confirmation flag.
func (r *userRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2`, active, id)
}

// Delete removes the matched user.
func (r *userRepository) Delete(ctx context.Context, identity domain.Identity) error {
	query := fmt.Sprintf(`DELETE FROM users WHERE %s = $1`, identityColumn(identity))

	tag, err := r.db.Pool.Exec(ctx, query, identity.Value)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// List returns users ordered by creation time, newest first.
func (r *userRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, userColumns)

	rows, err := r.db.Pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		err := rows.Scan(
			&user.ID,
			&user.Login,
			&user.Email,
			&user.PasswordHash,
			&user.Name,
			&user.Surname,
			&user.Photo,
			&user.Role,
			&user.IsActive,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// ExistsByLogin checks if a user with the given login exists.
func (r *userRepository) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE login = $1)`, login).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check login existence: %w", err)
	}
	return exists, nil
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, domain.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// exec runs an update statement and maps zero affected rows to
// domain.ErrUserNotFound and unique violations to
// domain.ErrUserAlreadyExists.
func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: login or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// identityColumn maps an identity tag to the column it matches on.
func identityColumn(identity domain.Identity) string {
	switch identity.Kind {
	case domain.IdentityByLogin:
		return "login"
	case domain.IdentityByEmail:
		return "email"
	default:
		return "id"
	}
}

// isUniqueViolation checks if an error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
