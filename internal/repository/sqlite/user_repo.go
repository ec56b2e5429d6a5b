package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, login, email, password_hash, name, surname, photo, role, is_active, created_at, updated_at`

// Create persists a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, login, email, password_hash, name, surname, photo, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Login,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Surname,
		user.Photo,
		user.Role,
		boolToInt(user.IsActive),
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
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
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = ?`, userColumns, identityColumn(identity))

	row := r.db.QueryRowContext(ctx, query, identity.Value)
	user, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", identity, err)
	}

	return user, nil
}

// UpdateLogin changes the login of the matched user.
func (r *userRepository) UpdateLogin(ctx context.Context, identity domain.Identity, newLogin string) error {
	query := fmt.Sprintf(`UPDATE users SET login = ?, updated_at = ? WHERE %s = ?`, identityColumn(identity))
	return r.exec(ctx, query, newLogin, now(), identity.Value)
}

// UpdateEmail changes the email of the matched user.
func (r *userRepository) UpdateEmail(ctx context.Context, identity domain.Identity, newEmail string) error {
	query := fmt.Sprintf(`UPDATE users SET email = ?, updated_at = ? WHERE %s = ?`, identityColumn(identity))
	return r.exec(ctx, query, domain.NormalizeEmail(newEmail), now(), identity.Value)
}

// UpdatePassword swaps the password hash conditional on the previous
// hash. A concurrent change that lands first makes the condition fail.
func (r *userRepository) UpdatePassword(ctx context.Context, id, oldHash, newHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND password_hash = ?`

	result, err := r.db.ExecContext(ctx, query, newHash, now(), id, oldHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Distinguish a vanished user from a lost CAS race.
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if exists == 0 {
			return domain.ErrUserNotFound
		}
		return domain.ErrPasswordMismatch
	}

	return nil
}

// SetActive flips the confirmation flag.
func (r *userRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, boolToInt(active), now(), id)
}

// Delete removes the matched user.
func (r *userRepository) Delete(ctx context.Context, identity domain.Identity) error {
	query := fmt.Sprintf(`DELETE FROM users WHERE %s = ?`, identityColumn(identity))

	result, err := r.db.ExecContext(ctx, query, identity.Value)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// List returns users ordered by creation time, newest first.
func (r *userRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`, userColumns)

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
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
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE login = ?`, login).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check login existence: %w", err)
	}
	return count > 0, nil
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, domain.NormalizeEmail(email)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}

// exec runs an update statement and maps zero affected rows to
// domain.ErrUserNotFound and unique violations to
// domain.ErrUserAlreadyExists.
func (r *userRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: login or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
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

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a full user row.
func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var photo sql.NullString
	var isActive int
	var createdAt, updatedAt string

	err := row.Scan(
		&user.ID,
		&user.Login,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Surname,
		&photo,
		&user.Role,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if photo.Valid {
		user.Photo = photo.String
	}
	user.IsActive = isActive != 0
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return user, nil
}

// boolToInt converts a boolean to an integer (SQLite doesn't have native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
