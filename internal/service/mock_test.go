package service

import (
	"context"
	"sort"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/repository"
)

// MockUserRepository is a map-backed implementation of
// repository.UserRepository for service tests.
type MockUserRepository struct {
	users map[string]*domain.User // keyed by ID

	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

func (m *MockUserRepository) find(identity domain.Identity) *domain.User {
	for _, u := range m.users {
		switch identity.Kind {
		case domain.IdentityByID:
			if u.ID == identity.Value {
				return u
			}
		case domain.IdentityByLogin:
			if u.Login == identity.Value {
				return u
			}
		case domain.IdentityByEmail:
			if u.Email == identity.Value {
				return u
			}
		}
	}
	return nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Login == user.Login || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u := m.find(identity); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) UpdateLogin(ctx context.Context, identity domain.Identity, newLogin string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	u := m.find(identity)
	if u == nil {
		return domain.ErrUserNotFound
	}
	for _, other := range m.users {
		if other.ID != u.ID && other.Login == newLogin {
			return domain.ErrUserAlreadyExists
		}
	}
	u.Login = newLogin
	return nil
}

func (m *MockUserRepository) UpdateEmail(ctx context.Context, identity domain.Identity, newEmail string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	u := m.find(identity)
	if u == nil {
		return domain.ErrUserNotFound
	}
	normalized := domain.NormalizeEmail(newEmail)
	for _, other := range m.users {
		if other.ID != u.ID && other.Email == normalized {
			return domain.ErrUserAlreadyExists
		}
	}
	u.Email = normalized
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, oldHash, newHash string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.PasswordHash != oldHash {
		return domain.ErrPasswordMismatch
	}
	u.PasswordHash = newHash
	return nil
}

func (m *MockUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, identity domain.Identity) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	u := m.find(identity)
	if u == nil {
		return domain.ErrUserNotFound
	}
	delete(m.users, u.ID)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.User, error) {
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var result []*domain.User
	for i, id := range ids {
		if i < opts.Offset {
			continue
		}
		if len(result) >= opts.Limit {
			break
		}
		cp := *m.users[id]
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockUserRepository) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	return m.find(domain.ByLogin(login)) != nil, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.find(domain.ByEmail(email)) != nil, nil
}

// Ensure the mock stays in sync with the interface.
var _ repository.UserRepository = (*MockUserRepository)(nil)
