// Package repositorytest provides an in-memory UserRepository for tests.
package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/repository"
)

// Users is a map-backed repository.UserRepository. It follows the Postgres
// implementation's error contract.
type Users struct {
	mu    sync.Mutex
	byID  map[string]domain.User
	Err   error
	Calls int
}

// NewUsers returns an empty store.
func NewUsers() *Users {
	return &Users{byID: make(map[string]domain.User)}
}

var _ repository.UserRepository = (*Users)(nil)

// Seed stores user as is, assigning an id when empty, and returns the stored copy.
func (u *Users) Seed(user domain.User) domain.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	u.byID[user.ID] = user
	return user
}

func (u *Users) Create(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Calls++
	if u.Err != nil {
		return u.Err
	}
	for _, existing := range u.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	u.byID[user.ID] = *user
	return nil
}

func (u *Users) Update(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Calls++
	if u.Err != nil {
		return u.Err
	}
	if _, ok := u.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now().UTC()
	u.byID[user.ID] = *user
	return nil
}

func (u *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Calls++
	if u.Err != nil {
		return nil, u.Err
	}
	user, ok := u.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Calls++
	if u.Err != nil {
		return nil, u.Err
	}
	for _, user := range u.byID {
		if strings.EqualFold(user.Email, email) {
			found := user
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (u *Users) List(_ context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Calls++
	if u.Err != nil {
		return nil, 0, u.Err
	}
	if _, ok := repository.SortColumn(filter.OrderBy); !ok {
		return nil, 0, fmt.Errorf("unsupported sort key %q", filter.OrderBy)
	}

	all := make([]domain.User, 0, len(u.byID))
	for _, user := range u.byID {
		all = append(all, user)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := sortKey(all[i], filter.OrderBy), sortKey(all[j], filter.OrderBy)
		if a == b {
			return all[i].ID < all[j].ID
		}
		if filter.Desc {
			return a > b
		}
		return a < b
	})

	total := len(all)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func sortKey(user domain.User, key string) string {
	switch key {
	case "surname":
		return user.Surname
	case "name":
		return user.Name
	case "fathername":
		return user.Fathername
	case "email":
		return user.Email
	case "birthDate":
		return user.BirthDate.Format(time.DateOnly)
	case "role":
		return string(user.Role)
	case "status":
		return string(user.Status)
	case "createdAt":
		return user.CreatedAt.Format(time.RFC3339Nano)
	default:
		return user.ID
	}
}
