package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arseniyrs/userhub/internal/domain/user"
)

// UsersRepo is an in-memory user directory. The mutex covers the uniqueness
// check together with the insert, so two concurrent registrations with the
// same email yield exactly one success.
type UsersRepo struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	idByEmu map[string]string // lowercased email -> id
	idByUsr map[string]string // lowercased username -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID:    make(map[string]user.User),
		idByEmu: make(map[string]string),
		idByUsr: make(map[string]string),
	}
}

func (r *UsersRepo) Create(ctx context.Context, p user.CreateParams) (user.User, error) {
	emailKey := strings.ToLower(p.Email)
	usernameKey := strings.ToLower(p.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.idByEmu[emailKey]; ok {
		return user.User{}, user.ErrEmailTaken
	}

	if _, ok := r.idByUsr[usernameKey]; ok {
		return user.User{}, user.ErrUsernameTaken
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.byID[u.ID] = u
	r.idByEmu[emailKey] = u.ID
	r.idByUsr[usernameKey] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByEmu[strings.ToLower(email)]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return r.byID[id], nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, p user.UpdateParams) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if p.Email != nil {
		key := strings.ToLower(*p.Email)

		if owner, taken := r.idByEmu[key]; taken && owner != id {
			return user.User{}, user.ErrEmailTaken
		}
	}

	if p.Username != nil {
		key := strings.ToLower(*p.Username)

		if owner, taken := r.idByUsr[key]; taken && owner != id {
			return user.User{}, user.ErrUsernameTaken
		}
	}

	delete(r.idByEmu, strings.ToLower(u.Email))
	delete(r.idByUsr, strings.ToLower(u.Username))

	u.Apply(p)
	u.UpdatedAt = time.Now().UTC()

	r.byID[id] = u
	r.idByEmu[strings.ToLower(u.Email)] = id
	r.idByUsr[strings.ToLower(u.Username)] = id

	return u, nil
}
