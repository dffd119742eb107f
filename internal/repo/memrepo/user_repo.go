// Package memrepo keeps users and todos in process memory. It backs the
// "memory" store type and the service and handler tests.
package memrepo

import (
	"context"
	"sync"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

func cloneUser(user *model.User) *model.User {
	cp := *user
	cp.Tokens = append([]model.Token(nil), user.Tokens...)
	return &cp
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return appErr.ErrConflict
	}
	if _, ok := r.byID[user.ID]; ok {
		return appErr.ErrConflict
	}
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepo) GetByToken(ctx context.Context, userID, access, token string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[userID]
	if !ok || !user.HasToken(access, token) {
		return nil, appErr.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepo) AppendToken(ctx context.Context, userID string, token model.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	user.Tokens = append(user.Tokens, token)
	return nil
}

func (r *UserRepo) RemoveToken(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	kept := user.Tokens[:0]
	for _, t := range user.Tokens {
		if t.Token != token {
			kept = append(kept, t)
		}
	}
	user.Tokens = kept
	return nil
}

func (r *UserRepo) Update(ctx context.Context, userID string, patch model.UserPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	if patch.Email != nil && *patch.Email != user.Email {
		if _, taken := r.byEmail[*patch.Email]; taken {
			return appErr.ErrConflict
		}
		delete(r.byEmail, user.Email)
		r.byEmail[*patch.Email] = userID
		user.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	user.Mtime = patch.Mtime
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	delete(r.byEmail, user.Email)
	delete(r.byID, userID)
	return nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return nil
}
