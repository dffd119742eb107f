package service

import (
	"context"

	"github.com/xxxsen/mtodo/internal/model"
)

// UserStore persists users. Lookups that match nothing return
// appErr.ErrNotFound, a duplicate email returns appErr.ErrConflict.
// AppendToken and RemoveToken must be single atomic storage operations.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByToken(ctx context.Context, userID, access, token string) (*model.User, error)
	AppendToken(ctx context.Context, userID string, token model.Token) error
	RemoveToken(ctx context.Context, userID, token string) error
	Update(ctx context.Context, userID string, patch model.UserPatch) error
	Delete(ctx context.Context, userID string) error
}

// TodoStore persists todos. Every method is scoped to owner; a todo owned by
// someone else is reported as appErr.ErrNotFound.
type TodoStore interface {
	Create(ctx context.Context, todo *model.Todo) error
	List(ctx context.Context, owner string) ([]model.Todo, error)
	Get(ctx context.Context, owner, todoID string) (*model.Todo, error)
	Update(ctx context.Context, owner, todoID string, patch model.TodoPatch) (*model.Todo, error)
	Delete(ctx context.Context, owner, todoID string) (*model.Todo, error)
	DeleteAll(ctx context.Context, owner string) (int64, error)
}

// TodoCache is a read-through cache of single todos. Get returns a nil todo
// on a miss together with the key's current version. Fill stores todo only if
// the version is still the one Get returned; Invalidate drops the entry and
// bumps the version so that fills started before it are discarded.
type TodoCache interface {
	Get(ctx context.Context, owner, todoID string) (*model.Todo, int64, error)
	Fill(ctx context.Context, todo *model.Todo, version int64) error
	Invalidate(ctx context.Context, owner, todoID string) error
}

// TodoPurger removes every todo of an owner; used by account deletion.
type TodoPurger interface {
	DeleteAll(ctx context.Context, owner string) (int64, error)
}
