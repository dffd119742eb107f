package memrepo

import (
	"context"
	"sync"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/ownership"
)

type TodoRepo struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*model.Todo
}

func NewTodoRepo() *TodoRepo {
	return &TodoRepo{byID: make(map[string]*model.Todo)}
}

func cloneTodo(todo *model.Todo) *model.Todo {
	cp := *todo
	if todo.CompletedAt != nil {
		ts := *todo.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}

// owned returns the todo when owner may see it. Callers hold mu.
func (r *TodoRepo) owned(owner, todoID string) (*model.Todo, bool) {
	todo, ok := r.byID[todoID]
	if !ok || !ownership.Owns(owner, todo.Creator) {
		return nil, false
	}
	return todo, true
}

func (r *TodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[todo.ID]; ok {
		return appErr.ErrConflict
	}
	r.byID[todo.ID] = cloneTodo(todo)
	r.order = append(r.order, todo.ID)
	return nil
}

func (r *TodoRepo) List(ctx context.Context, owner string) ([]model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	todos := make([]model.Todo, 0)
	for _, id := range r.order {
		if todo, ok := r.owned(owner, id); ok {
			todos = append(todos, *cloneTodo(todo))
		}
	}
	return todos, nil
}

func (r *TodoRepo) Get(ctx context.Context, owner, todoID string) (*model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	todo, ok := r.owned(owner, todoID)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return cloneTodo(todo), nil
}

func (r *TodoRepo) Update(ctx context.Context, owner, todoID string, patch model.TodoPatch) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	todo, ok := r.owned(owner, todoID)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	if patch.Text != nil {
		todo.Text = *patch.Text
	}
	todo.Completed = patch.Completed
	todo.CompletedAt = nil
	if patch.Completed && patch.CompletedAt != nil {
		ts := *patch.CompletedAt
		todo.CompletedAt = &ts
	}
	todo.Mtime = patch.Mtime
	return cloneTodo(todo), nil
}

func (r *TodoRepo) Delete(ctx context.Context, owner, todoID string) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	todo, ok := r.owned(owner, todoID)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	delete(r.byID, todoID)
	r.removeOrder(todoID)
	return todo, nil
}

func (r *TodoRepo) DeleteAll(ctx context.Context, owner string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	kept := r.order[:0]
	for _, id := range r.order {
		if todo, ok := r.byID[id]; ok && ownership.Owns(owner, todo.Creator) {
			delete(r.byID, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed, nil
}

func (r *TodoRepo) removeOrder(todoID string) {
	for i, id := range r.order {
		if id == todoID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *TodoRepo) Ping(ctx context.Context) error {
	return nil
}
