package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

type TodoService struct {
	todos TodoStore
	cache TodoCache
	now   func() time.Time
}

// NewTodoService builds the service; cache may be nil.
func NewTodoService(todos TodoStore, cache TodoCache) *TodoService {
	return &TodoService{todos: todos, cache: cache, now: time.Now}
}

func (s *TodoService) Create(ctx context.Context, owner, text string) (*model.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErr.ErrInvalid
	}
	now := s.now().Unix()
	todo := &model.Todo{
		ID:      newID(),
		Text:    text,
		Creator: owner,
		Ctime:   now,
		Mtime:   now,
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) List(ctx context.Context, owner string) ([]model.Todo, error) {
	return s.todos.List(ctx, owner)
}

func (s *TodoService) Get(ctx context.Context, owner, todoID string) (*model.Todo, error) {
	if !IsValidID(todoID) {
		return nil, appErr.ErrNotFound
	}
	var (
		version  int64
		fillable bool
	)
	if s.cache != nil {
		cached, ver, err := s.cache.Get(ctx, owner, todoID)
		switch {
		case err != nil:
			logutil.GetLogger(ctx).Warn("todo cache get failed", zap.String("todo_id", todoID), zap.Error(err))
		case cached != nil:
			return cached, nil
		default:
			version, fillable = ver, true
		}
	}
	// version was taken before this read; a Delete or Update after that point
	// turns the fill into a no-op.
	todo, err := s.todos.Get(ctx, owner, todoID)
	if err != nil {
		return nil, err
	}
	if fillable {
		if err := s.cache.Fill(ctx, todo, version); err != nil {
			logutil.GetLogger(ctx).Warn("todo cache fill failed", zap.String("todo_id", todoID), zap.Error(err))
		}
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, owner, todoID string) (*model.Todo, error) {
	if !IsValidID(todoID) {
		return nil, appErr.ErrNotFound
	}
	todo, err := s.todos.Delete(ctx, owner, todoID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, owner, todoID)
	return todo, nil
}

type TodoUpdateInput struct {
	Text      *string
	Completed bool
}

// Update applies a client patch. Completed=true stamps CompletedAt with the
// current epoch milliseconds; Completed=false clears both fields.
func (s *TodoService) Update(ctx context.Context, owner, todoID string, input TodoUpdateInput) (*model.Todo, error) {
	if !IsValidID(todoID) {
		return nil, appErr.ErrNotFound
	}
	now := s.now()
	patch := model.TodoPatch{Mtime: now.Unix()}
	if input.Text != nil {
		text := strings.TrimSpace(*input.Text)
		if text == "" {
			return nil, appErr.ErrInvalid
		}
		patch.Text = &text
	}
	if input.Completed {
		completedAt := now.UnixMilli()
		patch.Completed = true
		patch.CompletedAt = &completedAt
	}
	todo, err := s.todos.Update(ctx, owner, todoID, patch)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, owner, todoID)
	return todo, nil
}

// DeleteAll removes every todo of owner. Cached entries expire on their own.
func (s *TodoService) DeleteAll(ctx context.Context, owner string) (int64, error) {
	return s.todos.DeleteAll(ctx, owner)
}

func (s *TodoService) invalidate(ctx context.Context, owner, todoID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, owner, todoID); err != nil {
		logutil.GetLogger(ctx).Warn("todo cache invalidate failed", zap.String("todo_id", todoID), zap.Error(err))
	}
}
