package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/ownership"
)

const ownerColumn = "user_id"

var todoFields = []string{"id", "user_id", "text", "completed", "completed_at", "ctime", "mtime"}

type TodoRepo struct {
	db *sql.DB
}

func NewTodoRepo(db *sql.DB) *TodoRepo {
	return &TodoRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTodo(row rowScanner) (*model.Todo, error) {
	var todo model.Todo
	var completedAt sql.NullInt64
	if err := row.Scan(&todo.ID, &todo.Creator, &todo.Text, &todo.Completed, &completedAt, &todo.Ctime, &todo.Mtime); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		ts := completedAt.Int64
		todo.CompletedAt = &ts
	}
	return &todo, nil
}

func returning() string {
	return " RETURNING " + strings.Join(todoFields, ", ")
}

func (r *TodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	completedAt := sql.NullInt64{}
	if todo.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: *todo.CompletedAt, Valid: true}
	}
	data := map[string]interface{}{
		"id":           todo.ID,
		"user_id":      todo.Creator,
		"text":         todo.Text,
		"completed":    todo.Completed,
		"completed_at": completedAt,
		"ctime":        todo.Ctime,
		"mtime":        todo.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("todos", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *TodoRepo) List(ctx context.Context, owner string) ([]model.Todo, error) {
	where := ownership.Scope(ownerColumn, owner, map[string]interface{}{"_orderby": "ctime asc"})
	sqlStr, args, err := builder.BuildSelect("todos", where, todoFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	todos := make([]model.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

func (r *TodoRepo) Get(ctx context.Context, owner, todoID string) (*model.Todo, error) {
	where := ownership.Scope(ownerColumn, owner, map[string]interface{}{"id": todoID})
	sqlStr, args, err := builder.BuildSelect("todos", where, todoFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryOne(ctx, sqlStr, args)
}

func (r *TodoRepo) Update(ctx context.Context, owner, todoID string, patch model.TodoPatch) (*model.Todo, error) {
	where := ownership.Scope(ownerColumn, owner, map[string]interface{}{"id": todoID})
	completedAt := sql.NullInt64{}
	if patch.Completed && patch.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: *patch.CompletedAt, Valid: true}
	}
	update := map[string]interface{}{
		"completed":    patch.Completed,
		"completed_at": completedAt,
		"mtime":        patch.Mtime,
	}
	if patch.Text != nil {
		update["text"] = *patch.Text
	}
	sqlStr, args, err := builder.BuildUpdate("todos", where, update)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+returning(), args)
	return r.queryOne(ctx, sqlStr, args)
}

func (r *TodoRepo) Delete(ctx context.Context, owner, todoID string) (*model.Todo, error) {
	where := ownership.Scope(ownerColumn, owner, map[string]interface{}{"id": todoID})
	sqlStr, args, err := builder.BuildDelete("todos", where)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+returning(), args)
	return r.queryOne(ctx, sqlStr, args)
}

func (r *TodoRepo) DeleteAll(ctx context.Context, owner string) (int64, error) {
	where := ownership.Scope(ownerColumn, owner, map[string]interface{}{})
	sqlStr, args, err := builder.BuildDelete("todos", where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *TodoRepo) queryOne(ctx context.Context, sqlStr string, args []interface{}) (*model.Todo, error) {
	todo, err := scanTodo(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return todo, nil
}
