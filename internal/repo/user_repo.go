package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/timeutil"
)

var userFields = []string{"id", "email", "password_hash", "ctime", "mtime"}

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	data := map[string]interface{}{
		"id":            user.ID,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"ctime":         user.Ctime,
		"mtime":         user.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("users", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	for _, token := range user.Tokens {
		if err := r.AppendToken(ctx, user.ID, token); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"id": userID})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"email": email})
}

// GetByToken returns the user only while it still holds token under access.
func (r *UserRepo) GetByToken(ctx context.Context, userID, access, token string) (*model.User, error) {
	sqlStr := "SELECT id, email, password_hash, ctime, mtime FROM users WHERE id = ? " +
		"AND EXISTS (SELECT 1 FROM user_tokens t WHERE t.user_id = users.id AND t.access = ? AND t.token = ?)"
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{userID, access, token})
	user, err := r.scanOne(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	if err := r.loadTokens(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AppendToken is a single INSERT, so concurrent logins cannot overwrite each
// other's tokens.
func (r *UserRepo) AppendToken(ctx context.Context, userID string, token model.Token) error {
	data := map[string]interface{}{
		"user_id": userID,
		"access":  token.Access,
		"token":   token.Token,
		"ctime":   timeutil.NowUnix(),
	}
	sqlStr, args, err := builder.BuildInsert("user_tokens", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsForeignKeyViolation(err) {
			return appErr.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *UserRepo) RemoveToken(ctx context.Context, userID, token string) error {
	where := map[string]interface{}{"user_id": userID, "token": token}
	sqlStr, args, err := builder.BuildDelete("user_tokens", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *UserRepo) Update(ctx context.Context, userID string, patch model.UserPatch) error {
	where := map[string]interface{}{"id": userID}
	update := map[string]interface{}{"mtime": patch.Mtime}
	if patch.Email != nil {
		update["email"] = *patch.Email
	}
	if patch.PasswordHash != nil {
		update["password_hash"] = *patch.PasswordHash
	}
	sqlStr, args, err := builder.BuildUpdate("users", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Delete removes the user; tokens and todos follow through ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	sqlStr, args, err := builder.BuildDelete("users", map[string]interface{}{"id": userID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.User, error) {
	sqlStr, args, err := builder.BuildSelect("users", where, userFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	user, err := r.scanOne(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	if err := r.loadTokens(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) scanOne(ctx context.Context, sqlStr string, args []interface{}) (*model.User, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	var user model.User
	if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Ctime, &user.Mtime); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) loadTokens(ctx context.Context, user *model.User) error {
	where := map[string]interface{}{"user_id": user.ID, "_orderby": "id asc"}
	sqlStr, args, err := builder.BuildSelect("user_tokens", where, []string{"access", "token"})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	user.Tokens = make([]model.Token, 0)
	for rows.Next() {
		var token model.Token
		if err := rows.Scan(&token.Access, &token.Token); err != nil {
			return err
		}
		user.Tokens = append(user.Tokens, token)
	}
	return rows.Err()
}
