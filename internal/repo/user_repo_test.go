package repo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestUserRepoCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO (.*)users").WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Create(context.Background(), &model.User{ID: "u1", Email: "a@example.com", PasswordHash: "h"})
	require.NoError(t, err)
}

func TestUserRepoCreateDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO (.*)users").WillReturnError(&pq.Error{Code: "23505"})
	err := repo.Create(context.Background(), &model.User{ID: "u1", Email: "a@example.com", PasswordHash: "h"})
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestUserRepoGetByEmailLoadsTokens(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM (.*)users").
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userFields).AddRow("u1", "a@example.com", "h", 1, 2))
	mock.ExpectQuery("SELECT (.+) FROM (.*)user_tokens").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"access", "token"}).
			AddRow("auth", "t1").
			AddRow("auth", "t2"))

	user, err := repo.GetByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, "h", user.PasswordHash)
	require.Equal(t, []model.Token{{Access: "auth", Token: "t1"}, {Access: "auth", Token: "t2"}}, user.Tokens)
}

func TestUserRepoGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM (.*)users").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userFields))

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUserRepoGetByTokenRequiresStoredToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`FROM users WHERE id = \$1 AND EXISTS (.+)t.access = \$2 AND t.token = \$3`).
		WithArgs("u1", "auth", "revoked").
		WillReturnRows(sqlmock.NewRows(userFields))

	_, err := repo.GetByToken(context.Background(), "u1", "auth", "revoked")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUserRepoGetByToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`FROM users WHERE id = \$1 AND EXISTS`).
		WithArgs("u1", "auth", "t1").
		WillReturnRows(sqlmock.NewRows(userFields).AddRow("u1", "a@example.com", "h", 1, 2))
	mock.ExpectQuery("SELECT (.+) FROM (.*)user_tokens").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"access", "token"}).AddRow("auth", "t1"))

	user, err := repo.GetByToken(context.Background(), "u1", "auth", "t1")
	require.NoError(t, err)
	require.True(t, user.HasToken("auth", "t1"))
}

func TestUserRepoAppendTokenIsSingleInsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO (.*)user_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.AppendToken(context.Background(), "u1", model.Token{Access: "auth", Token: "t1"}))
}

func TestUserRepoAppendTokenUnknownUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO (.*)user_tokens").WillReturnError(&pq.Error{Code: "23503"})
	err := repo.AppendToken(context.Background(), "missing", model.Token{Access: "auth", Token: "t1"})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUserRepoRemoveToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("DELETE FROM (.*)user_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RemoveToken(context.Background(), "u1", "t1"))
}

func TestUserRepoUpdateWithoutPasswordLeavesHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	email := "b@example.com"
	mock.ExpectExec(`UPDATE (.*)users(.*)SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), "u1", model.UserPatch{Email: &email, Mtime: 3}))
}

func TestUserRepoUpdateNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(`UPDATE (.*)users(.*)SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), "missing", model.UserPatch{Mtime: 3})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUserRepoDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("DELETE FROM (.*)users").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "u1"))

	mock.ExpectExec("DELETE FROM (.*)users").WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), "u1"), appErr.ErrNotFound)
}
