package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mtodo/internal/config"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"migrations/001_init.sql": {Data: []byte("CREATE TABLE a (id TEXT);\nCREATE TABLE b (id TEXT);\n")},
		"migrations/002_more.sql": {Data: []byte("ALTER TABLE a ADD COLUMN x INT;")},
		"migrations/README.md":    {Data: []byte("ignored")},
	}
}

func TestApplyMigrationsRunsPending(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_init"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE a ADD COLUMN x INT")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs("002_more", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, applyMigrations(context.Background(), sqlDB, testMigrations()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyMigrationsRollsBackOnFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id TEXT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id TEXT)")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err = applyMigrations(context.Background(), sqlDB, testMigrations())
	require.Error(t, err)
	require.Contains(t, err.Error(), "001_init.sql")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := migrationFiles(migrationsFS)
	require.NoError(t, err)
	require.Equal(t, []string{"001_init.sql"}, files)
}

func TestDSNFromConfig(t *testing.T) {
	require.Equal(t, "postgres://x", dsnFromConfig(config.PostgresConfig{DSN: "postgres://x"}))
	require.Equal(t,
		"host=db port=5432 user=u password=p dbname=todo sslmode=disable",
		dsnFromConfig(config.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "todo"}),
	)
}
