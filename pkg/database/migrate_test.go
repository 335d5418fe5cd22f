package database

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"002_interactions.up.sql": {Data: []byte("CREATE TABLE interactions (id UUID)")},
		"001_reviews.up.sql":      {Data: []byte("CREATE TABLE reviews (id UUID)")},
		"001_reviews.down.sql":    {Data: []byte("DROP TABLE reviews")},
		"embed.go":                {Data: []byte("package migrations")},
	}
}

func TestPendingFiles_SortedUpOnly(t *testing.T) {
	names, err := pendingFiles(migrationFS())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_reviews.up.sql", "002_interactions.up.sql"}, names)
}

func TestRunMigrations_AppliesPending(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_reviews.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("002_interactions.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE interactions").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_interactions.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	var buf bytes.Buffer
	err = RunMigrations(context.Background(), mock, migrationFS(), slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "002_interactions.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_reviews.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE reviews").WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error"})
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, migrationFS(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_reviews.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
