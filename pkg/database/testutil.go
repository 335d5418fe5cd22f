package database

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool creates a pgxmock pool for repository tests. Expectations are
// regular expressions matched against the statement with its whitespace
// collapsed, so multi-line queries can be matched on one line.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
}

// ExpectTx brackets the expectations registered by body with a BeginTx using
// opts and either a Commit or a Rollback, matching how WithTx ends.
func ExpectTx(mock pgxmock.PgxPoolIface, opts pgx.TxOptions, commit bool, body func()) {
	mock.ExpectBeginTx(opts)
	body()
	if commit {
		mock.ExpectCommit()
		return
	}
	mock.ExpectRollback()
}

// PgError returns a server error carrying SQLSTATE code, for driving the
// error classifiers from mocked statements.
func PgError(code string) *pgconn.PgError {
	return &pgconn.PgError{Severity: "ERROR", Code: code, Message: "sqlstate " + code}
}
