package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/coursereviews/pkg/database"
	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

func sampleInteraction(kind domain.InteractionKind) domain.Interaction {
	return domain.Interaction{
		ID:        "44444444-4444-4444-4444-444444444444",
		Kind:      kind,
		Type:      domain.ReviewTypeCourse,
		TargetID:  "COMP248",
		UserID:    "author-1",
		Referrer:  "reader-1",
		CreatedAt: testNow,
	}
}

func expectLikes(mock pgxmock.PgxPoolIface, delta int, affected int64) {
	mock.ExpectExec("UPDATE reviews SET likes = likes \\+").
		WithArgs(delta, "course", "COMP248", "author-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", affected))
}

func TestInteractionRepository_Insert(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindDislike)
	mock.ExpectBeginTx(pgx.TxOptions{})
	expectLikes(mock, -1, 1)
	mock.ExpectExec("INSERT INTO interactions").
		WithArgs(i.ID, "dislike", "course", "COMP248", "author-1", "reader-1", testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Insert(context.Background(), &i))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_Insert_ConcurrentCreateConflicts(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindLike)
	mock.ExpectBeginTx(pgx.TxOptions{})
	expectLikes(mock, 1, 1)
	mock.ExpectExec("INSERT INTO interactions").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), &i)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_SwapKind_DeadlockConflicts(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindLike)
	key := i.Key()
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("UPDATE interactions SET kind").
		WillReturnError(&pgconn.PgError{Code: "40P01"})
	mock.ExpectRollback()

	err := repo.SwapKind(context.Background(), key, domain.KindLike, domain.KindDislike, -2)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_Insert_MissingReview(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindLike)
	mock.ExpectBeginTx(pgx.TxOptions{})
	expectLikes(mock, 1, 0)
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), &i)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_SwapKind(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindLike)
	key := i.Key()
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("UPDATE interactions SET kind").
		WithArgs("dislike", "COMP248", "author-1", "reader-1", "course", "like").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectLikes(mock, -2, 1)
	mock.ExpectCommit()

	require.NoError(t, repo.SwapKind(context.Background(), key, domain.KindLike, domain.KindDislike, -2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_SwapKind_StaleKindConflicts(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindLike)
	key := i.Key()
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("UPDATE interactions SET kind").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.SwapKind(context.Background(), key, domain.KindLike, domain.KindDislike, -2)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_Remove_RevertsLikes(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindDislike)
	key := i.Key()
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("DELETE FROM interactions .+ RETURNING kind").
		WithArgs("COMP248", "author-1", "reader-1", "course").
		WillReturnRows(pgxmock.NewRows([]string{"kind"}).AddRow("dislike"))
	expectLikes(mock, 1, 1)
	mock.ExpectCommit()

	kind, err := repo.Remove(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, domain.KindDislike, kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_Remove_ReviewGone(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindLike)
	key := i.Key()
	database.ExpectTx(mock, pgx.TxOptions{}, true, func() {
		mock.ExpectQuery("DELETE FROM interactions .+ RETURNING kind").
			WithArgs("COMP248", "author-1", "reader-1", "course").
			WillReturnRows(pgxmock.NewRows([]string{"kind"}).AddRow("like"))
		expectLikes(mock, -1, 0)
	})

	kind, err := repo.Remove(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, domain.KindLike, kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_Remove_Absent(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("DELETE FROM interactions").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	i := sampleInteraction(domain.KindLike)
	_, err := repo.Remove(context.Background(), i.Key())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_DeleteForReview_LeavesLikes(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	mock.ExpectExec("DELETE FROM interactions WHERE type").
		WithArgs("course", "COMP248", "author-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := repo.DeleteForReview(context.Background(),
		domain.ReviewKey{Type: domain.ReviewTypeCourse, TargetID: "COMP248", AuthorID: "author-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepository_Get(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewInteractionRepository(mock)

	i := sampleInteraction(domain.KindLike)
	mock.ExpectQuery("SELECT .+ FROM interactions WHERE target_id").
		WithArgs("COMP248", "author-1", "reader-1", "course").
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "type", "target_id", "user_id", "referrer", "created_at"}).
			AddRow(i.ID, "like", "course", "COMP248", "author-1", "reader-1", testNow))

	got, err := repo.Get(context.Background(), i.Key())
	require.NoError(t, err)
	assert.Equal(t, i, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
