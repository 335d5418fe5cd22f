package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

func TestReviewRepository_GetByID_CoursePayload(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	r := sampleCourseReview()
	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id").
		WithArgs(r.ID).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(r)...))

	got, err := repo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewTypeCourse, got.Type)
	require.NotNil(t, got.Course)
	assert.Nil(t, got.Instructor)
	assert.Equal(t, *r.Course, *got.Course)
	assert.Equal(t, 3, got.Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByKey_InstructorPayload(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	r := sampleInstructorReview()
	mock.ExpectQuery("SELECT .+ FROM reviews WHERE type = .+ AND target_id = .+ AND author_id").
		WithArgs("instructor", r.TargetID, r.AuthorID).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(r)...))

	got, err := repo.GetByKey(context.Background(), r.Key())
	require.NoError(t, err)
	require.NotNil(t, got.Instructor)
	assert.Equal(t, r.Instructor.Tags, got.Instructor.Tags)
	assert.Equal(t, "COMP248", got.Instructor.CourseID)
	assert.Equal(t, 5, got.Rating())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Upsert_Insert(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	r := sampleCourseReview()
	r.Likes = 0
	mock.ExpectQuery("INSERT INTO reviews .+ ON CONFLICT \\(type, target_id, author_id\\) DO UPDATE").
		WithArgs(r.ID, "course", r.AuthorID, r.TargetID, r.Content, r.Timestamp,
			2, 5, 0, []string{}, "aiman-hanna", "COMP248").
		WillReturnRows(pgxmock.NewRows([]string{"id", "likes", "inserted"}).AddRow(r.ID, 0, true))

	inserted, err := repo.Upsert(context.Background(), &r)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Upsert_OverwriteKeepsIDAndLikes(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	r := sampleInstructorReview()
	r.ID = "33333333-3333-3333-3333-333333333333"
	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(r.ID, "instructor", r.AuthorID, r.TargetID, r.Content, r.Timestamp,
			4, 0, 5, []string{"Amazing Lectures", "Caring"}, "aiman-hanna", "COMP248").
		WillReturnRows(pgxmock.NewRows([]string{"id", "likes", "inserted"}).
			AddRow("22222222-2222-2222-2222-222222222222", 7, false))

	inserted, err := repo.Upsert(context.Background(), &r)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", r.ID)
	assert.Equal(t, 7, r.Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectExec("DELETE FROM reviews WHERE id").
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Delete_ConnectionLossIsTransient(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectExec("DELETE FROM reviews WHERE id").
		WithArgs("r1").
		WillReturnError(&pgconn.PgError{Code: "08006"})

	err := repo.Delete(context.Background(), "r1")
	assert.ErrorIs(t, err, apperrors.ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByTarget_SortAndInstructorFilter(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	r := sampleCourseReview()
	row := append(reviewRow(r), 11)

	mock.ExpectQuery(`WHERE type = \$1 AND target_id = \$2 AND instructor_id = \$3 ORDER BY likes DESC, id ASC LIMIT \$4 OFFSET \$5`).
		WithArgs("course", "COMP248", "aiman-hanna", 10, 10).
		WillReturnRows(pgxmock.NewRows(reviewColsWithCount).AddRow(row...))

	q := domain.ReviewQuery{
		Type:         domain.ReviewTypeCourse,
		TargetID:     "COMP248",
		InstructorID: "aiman-hanna",
		Sort:         domain.ReviewSort{By: domain.ReviewSortLikes, Reverse: true},
	}
	// Offset 15 snaps down to the page starting at 10.
	reviews, total, err := repo.ListByTarget(context.Background(), q, pagination.Window{Limit: 10, Offset: 15})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, reviews, 1)
	assert.Equal(t, r.ID, reviews[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByTarget_DefaultNewestFirst(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectQuery(`ORDER BY posted_at DESC, id ASC`).
		WithArgs("instructor", "aiman-hanna", 20, 0).
		WillReturnRows(pgxmock.NewRows(reviewColsWithCount))

	reviews, total, err := repo.ListByTarget(context.Background(),
		domain.ReviewQuery{Type: domain.ReviewTypeInstructor, TargetID: "aiman-hanna"},
		pagination.DefaultWindow())
	require.NoError(t, err)
	assert.Empty(t, reviews)
	assert.NotNil(t, reviews)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByTarget_PastLastPageKeepsTotal(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectQuery(`WHERE type = \$1 AND target_id = \$2 ORDER BY .+ LIMIT \$3 OFFSET \$4`).
		WithArgs("course", "COMP248", 10, 20).
		WillReturnRows(pgxmock.NewRows(reviewColsWithCount))
	mock.ExpectQuery(`SELECT count\(\*\) FROM reviews WHERE type = \$1 AND target_id = \$2`).
		WithArgs("course", "COMP248").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(11))

	reviews, total, err := repo.ListByTarget(context.Background(),
		domain.ReviewQuery{Type: domain.ReviewTypeCourse, TargetID: "COMP248"},
		pagination.Window{Limit: 10, Offset: 20})
	require.NoError(t, err)
	assert.Empty(t, reviews)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByAuthor(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	c, i := sampleCourseReview(), sampleInstructorReview()
	mock.ExpectQuery("SELECT .+ FROM reviews WHERE author_id = .+ ORDER BY posted_at DESC").
		WithArgs("author-1").
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(c)...).AddRow(reviewRow(i)...))

	reviews, err := repo.ListByAuthor(context.Background(), "author-1")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.NotNil(t, reviews[0].Course)
	assert.NotNil(t, reviews[1].Instructor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ExistsAndCount(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("course", "COMP248", "author-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reviews").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	ok, err := repo.Exists(context.Background(), domain.ReviewKey{Type: domain.ReviewTypeCourse, TargetID: "COMP248", AuthorID: "author-1"})
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
