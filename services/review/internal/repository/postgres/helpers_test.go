package postgres

import (
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/coursereviews/pkg/database"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return mock
}

var testNow = time.Date(2025, 9, 2, 14, 30, 0, 0, time.UTC)

func fixClock(t *testing.T) {
	t.Helper()
	prev := clock
	clock = func() time.Time { return testNow }
	t.Cleanup(func() { clock = prev })
}

// ─── Review column definitions ──────────────────────────────────────────────

var reviewCols = []string{
	"id", "type", "author_id", "target_id", "content", "posted_at", "likes",
	"difficulty", "experience", "rating", "tags", "instructor_id", "course_id",
}

var reviewColsWithCount = append(append([]string(nil), reviewCols...), "total_count")

func sampleCourseReview() domain.Review {
	return domain.Review{
		ID:        "11111111-1111-1111-1111-111111111111",
		Type:      domain.ReviewTypeCourse,
		AuthorID:  "author-1",
		TargetID:  "COMP248",
		Content:   "Great intro to Java",
		Timestamp: testNow,
		Likes:     3,
		Course:    &domain.CoursePayload{Difficulty: 2, Experience: 5, InstructorID: "aiman-hanna"},
	}
}

func sampleInstructorReview() domain.Review {
	return domain.Review{
		ID:        "22222222-2222-2222-2222-222222222222",
		Type:      domain.ReviewTypeInstructor,
		AuthorID:  "author-2",
		TargetID:  "aiman-hanna",
		Content:   "Clear lectures",
		Timestamp: testNow,
		Instructor: &domain.InstructorPayload{
			Difficulty: 4,
			Rating:     5,
			Tags:       []domain.Tag{domain.TagAmazingLectures, domain.TagCaring},
			CourseID:   "COMP248",
		},
	}
}

func reviewRow(r domain.Review) []any {
	difficulty, experience, rating, tags, instructorID, courseID := reviewColumns(&r)
	return []any{
		r.ID, string(r.Type), r.AuthorID, r.TargetID, r.Content, r.Timestamp, r.Likes,
		difficulty, experience, rating, tags, instructorID, courseID,
	}
}
