package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/coursereviews/pkg/database"
	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// ReviewRepository implements review persistence operations using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewSelect = `
		SELECT id, type, author_id, target_id, content, posted_at, likes,
		       difficulty, experience, rating, tags, instructor_id, course_id
		FROM reviews`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// scanReview reads one reviews row and rebuilds the payload for its type.
func scanReview(row pgx.Row, extra ...any) (*domain.Review, error) {
	var (
		r                              domain.Review
		reviewType                     string
		difficulty, experience, rating int
		tags                           []string
		instructorID, courseID         string
	)
	dest := []any{
		&r.ID, &reviewType, &r.AuthorID, &r.TargetID, &r.Content, &r.Timestamp, &r.Likes,
		&difficulty, &experience, &rating, &tags, &instructorID, &courseID,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	r.Type = domain.ReviewType(reviewType)
	switch r.Type {
	case domain.ReviewTypeCourse:
		r.Course = &domain.CoursePayload{Difficulty: difficulty, Experience: experience, InstructorID: instructorID}
	case domain.ReviewTypeInstructor:
		r.Instructor = &domain.InstructorPayload{
			Difficulty: difficulty,
			Rating:     rating,
			Tags:       domain.TagsFromStrings(tags),
			CourseID:   courseID,
		}
	case domain.ReviewTypeSchool:
		r.School = &domain.SchoolPayload{Rating: rating}
	}
	return &r, nil
}

// reviewColumns flattens the payload of r into the payload columns.
func reviewColumns(r *domain.Review) (difficulty, experience, rating int, tags []string, instructorID, courseID string) {
	tags = []string{}
	if r.Instructor != nil {
		tags = domain.TagStrings(r.Instructor.Tags)
	}
	return r.Difficulty(), r.Experience(), r.Rating(), tags, r.InstructorID(), r.CourseID()
}

func collectReviews(rows pgx.Rows) ([]domain.Review, error) {
	defer rows.Close()
	reviews := []domain.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, storeErr("scan review row", err)
		}
		reviews = append(reviews, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate review rows", err)
	}
	return reviews, nil
}

// reviewsForStats loads every review of one type for a target.
func reviewsForStats(ctx context.Context, q querier, reviewType domain.ReviewType, targetID string) ([]domain.Review, error) {
	rows, err := q.Query(ctx, reviewSelect+`
		WHERE type = $1 AND target_id = $2`, string(reviewType), targetID)
	if err != nil {
		return nil, storeErr("load reviews for stats", err)
	}
	return collectReviews(rows)
}

// GetByID retrieves a review by its unique identifier.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	review, err := scanReview(r.pool.QueryRow(ctx, reviewSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, storeErr("get review by id", err)
	}
	return review, nil
}

// GetByKey retrieves the review identified by (type, target, author).
func (r *ReviewRepository) GetByKey(ctx context.Context, key domain.ReviewKey) (*domain.Review, error) {
	review, err := scanReview(r.pool.QueryRow(ctx, reviewSelect+`
		WHERE type = $1 AND target_id = $2 AND author_id = $3`,
		string(key.Type), key.TargetID, key.AuthorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", key.TargetID+"/"+key.AuthorID)
		}
		return nil, storeErr("get review by key", err)
	}
	return review, nil
}

// Upsert inserts the review or overwrites the editable columns of the review
// with the same identity. likes is never written on conflict.
func (r *ReviewRepository) Upsert(ctx context.Context, review *domain.Review) (bool, error) {
	query := `
		INSERT INTO reviews (id, type, author_id, target_id, content, posted_at, likes,
		                     difficulty, experience, rating, tags, instructor_id, course_id)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (type, target_id, author_id) DO UPDATE SET
			content = EXCLUDED.content,
			posted_at = EXCLUDED.posted_at,
			difficulty = EXCLUDED.difficulty,
			experience = EXCLUDED.experience,
			rating = EXCLUDED.rating,
			tags = EXCLUDED.tags,
			instructor_id = EXCLUDED.instructor_id,
			course_id = EXCLUDED.course_id
		RETURNING id, likes, (xmax = 0) AS inserted`

	difficulty, experience, rating, tags, instructorID, courseID := reviewColumns(review)

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		review.ID,
		string(review.Type),
		review.AuthorID,
		review.TargetID,
		review.Content,
		review.Timestamp,
		difficulty,
		experience,
		rating,
		tags,
		instructorID,
		courseID,
	).Scan(&review.ID, &review.Likes, &inserted)
	if err != nil {
		return false, storeErr("upsert review", err)
	}

	return inserted, nil
}

// Delete removes a review by ID.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete review", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// ListByTarget returns one page of a target's reviews with the total count.
func (r *ReviewRepository) ListByTarget(ctx context.Context, q domain.ReviewQuery, w pagination.Window) ([]domain.Review, int, error) {
	w = w.Normalize()
	b := &whereBuilder{}
	b.add("type = " + b.arg(string(q.Type)))
	b.add("target_id = " + b.arg(q.TargetID))
	if q.InstructorID != "" {
		b.add("instructor_id = " + b.arg(q.InstructorID))
	}
	filterArgs := len(b.args)

	query := fmt.Sprintf(`
		SELECT id, type, author_id, target_id, content, posted_at, likes,
		       difficulty, experience, rating, tags, instructor_id, course_id,
		       count(*) OVER() AS total_count
		FROM reviews
		%s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		b.clause(), reviewOrder(q.Sort), b.arg(w.Limit), b.arg(w.Start()))

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	rows, err := r.pool.Query(ctx, query, b.args...)
	if err != nil {
		end(err)
		return nil, 0, storeErr("list reviews", err)
	}
	defer rows.Close()

	var (
		reviews    = []domain.Review{}
		totalCount int
	)
	for rows.Next() {
		review, err := scanReview(rows, &totalCount)
		if err != nil {
			end(err)
			return nil, 0, storeErr("scan review row", err)
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		end(err)
		return nil, 0, storeErr("iterate review rows", err)
	}
	end(nil)

	if len(reviews) == 0 && w.Start() > 0 {
		total, err := pageTotal(ctx, r.pool, "reviews", b.clause(), b.args[:filterArgs])
		if err != nil {
			return nil, 0, err
		}
		totalCount = total
	}
	return reviews, totalCount, nil
}

// ListByAuthor returns every review written by authorID, newest first.
func (r *ReviewRepository) ListByAuthor(ctx context.Context, authorID string) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, reviewSelect+`
		WHERE author_id = $1
		ORDER BY posted_at DESC, id ASC`, authorID)
	if err != nil {
		return nil, storeErr("list reviews by author", err)
	}
	return collectReviews(rows)
}

// Exists reports whether a review with the given identity exists.
func (r *ReviewRepository) Exists(ctx context.Context, key domain.ReviewKey) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE type = $1 AND target_id = $2 AND author_id = $3)`,
		string(key.Type), key.TargetID, key.AuthorID,
	).Scan(&exists)
	if err != nil {
		return false, storeErr("check review exists", err)
	}
	return exists, nil
}

// Count returns the number of stored reviews.
func (r *ReviewRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.pool, "reviews")
}

func count(ctx context.Context, pool database.DBTX, table string) (int64, error) {
	var n int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// clock stamps catalog rows; replaced in tests.
var clock = func() time.Time { return time.Now().UTC() }
