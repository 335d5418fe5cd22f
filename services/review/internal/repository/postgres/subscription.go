package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/coursereviews/pkg/database"
	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// SubscriptionRepository implements subscription persistence using PostgreSQL.
type SubscriptionRepository struct {
	pool database.DBTX
}

// NewSubscriptionRepository creates a new PostgreSQL-backed subscription repository.
func NewSubscriptionRepository(pool database.DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Create stores a subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, course_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		sub.ID, sub.UserID, sub.CourseID, sub.CreatedAt)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return apperrors.AlreadyExists("subscription", "course_id", sub.CourseID)
		case database.IsForeignKeyViolation(err):
			return apperrors.NotFound("course", sub.CourseID)
		}
		return storeErr("insert subscription", err)
	}
	return nil
}

// Delete removes a subscription.
func (r *SubscriptionRepository) Delete(ctx context.Context, userID, courseID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return storeErr("delete subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("subscription", courseID)
	}
	return nil
}

// ListByUser returns a user's subscriptions, newest first.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, course_id, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC, course_id ASC`, userID)
	if err != nil {
		return nil, storeErr("list subscriptions", err)
	}
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.CourseID, &s.CreatedAt); err != nil {
			return nil, storeErr("scan subscription row", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate subscription rows", err)
	}
	return subs, nil
}

// ListSubscribers returns the IDs of every user following courseID.
func (r *SubscriptionRepository) ListSubscribers(ctx context.Context, courseID string) ([]string, error) {
	return queryStrings(ctx, r.pool, "list subscribers",
		`SELECT user_id FROM subscriptions WHERE course_id = $1 ORDER BY user_id`, courseID)
}

// Exists reports whether userID follows courseID.
func (r *SubscriptionRepository) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1 AND course_id = $2)`,
		userID, courseID).Scan(&exists)
	if err != nil {
		return false, storeErr("check subscription exists", err)
	}
	return exists, nil
}

// queryStrings runs a single-column query and collects the values.
func queryStrings(ctx context.Context, q querier, what, query string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", what, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", what, err)
	}
	return out, nil
}
