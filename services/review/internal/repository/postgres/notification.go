package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/utafrali/coursereviews/pkg/database"
	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// NotificationRepository implements notification persistence using PostgreSQL.
type NotificationRepository struct {
	pool database.DBTX
}

// NewNotificationRepository creates a new PostgreSQL-backed notification repository.
func NewNotificationRepository(pool database.DBTX) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func notificationID(key domain.NotificationKey) string {
	return key.CourseID + "/" + key.AuthorID
}

// InsertMany stores notifications in one statement, skipping identities that
// already exist.
func (r *NotificationRepository) InsertMany(ctx context.Context, notifications []domain.Notification) (int64, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	n := len(notifications)
	var (
		ids        = make([]string, n)
		users      = make([]string, n)
		snapshots  = make([]string, n)
		authors    = make([]string, n)
		courses    = make([]string, n)
		timestamps = make([]time.Time, n)
		created    = make([]time.Time, n)
	)
	for i := range notifications {
		nt := &notifications[i]
		snapshot, err := json.Marshal(nt.Review)
		if err != nil {
			return 0, storeErr("encode review snapshot", err)
		}
		ids[i] = nt.ID
		users[i] = nt.UserID
		snapshots[i] = string(snapshot)
		authors[i] = nt.Review.AuthorID
		courses[i] = nt.Review.CourseID()
		timestamps[i] = nt.Review.Timestamp
		created[i] = nt.CreatedAt
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, review, review_author_id, review_course_id, review_timestamp, seen, created_at)
		SELECT t.id::uuid, t.user_id, t.review::jsonb, t.author_id, t.course_id, t.review_ts, FALSE, t.created_at
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::timestamptz[], $7::timestamptz[])
		     AS t(id, user_id, review, author_id, course_id, review_ts, created_at)
		ON CONFLICT (user_id, review_author_id, review_course_id) DO NOTHING`,
		ids, users, snapshots, authors, courses, timestamps, created)
	if err != nil {
		return 0, storeErr("insert notifications", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateSnapshot refreshes every notification about the review's (author,
// course), marks them unseen and returns the affected recipients.
func (r *NotificationRepository) UpdateSnapshot(ctx context.Context, review *domain.Review) ([]string, error) {
	snapshot, err := json.Marshal(review)
	if err != nil {
		return nil, storeErr("encode review snapshot", err)
	}
	return queryStrings(ctx, r.pool, "update notification snapshots", `
		UPDATE notifications SET review = $1, review_timestamp = $2, seen = FALSE
		WHERE review_author_id = $3 AND review_course_id = $4
		RETURNING user_id`,
		snapshot, review.Timestamp, review.AuthorID, review.CourseID())
}

// DeleteForReview removes every notification about (author, course) and
// returns the affected recipients.
func (r *NotificationRepository) DeleteForReview(ctx context.Context, authorID, courseID string) ([]string, error) {
	return queryStrings(ctx, r.pool, "delete notifications for review", `
		DELETE FROM notifications
		WHERE review_author_id = $1 AND review_course_id = $2
		RETURNING user_id`,
		authorID, courseID)
}

// SetSeen updates the seen flag of one notification.
func (r *NotificationRepository) SetSeen(ctx context.Context, key domain.NotificationKey, seen bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET seen = $1
		WHERE user_id = $2 AND review_author_id = $3 AND review_course_id = $4`,
		seen, key.UserID, key.AuthorID, key.CourseID)
	if err != nil {
		return false, storeErr("mark notification seen", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes one notification.
func (r *NotificationRepository) Delete(ctx context.Context, key domain.NotificationKey) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE user_id = $1 AND review_author_id = $2 AND review_course_id = $3`,
		key.UserID, key.AuthorID, key.CourseID)
	if err != nil {
		return storeErr("delete notification", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("notification", notificationID(key))
	}
	return nil
}

// ListByUser returns a user's notifications, newest review first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, review, seen, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY review_timestamp DESC, id ASC`, userID)
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	defer rows.Close()

	notifications := []domain.Notification{}
	for rows.Next() {
		var (
			n        domain.Notification
			snapshot []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &snapshot, &n.Seen, &n.CreatedAt); err != nil {
			return nil, storeErr("scan notification row", err)
		}
		if err := json.Unmarshal(snapshot, &n.Review); err != nil {
			return nil, storeErr("decode review snapshot", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate notification rows", err)
	}
	return notifications, nil
}
