package repository

import (
	"context"

	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	// GetByID retrieves a review by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// GetByKey retrieves the review identified by (type, target, author).
	GetByKey(ctx context.Context, key domain.ReviewKey) (*domain.Review, error)

	// Upsert inserts the review or overwrites the content, payload and
	// timestamp of the review with the same identity. ID and Likes of an
	// existing review are kept and written back into review. It reports
	// whether a new row was created.
	Upsert(ctx context.Context, review *domain.Review) (bool, error)

	// Delete removes a review by ID.
	Delete(ctx context.Context, id string) error

	// ListByTarget returns one page of a target's reviews and the total count.
	ListByTarget(ctx context.Context, q domain.ReviewQuery, w pagination.Window) ([]domain.Review, int, error)

	// ListByAuthor returns every review written by authorID, newest first.
	ListByAuthor(ctx context.Context, authorID string) ([]domain.Review, error)

	// Exists reports whether a review with the given identity exists.
	Exists(ctx context.Context, key domain.ReviewKey) (bool, error)

	// Count returns the number of stored reviews.
	Count(ctx context.Context) (int64, error)
}

// CourseStatsFunc derives course statistics from the course's reviews.
type CourseStatsFunc func([]domain.Review) domain.CourseStats

// InstructorStatsFunc derives instructor statistics from the instructor's reviews.
type InstructorStatsFunc func([]domain.Review) domain.InstructorStats

// CourseRepository defines persistence operations for catalog courses.
type CourseRepository interface {
	// Upsert creates or replaces the catalog fields of a course. Stats are
	// never written.
	Upsert(ctx context.Context, course *domain.Course) error

	// GetByID retrieves a course with its statistics.
	GetByID(ctx context.Context, id string) (*domain.Course, error)

	// Exists reports whether a course exists.
	Exists(ctx context.Context, id string) (bool, error)

	// List returns one page of courses matching filter and the total count.
	List(ctx context.Context, filter domain.CourseFilter, w pagination.Window) ([]domain.Course, int, error)

	// ListIDs returns every course ID.
	ListIDs(ctx context.Context) ([]string, error)

	// RecomputeStats reads the course's course-type reviews, derives the
	// statistics with compute and stores them, serialized per course. A
	// missing course yields ErrInvalidState.
	RecomputeStats(ctx context.Context, id string, compute CourseStatsFunc) (domain.CourseStats, error)

	// Count returns the number of courses.
	Count(ctx context.Context) (int64, error)
}

// InstructorRepository defines persistence operations for catalog instructors.
type InstructorRepository interface {
	Upsert(ctx context.Context, instructor *domain.Instructor) error
	GetByID(ctx context.Context, id string) (*domain.Instructor, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter domain.InstructorFilter, w pagination.Window) ([]domain.Instructor, int, error)
	ListIDs(ctx context.Context) ([]string, error)
	RecomputeStats(ctx context.Context, id string, compute InstructorStatsFunc) (domain.InstructorStats, error)
	Count(ctx context.Context) (int64, error)
}

// InteractionRepository defines persistence operations for reactions. Every
// mutation adjusts the reacted review's like count in the same transaction.
type InteractionRepository interface {
	// Get retrieves the interaction with the given identity.
	Get(ctx context.Context, key domain.InteractionKey) (*domain.Interaction, error)

	// Insert stores a new interaction and adds its kind's delta to the
	// review's likes. ErrConflict if the identity already exists, ErrNotFound
	// if the review does not.
	Insert(ctx context.Context, interaction *domain.Interaction) error

	// SwapKind changes the kind from `from` to `to` and adjusts likes by
	// delta. ErrConflict if the stored kind is no longer `from`.
	SwapKind(ctx context.Context, key domain.InteractionKey, from, to domain.InteractionKind, delta int) error

	// Remove deletes the interaction and reverts its contribution to likes,
	// returning the removed kind. ErrNotFound if absent.
	Remove(ctx context.Context, key domain.InteractionKey) (domain.InteractionKind, error)

	// DeleteForReview removes every interaction on a review without touching
	// likes.
	DeleteForReview(ctx context.Context, key domain.ReviewKey) (int64, error)

	// ListForTarget returns referrer's interactions on reviews of one target.
	ListForTarget(ctx context.Context, reviewType domain.ReviewType, targetID, referrer string) ([]domain.Interaction, error)
}

// SubscriptionRepository defines persistence operations for course subscriptions.
type SubscriptionRepository interface {
	// Create stores a subscription. ErrAlreadyExists on a duplicate.
	Create(ctx context.Context, sub *domain.Subscription) error

	// Delete removes a subscription. ErrNotFound if absent.
	Delete(ctx context.Context, userID, courseID string) error

	// ListByUser returns a user's subscriptions, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)

	// ListSubscribers returns the IDs of every user subscribed to courseID.
	ListSubscribers(ctx context.Context, courseID string) ([]string, error)

	// Exists reports whether userID follows courseID.
	Exists(ctx context.Context, userID, courseID string) (bool, error)
}

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	// InsertMany stores notifications, skipping identities that already
	// exist. It returns the number inserted.
	InsertMany(ctx context.Context, notifications []domain.Notification) (int64, error)

	// UpdateSnapshot replaces the review snapshot of every notification
	// about review's (author, course) and marks them unseen. It returns the
	// affected recipients.
	UpdateSnapshot(ctx context.Context, review *domain.Review) ([]string, error)

	// DeleteForReview removes every notification about (author, course) and
	// returns the affected recipients.
	DeleteForReview(ctx context.Context, authorID, courseID string) ([]string, error)

	// SetSeen updates the seen flag of one notification, reporting whether
	// it exists.
	SetSeen(ctx context.Context, key domain.NotificationKey, seen bool) (bool, error)

	// Delete removes one notification. ErrNotFound if absent.
	Delete(ctx context.Context, key domain.NotificationKey) error

	// ListByUser returns a user's notifications, newest review first.
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
}

// Store groups the repositories of one backend.
type Store struct {
	Reviews       ReviewRepository
	Courses       CourseRepository
	Instructors   InstructorRepository
	Interactions  InteractionRepository
	Subscriptions SubscriptionRepository
	Notifications NotificationRepository
}
