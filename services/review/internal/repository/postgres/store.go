package postgres

import (
	"fmt"

	"github.com/utafrali/coursereviews/pkg/database"
	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// NewStore wires every PostgreSQL repository onto one pool.
func NewStore(pool database.DBTX) repository.Store {
	return repository.Store{
		Reviews:       NewReviewRepository(pool),
		Courses:       NewCourseRepository(pool),
		Instructors:   NewInstructorRepository(pool),
		Interactions:  NewInteractionRepository(pool),
		Subscriptions: NewSubscriptionRepository(pool),
		Notifications: NewNotificationRepository(pool),
	}
}

var (
	_ repository.ReviewRepository       = (*ReviewRepository)(nil)
	_ repository.CourseRepository       = (*CourseRepository)(nil)
	_ repository.InstructorRepository   = (*InstructorRepository)(nil)
	_ repository.InteractionRepository  = (*InteractionRepository)(nil)
	_ repository.SubscriptionRepository = (*SubscriptionRepository)(nil)
	_ repository.NotificationRepository = (*NotificationRepository)(nil)
)

// storeErr wraps a driver error with the failed operation. Connection failures
// become transient errors so callers can tell them from bad statements.
func storeErr(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	if database.IsConnectionError(err) {
		return apperrors.Transient(wrapped)
	}
	return wrapped
}
