package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// NotificationService fans course reviews out to course subscribers and
// manages each user's notification list.
type NotificationService struct {
	notifications repository.NotificationRepository
	subscriptions repository.SubscriptionRepository
	cache         cache.Loader
	coordinator   *cache.Coordinator
	logger        *slog.Logger
}

// NewNotificationService creates a notification service.
func NewNotificationService(
	notifications repository.NotificationRepository,
	subscriptions repository.SubscriptionRepository,
	loader cache.Loader,
	coordinator *cache.Coordinator,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		subscriptions: subscriptions,
		cache:         loader,
		coordinator:   coordinator,
		logger:        logger,
	}
}

// OnReviewChanged notifies subscribers of the review's course. A new review
// creates one notification per subscriber other than the author; an edit
// refreshes the snapshot of the existing notifications and marks them unseen
// without adding recipients.
func (s *NotificationService) OnReviewChanged(ctx context.Context, review *domain.Review, isNew bool) error {
	courseID := review.CourseID()
	if courseID == "" {
		return nil
	}

	var users []string
	if isNew {
		subscribers, err := s.subscriptions.ListSubscribers(ctx, courseID)
		if err != nil {
			return fmt.Errorf("list subscribers of %s: %w", courseID, err)
		}
		now := clock()
		batch := make([]domain.Notification, 0, len(subscribers))
		for _, u := range subscribers {
			if u == review.AuthorID {
				continue
			}
			batch = append(batch, domain.Notification{
				ID:        uuid.New().String(),
				UserID:    u,
				Review:    *review.Clone(),
				CreatedAt: now,
			})
			users = append(users, u)
		}
		if len(batch) == 0 {
			return nil
		}
		n, err := s.notifications.InsertMany(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert notifications: %w", err)
		}
		notificationsFannedOutTotal.Add(float64(n))
	} else {
		var err error
		if users, err = s.notifications.UpdateSnapshot(ctx, review); err != nil {
			return fmt.Errorf("refresh notifications: %w", err)
		}
	}

	s.logger.DebugContext(ctx, "review fanned out",
		slog.String("review_id", review.ID),
		slog.String("course_id", courseID),
		slog.Bool("is_new", isNew),
		slog.Int("recipients", len(users)),
	)
	return s.invalidate(ctx, users...)
}

// OnReviewDeleted removes the notifications about a deleted review.
func (s *NotificationService) OnReviewDeleted(ctx context.Context, authorID, courseID string) error {
	users, err := s.notifications.DeleteForReview(ctx, authorID, courseID)
	if err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return s.invalidate(ctx, users...)
}

func (s *NotificationService) invalidate(ctx context.Context, users ...string) error {
	mutations := make([]cache.Mutation, len(users))
	for i, u := range users {
		mutations[i] = cache.NotificationChanged(u)
	}
	return s.coordinator.Invalidate(ctx, mutations...)
}

func validateNotificationKey(key domain.NotificationKey) error {
	if key.UserID == "" || key.CourseID == "" || key.AuthorID == "" {
		return apperrors.InvalidInput("user, course_id and author_id are required")
	}
	return nil
}

// MarkSeen sets the seen flag of one notification. A missing notification is
// a no-op.
func (s *NotificationService) MarkSeen(ctx context.Context, key domain.NotificationKey, seen bool) error {
	if err := validateNotificationKey(key); err != nil {
		return err
	}
	ok, err := s.notifications.SetSeen(ctx, key, seen)
	if err != nil {
		return fmt.Errorf("mark notification seen: %w", err)
	}
	if !ok {
		return nil
	}
	return s.invalidate(ctx, key.UserID)
}

// Dismiss deletes one notification. ErrNotFound if absent.
func (s *NotificationService) Dismiss(ctx context.Context, key domain.NotificationKey) error {
	if err := validateNotificationKey(key); err != nil {
		return err
	}
	if err := s.notifications.Delete(ctx, key); err != nil {
		return err
	}
	return s.invalidate(ctx, key.UserID)
}

// List returns a user's notifications, newest review first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user is required")
	}
	return cache.Fetch(ctx, s.cache, cache.Notifications(userID), "list", func(ctx context.Context) ([]domain.Notification, error) {
		return s.notifications.ListByUser(ctx, userID)
	})
}
