package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// SubscriptionService manages which courses a user follows.
type SubscriptionService struct {
	repo        repository.SubscriptionRepository
	coordinator *cache.Coordinator
	events      EventPublisher
	logger      *slog.Logger
}

// NewSubscriptionService creates a subscription service.
func NewSubscriptionService(repo repository.SubscriptionRepository, coordinator *cache.Coordinator, events EventPublisher, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{repo: repo, coordinator: coordinator, events: events, logger: logger}
}

func subscriptionArgs(userID, courseID string) (string, error) {
	courseID = strings.ToUpper(strings.TrimSpace(courseID))
	if userID == "" || courseID == "" {
		return "", apperrors.InvalidInput("user and course_id are required")
	}
	return courseID, nil
}

// Subscribe follows a course. ErrNotFound if the course does not exist,
// ErrAlreadyExists if already followed.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, courseID string) (*domain.Subscription, error) {
	courseID, err := subscriptionArgs(userID, courseID)
	if err != nil {
		return nil, err
	}
	sub := &domain.Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: clock(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	s.changed(ctx, userID, courseID, true)
	return sub, nil
}

// Unsubscribe stops following a course. ErrNotFound if not followed.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, courseID string) error {
	courseID, err := subscriptionArgs(userID, courseID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, courseID); err != nil {
		return err
	}
	s.changed(ctx, userID, courseID, false)
	return nil
}

func (s *SubscriptionService) changed(ctx context.Context, userID, courseID string, subscribed bool) {
	if err := s.coordinator.Invalidate(ctx, cache.SubscriptionChanged(userID)); err != nil {
		s.logger.WarnContext(ctx, "stale notifications after subscription change", slog.String("error", err.Error()))
	}
	logPublishError(ctx, s.logger, "subscription.changed", s.events.PublishSubscriptionChanged(ctx, userID, courseID, subscribed))
	s.logger.InfoContext(ctx, "subscription changed",
		slog.String("user_id", userID),
		slog.String("course_id", courseID),
		slog.Bool("subscribed", subscribed),
	)
}

// List returns the courses a user follows, newest first.
func (s *SubscriptionService) List(ctx context.Context, userID string) ([]domain.Subscription, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

// IsSubscribed reports whether userID follows courseID.
func (s *SubscriptionService) IsSubscribed(ctx context.Context, userID, courseID string) (bool, error) {
	courseID, err := subscriptionArgs(userID, courseID)
	if err != nil {
		return false, err
	}
	return s.repo.Exists(ctx, userID, courseID)
}
