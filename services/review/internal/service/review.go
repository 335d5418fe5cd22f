package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// SubmitReviewInput holds the parameters for posting or editing a review.
// Exactly one payload must match Type.
type SubmitReviewInput struct {
	Type       domain.ReviewType
	AuthorID   string
	TargetID   string
	Content    string
	Course     *domain.CoursePayload
	Instructor *domain.InstructorPayload
	School     *domain.SchoolPayload
}

// SubmitResult is the persisted review and whether it was newly created.
type SubmitResult struct {
	Review *domain.Review `json:"review"`
	IsNew  bool           `json:"is_new"`
}

// ReviewService is the review ledger: one review per (author, target, type),
// with stats, fan-out and caches brought up to date after every write.
type ReviewService struct {
	store         repository.Store
	stats         *StatsService
	interactions  *InteractionService
	notifications *NotificationService
	coordinator   *cache.Coordinator
	events        EventPublisher
	logger        *slog.Logger
}

// NewReviewService creates a review service.
func NewReviewService(
	store repository.Store,
	stats *StatsService,
	interactions *InteractionService,
	notifications *NotificationService,
	coordinator *cache.Coordinator,
	events EventPublisher,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		store:         store,
		stats:         stats,
		interactions:  interactions,
		notifications: notifications,
		coordinator:   coordinator,
		events:        events,
		logger:        logger,
	}
}

func (s *ReviewService) targetExists(ctx context.Context, t domain.ReviewType, id string) (bool, error) {
	switch t {
	case domain.ReviewTypeCourse:
		return s.store.Courses.Exists(ctx, id)
	case domain.ReviewTypeInstructor:
		return s.store.Instructors.Exists(ctx, id)
	}
	return true, nil
}

// Submit creates the caller's review of a target, or overwrites the content,
// payload and timestamp of their existing one while keeping its ID and
// likes. If a follow-up step fails after the write committed, the result is
// returned together with a *PartialWriteError.
func (s *ReviewService) Submit(ctx context.Context, in SubmitReviewInput) (*SubmitResult, error) {
	review := &domain.Review{
		ID:         uuid.New().String(),
		Type:       in.Type,
		AuthorID:   strings.TrimSpace(in.AuthorID),
		TargetID:   strings.TrimSpace(in.TargetID),
		Content:    in.Content,
		Timestamp:  clock(),
		Course:     in.Course,
		Instructor: in.Instructor,
		School:     in.School,
	}
	if review.Type == domain.ReviewTypeCourse {
		review.TargetID = strings.ToUpper(review.TargetID)
	}
	if err := review.Validate(); err != nil {
		return nil, err
	}

	ok, err := s.targetExists(ctx, review.Type, review.TargetID)
	if err != nil {
		return nil, fmt.Errorf("check %s %s: %w", review.Type, review.TargetID, err)
	}
	if !ok {
		return nil, apperrors.NotFound(string(review.Type), review.TargetID)
	}

	isNew, err := s.store.Reviews.Upsert(ctx, review)
	if err != nil {
		return nil, fmt.Errorf("upsert review: %w", err)
	}
	op := "updated"
	if isNew {
		op = "created"
	}
	reviewsWrittenTotal.WithLabelValues(string(review.Type), op).Inc()

	s.logger.InfoContext(ctx, "review "+op,
		slog.String("review_id", review.ID),
		slog.String("type", string(review.Type)),
		slog.String("target_id", review.TargetID),
		slog.String("author_id", review.AuthorID),
	)

	var f followUps
	f.record(StageStats, s.stats.Recompute(ctx, review.Type, review.TargetID))
	if review.Type == domain.ReviewTypeCourse {
		f.record(StageFanout, s.notifications.OnReviewChanged(ctx, review, isNew))
	}
	f.record(StageCache, s.coordinator.Invalidate(ctx, cache.ReviewChanged(review.Type, review.TargetID)))
	s.requestRepair(ctx, &f, review, "submit")

	logPublishError(ctx, s.logger, "review.submitted", s.events.PublishReviewSubmitted(ctx, review, isNew))

	return &SubmitResult{Review: review, IsNew: isNew}, f.err(review, isNew)
}

// requestRepair asks the stats repair consumers to retry a failed recompute.
func (s *ReviewService) requestRepair(ctx context.Context, f *followUps, review *domain.Review, reason string) {
	if !f.failed(StageStats) {
		return
	}
	s.logger.WarnContext(ctx, "stats left stale, requesting repair",
		slog.String("type", string(review.Type)),
		slog.String("target_id", review.TargetID),
	)
	logPublishError(ctx, s.logger, "stats.repair", s.events.PublishStatsRepair(ctx, review.Type, review.TargetID, reason))
}

// Delete removes a review and everything derived from it: the target's
// stats, reactions and the course subscribers' notifications.
func (s *ReviewService) Delete(ctx context.Context, id string) error {
	review, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.delete(ctx, review)
}

// DeleteOwned deletes a review on behalf of authorID. ErrForbidden unless
// they wrote it.
func (s *ReviewService) DeleteOwned(ctx context.Context, id, authorID string) error {
	review, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if review.AuthorID != authorID {
		return apperrors.Forbidden("only the author may delete a review")
	}
	return s.delete(ctx, review)
}

func (s *ReviewService) delete(ctx context.Context, review *domain.Review) error {
	if err := s.store.Reviews.Delete(ctx, review.ID); err != nil {
		return err
	}
	reviewsWrittenTotal.WithLabelValues(string(review.Type), "deleted").Inc()
	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", review.ID),
		slog.String("type", string(review.Type)),
		slog.String("target_id", review.TargetID),
	)

	var f followUps
	f.record(StageStats, s.stats.Recompute(ctx, review.Type, review.TargetID))
	_, err := s.interactions.PurgeForReview(ctx, review.Key())
	f.record(StageInteractions, err)
	if review.Type == domain.ReviewTypeCourse {
		f.record(StageFanout, s.notifications.OnReviewDeleted(ctx, review.AuthorID, review.CourseID()))
	}
	f.record(StageCache, s.coordinator.Invalidate(ctx, cache.ReviewChanged(review.Type, review.TargetID)))
	s.requestRepair(ctx, &f, review, "delete")

	logPublishError(ctx, s.logger, "review.deleted", s.events.PublishReviewDeleted(ctx, review))
	return f.err(review, false)
}

// GetByID returns one review.
func (s *ReviewService) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.InvalidInput("invalid review id")
	}
	return s.store.Reviews.GetByID(ctx, id)
}

// GetByTarget returns every review of a target, newest first.
func (s *ReviewService) GetByTarget(ctx context.Context, reviewType domain.ReviewType, targetID string) ([]domain.Review, error) {
	q := domain.ReviewQuery{Type: reviewType, TargetID: targetID}
	w := pagination.Window{Limit: pagination.MaxLimit}
	all := []domain.Review{}
	for {
		page, total, err := s.store.Reviews.ListByTarget(ctx, q, w)
		if err != nil {
			return nil, fmt.Errorf("list reviews of %s %s: %w", reviewType, targetID, err)
		}
		all = append(all, page...)
		w.Offset += w.Limit
		if len(page) == 0 || w.Offset >= total {
			return all, nil
		}
	}
}

// GetUserReviews returns every review written by userID, newest first.
func (s *ReviewService) GetUserReviews(ctx context.Context, userID string) ([]domain.Review, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user is required")
	}
	return s.store.Reviews.ListByAuthor(ctx, userID)
}

// HasUserReviewed reports whether userID has reviewed the target.
func (s *ReviewService) HasUserReviewed(ctx context.Context, reviewType domain.ReviewType, targetID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	ok, err := s.store.Reviews.Exists(ctx, domain.ReviewKey{Type: reviewType, TargetID: targetID, AuthorID: userID})
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return false, err
	}
	return ok, nil
}
