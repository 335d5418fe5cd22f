package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// ReactInput asks to set one referrer's reaction to a review.
type ReactInput struct {
	Key  domain.InteractionKey
	Kind domain.InteractionKind
}

// InteractionService is the like/dislike state machine. Each transition and
// its likes adjustment are applied atomically by the repository.
type InteractionService struct {
	repo        repository.InteractionRepository
	coordinator *cache.Coordinator
	events      EventPublisher
	logger      *slog.Logger
}

// NewInteractionService creates an interaction service.
func NewInteractionService(
	repo repository.InteractionRepository,
	coordinator *cache.Coordinator,
	events EventPublisher,
	logger *slog.Logger,
) *InteractionService {
	return &InteractionService{repo: repo, coordinator: coordinator, events: events, logger: logger}
}

func (s *InteractionService) current(ctx context.Context, key domain.InteractionKey) (*domain.Interaction, error) {
	existing, err := s.repo.Get(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return existing, err
}

// React applies the transition from the current reaction to in.Kind. A lost
// race with a concurrent reaction is retried once from a fresh read. When the
// change committed but listings could not be invalidated, the result is
// returned together with a *StaleCacheError.
func (s *InteractionService) React(ctx context.Context, in ReactInput) (*domain.Interaction, error) {
	if err := in.Key.Validate(); err != nil {
		return nil, err
	}
	if _, err := domain.ParseInteractionKind(string(in.Kind)); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		existing, err := s.current(ctx, in.Key)
		if err != nil {
			return nil, fmt.Errorf("load interaction: %w", err)
		}

		delta, op := domain.Transition(existing, in.Kind)
		var result *domain.Interaction
		switch op {
		case domain.OpNoop:
			interactionTransitionsTotal.WithLabelValues(op.String()).Inc()
			return existing, nil
		case domain.OpCreate:
			result = &domain.Interaction{
				ID:        uuid.New().String(),
				Kind:      in.Kind,
				Type:      in.Key.Type,
				TargetID:  in.Key.TargetID,
				UserID:    in.Key.UserID,
				Referrer:  in.Key.Referrer,
				CreatedAt: clock(),
			}
			err = s.repo.Insert(ctx, result)
		case domain.OpSwap:
			err = s.repo.SwapKind(ctx, in.Key, existing.Kind, in.Kind, delta)
			result = existing
			result.Kind = in.Kind
		}

		if errors.Is(err, apperrors.ErrConflict) && attempt == 0 {
			interactionConflictsTotal.Inc()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s interaction: %w", op, err)
		}

		interactionTransitionsTotal.WithLabelValues(op.String()).Inc()
		return result, s.changed(ctx, in.Key, in.Kind, delta)
	}
}

// Unreact removes the reaction and reverts its effect on likes. Removing an
// absent reaction is a no-op. A reaction whose review is gone is removed
// without touching likes.
func (s *InteractionService) Unreact(ctx context.Context, key domain.InteractionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	kind, err := s.repo.Remove(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove interaction: %w", err)
	}
	interactionTransitionsTotal.WithLabelValues("remove").Inc()
	return s.changed(ctx, key, "", domain.UndoDelta(kind))
}

// changed runs the follow-ups of a committed transition. Only a failed
// invalidation is returned; event delivery is best effort.
func (s *InteractionService) changed(ctx context.Context, key domain.InteractionKey, kind domain.InteractionKind, delta int) error {
	logPublishError(ctx, s.logger, "interaction.changed", s.events.PublishInteractionChanged(ctx, key, kind, delta))
	if err := s.coordinator.Invalidate(ctx, cache.InteractionChanged(key.Type, key.TargetID)); err != nil {
		partialWritesTotal.WithLabelValues(StageCache).Inc()
		s.logger.WarnContext(ctx, "stale review listings after interaction",
			slog.String("target_id", key.TargetID),
			slog.String("error", err.Error()),
		)
		return &StaleCacheError{Key: key, Err: err}
	}
	return nil
}

// PurgeForReview removes every reaction to a deleted review. Likes are not
// adjusted: the review is gone.
func (s *InteractionService) PurgeForReview(ctx context.Context, key domain.ReviewKey) (int64, error) {
	n, err := s.repo.DeleteForReview(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("purge interactions: %w", err)
	}
	return n, nil
}

// GetKind returns the current reaction for key. ErrNotFound if none.
func (s *InteractionService) GetKind(ctx context.Context, key domain.InteractionKey) (domain.InteractionKind, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	i, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return i.Kind, nil
}

// ListForTarget returns referrer's reactions on the reviews of one target.
func (s *InteractionService) ListForTarget(ctx context.Context, reviewType domain.ReviewType, targetID, referrer string) ([]domain.Interaction, error) {
	if targetID == "" || referrer == "" {
		return nil, apperrors.InvalidInput("target_id and referrer are required")
	}
	return s.repo.ListForTarget(ctx, reviewType, targetID, referrer)
}
