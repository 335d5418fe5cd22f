package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// RecomputeSummary reports a bulk recompute.
type RecomputeSummary struct {
	Type     domain.ReviewType `json:"type"`
	Total    int               `json:"total"`
	Failed   int               `json:"failed"`
	Duration time.Duration     `json:"duration_ns"`
}

// StatsService keeps course and instructor statistics equal to the
// aggregate of their reviews. Each recompute is a full recompute; the
// repositories serialize recomputes of the same target.
type StatsService struct {
	courses     repository.CourseRepository
	instructors repository.InstructorRepository
	coordinator *cache.Coordinator
	concurrency int
	logger      *slog.Logger
}

// NewStatsService creates a stats service. concurrency bounds RecomputeAll.
func NewStatsService(
	courses repository.CourseRepository,
	instructors repository.InstructorRepository,
	coordinator *cache.Coordinator,
	concurrency int,
	logger *slog.Logger,
) *StatsService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &StatsService{
		courses:     courses,
		instructors: instructors,
		coordinator: coordinator,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Recompute derives and stores the stats of one target. School targets have
// no stats and are a no-op. A missing target yields ErrInvalidState.
func (s *StatsService) Recompute(ctx context.Context, reviewType domain.ReviewType, targetID string) error {
	start := time.Now()
	var err error
	switch reviewType {
	case domain.ReviewTypeCourse:
		_, err = s.courses.RecomputeStats(ctx, targetID, domain.ComputeCourseStats)
	case domain.ReviewTypeInstructor:
		_, err = s.instructors.RecomputeStats(ctx, targetID, domain.ComputeInstructorStats)
	default:
		return nil
	}
	statsRecomputeDuration.WithLabelValues(string(reviewType)).Observe(time.Since(start).Seconds())

	if err != nil {
		statsRecomputeFailuresTotal.WithLabelValues(string(reviewType)).Inc()
		return fmt.Errorf("recompute %s %s stats: %w", reviewType, targetID, err)
	}
	return nil
}

// Repair recomputes one target outside a review write and invalidates the
// views showing its stats.
func (s *StatsService) Repair(ctx context.Context, reviewType domain.ReviewType, targetID string) error {
	if err := s.Recompute(ctx, reviewType, targetID); err != nil {
		return err
	}
	return s.coordinator.Invalidate(ctx, cache.CatalogChanged(reviewType, targetID))
}

// RecomputeAll recomputes every course or instructor with bounded
// concurrency. Per-target failures are counted and logged, not returned;
// only cancellation or a listing failure aborts the run.
func (s *StatsService) RecomputeAll(ctx context.Context, reviewType domain.ReviewType) (RecomputeSummary, error) {
	summary := RecomputeSummary{Type: reviewType}
	start := time.Now()

	var ids []string
	var err error
	switch reviewType {
	case domain.ReviewTypeCourse:
		ids, err = s.courses.ListIDs(ctx)
	case domain.ReviewTypeInstructor:
		ids, err = s.instructors.ListIDs(ctx)
	default:
		return summary, apperrors.InvalidInput(fmt.Sprintf("%s targets have no stats", reviewType))
	}
	if err != nil {
		return summary, fmt.Errorf("list %s ids: %w", reviewType, err)
	}
	summary.Total = len(ids)

	var (
		mu        sync.Mutex
		mutations []cache.Mutation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := s.Recompute(gctx, reviewType, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				s.logger.WarnContext(gctx, "stats recompute failed",
					slog.String("type", string(reviewType)),
					slog.String("target_id", id),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mutations = append(mutations, cache.CatalogChanged(reviewType, id))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	if err := s.coordinator.Invalidate(ctx, mutations...); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation after bulk recompute failed", slog.String("error", err.Error()))
	}

	summary.Duration = time.Since(start)
	s.logger.InfoContext(ctx, "stats recompute finished",
		slog.String("type", string(reviewType)),
		slog.Int("total", summary.Total),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}
