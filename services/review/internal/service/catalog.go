package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// CatalogService maintains courses and instructors. Their stats are owned by
// StatsService and never written here.
type CatalogService struct {
	store       repository.Store
	cache       cache.Loader
	coordinator *cache.Coordinator
	logger      *slog.Logger
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store repository.Store, loader cache.Loader, coordinator *cache.Coordinator, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: store, cache: loader, coordinator: coordinator, logger: logger}
}

// UpsertCourse creates or replaces a course's catalog fields.
func (s *CatalogService) UpsertCourse(ctx context.Context, course *domain.Course) error {
	if err := course.Normalize(); err != nil {
		return err
	}
	if err := s.store.Courses.Upsert(ctx, course); err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}
	s.logger.InfoContext(ctx, "course upserted", slog.String("course_id", course.ID))
	s.invalidate(ctx, cache.CatalogChanged(domain.ReviewTypeCourse, course.ID))
	return nil
}

// UpsertInstructor creates or replaces an instructor's catalog fields.
func (s *CatalogService) UpsertInstructor(ctx context.Context, instructor *domain.Instructor) error {
	if err := instructor.Normalize(); err != nil {
		return err
	}
	if err := s.store.Instructors.Upsert(ctx, instructor); err != nil {
		return fmt.Errorf("upsert instructor: %w", err)
	}
	s.logger.InfoContext(ctx, "instructor upserted", slog.String("instructor_id", instructor.ID))
	s.invalidate(ctx, cache.CatalogChanged(domain.ReviewTypeInstructor, instructor.ID))
	return nil
}

// invalidate logs failures; catalog entries also expire with the cache TTL.
func (s *CatalogService) invalidate(ctx context.Context, m cache.Mutation) {
	if err := s.coordinator.Invalidate(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "stale catalog views", slog.String("target_id", m.Target), slog.String("error", err.Error()))
	}
}

// GetCourse returns a course with its stats.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("course id is required")
	}
	return cache.Fetch(ctx, s.cache, cache.Detail(domain.ReviewTypeCourse, id), "course", func(ctx context.Context) (*domain.Course, error) {
		return s.store.Courses.GetByID(ctx, id)
	})
}

// GetInstructor returns an instructor with its stats.
func (s *CatalogService) GetInstructor(ctx context.Context, id string) (*domain.Instructor, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("instructor id is required")
	}
	return cache.Fetch(ctx, s.cache, cache.Detail(domain.ReviewTypeInstructor, id), "instructor", func(ctx context.Context) (*domain.Instructor, error) {
		return s.store.Instructors.GetByID(ctx, id)
	})
}

// HomeStats counts courses, instructors and reviews.
func (s *CatalogService) HomeStats(ctx context.Context) (domain.HomeStats, error) {
	return cache.Fetch(ctx, s.cache, cache.Global(cache.NamespaceHomeStats), "counts", func(ctx context.Context) (domain.HomeStats, error) {
		var hs domain.HomeStats
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			hs.Courses, err = s.store.Courses.Count(gctx)
			return err
		})
		g.Go(func() (err error) {
			hs.Instructors, err = s.store.Instructors.Count(gctx)
			return err
		})
		g.Go(func() (err error) {
			hs.Reviews, err = s.store.Reviews.Count(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return domain.HomeStats{}, fmt.Errorf("count home stats: %w", err)
		}
		return hs, nil
	})
}
