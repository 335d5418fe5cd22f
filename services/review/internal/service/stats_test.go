package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

type flakyStatsCourses struct {
	repository.CourseRepository
	failFor string
}

func (f flakyStatsCourses) RecomputeStats(ctx context.Context, id string, compute repository.CourseStatsFunc) (domain.CourseStats, error) {
	if id == f.failFor {
		return domain.CourseStats{}, errors.New("deadlock detected")
	}
	return f.CourseRepository.RecomputeStats(ctx, id, compute)
}

func TestRecompute_MissingTarget(t *testing.T) {
	f := newFixture(t)
	err := f.stats.Recompute(context.Background(), domain.ReviewTypeCourse, "GONE101")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestRecompute_SchoolIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.stats.Recompute(context.Background(), domain.ReviewTypeSchool, "concordia"))
}

func TestRepair_InvalidatesCatalogViews(t *testing.T) {
	f := newFixture(t)
	id := f.addCourse(t, "COMP", "248")
	f.spy.reset()

	require.NoError(t, f.stats.Repair(context.Background(), domain.ReviewTypeCourse, id))
	assertBumped(t, f, cache.CatalogChanged(domain.ReviewTypeCourse, id))
}

func TestRecomputeAll(t *testing.T) {
	f := newFixture(t, func(s *repository.Store) {
		s.Courses = flakyStatsCourses{CourseRepository: s.Courses, failFor: "SOEN287"}
	})
	ctx := context.Background()
	for _, c := range [][2]string{{"COMP", "248"}, {"COMP", "352"}, {"SOEN", "287"}} {
		f.addCourse(t, c[0], c[1])
	}
	f.spy.reset()

	summary, err := f.stats.RecomputeAll(ctx, domain.ReviewTypeCourse)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, f.spy.bumped(), cache.Detail(domain.ReviewTypeCourse, "COMP352"))
	assert.NotContains(t, f.spy.bumped(), cache.Detail(domain.ReviewTypeCourse, "SOEN287"))
}

func TestRecomputeAll_Instructors(t *testing.T) {
	f := newFixture(t)
	id := f.addInstructor(t, "Aiman", "Hanna")
	f.submit(t, instructorInput("a", id, 2, 4))

	summary, err := f.stats.RecomputeAll(context.Background(), domain.ReviewTypeInstructor)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Zero(t, summary.Failed)
}

func TestRecomputeAll_RejectsSchool(t *testing.T) {
	f := newFixture(t)
	_, err := f.stats.RecomputeAll(context.Background(), domain.ReviewTypeSchool)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRecomputeAll_Canceled(t *testing.T) {
	f := newFixture(t)
	f.addCourse(t, "COMP", "248")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.stats.RecomputeAll(ctx, domain.ReviewTypeCourse)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHomeStats(t *testing.T) {
	f := newFixture(t)
	id := f.addCourse(t, "COMP", "248")
	f.addInstructor(t, "Aiman", "Hanna")
	f.submit(t, courseInput("a", id, 3, 3))
	f.submit(t, courseInput("b", id, 3, 3))

	hs, err := f.catalog.HomeStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HomeStats{Courses: 1, Instructors: 1, Reviews: 2}, hs)
}

func TestCatalog_UpsertKeepsStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addCourse(t, "COMP", "248")
	f.submit(t, courseInput("a", id, 3, 3))

	require.NoError(t, f.catalog.UpsertCourse(ctx, &domain.Course{Subject: "COMP", Catalog: "248", Title: "Object-Oriented Programming I"}))
	c, err := f.catalog.GetCourse(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Object-Oriented Programming I", c.Title)
	assert.Equal(t, 1, c.Stats.ReviewCount)

	_, err = f.catalog.GetCourse(ctx, "NOPE101")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.catalog.UpsertCourse(ctx, &domain.Course{Subject: "COMP"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
