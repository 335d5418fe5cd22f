package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// Courses is the in-memory CourseRepository.
type Courses struct {
	s *Store
}

func cloneCourse(c *domain.Course) *domain.Course {
	out := *c
	out.Terms = slices.Clone(c.Terms)
	out.Instructors = slices.Clone(c.Instructors)
	return &out
}

// Upsert replaces the catalog fields of a course, keeping its stats.
func (c *Courses) Upsert(_ context.Context, course *domain.Course) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	course.UpdatedAt = c.s.now()
	next := cloneCourse(course)
	if existing, ok := c.s.courses[course.ID]; ok {
		next.Stats = existing.Stats
	} else {
		next.Stats = domain.CourseStats{}
	}
	c.s.courses[course.ID] = next
	return nil
}

func (c *Courses) GetByID(_ context.Context, id string) (*domain.Course, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	course, ok := c.s.courses[id]
	if !ok {
		return nil, apperrors.NotFound("course", id)
	}
	return cloneCourse(course), nil
}

func (c *Courses) Exists(_ context.Context, id string) (bool, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	_, ok := c.s.courses[id]
	return ok, nil
}

func (c *Courses) List(_ context.Context, filter domain.CourseFilter, w pagination.Window) ([]domain.Course, int, error) {
	w = w.Normalize()
	keep := coursePredicate(filter)

	c.s.mu.RLock()
	matched := []domain.Course{}
	for _, course := range c.s.courses {
		if keep(course) {
			matched = append(matched, *cloneCourse(course))
		}
	}
	c.s.mu.RUnlock()

	less := courseLess(filter.Sort)
	slices.SortFunc(matched, func(a, b domain.Course) int { return less(&a, &b) })
	return page(matched, w.Start(), w.Limit), len(matched), nil
}

func (c *Courses) ListIDs(_ context.Context) ([]string, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return sortedKeys(c.s.courses), nil
}

// RecomputeStats serializes per course, derives stats from a snapshot of the
// course's reviews and stores them.
func (c *Courses) RecomputeStats(_ context.Context, id string, compute repository.CourseStatsFunc) (domain.CourseStats, error) {
	unlock := c.s.statsLocks.Lock("course:" + id)
	defer unlock()

	if ok, _ := c.Exists(context.Background(), id); !ok {
		return domain.CourseStats{}, apperrors.InvalidState(fmt.Sprintf("cannot update stats of missing course %q", id))
	}

	stats := compute(c.s.reviewsFor(func(r *domain.Review) bool {
		return r.Type == domain.ReviewTypeCourse && r.TargetID == id
	}))

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	course, ok := c.s.courses[id]
	if !ok {
		return domain.CourseStats{}, apperrors.InvalidState(fmt.Sprintf("course %q removed during recompute", id))
	}
	course.Stats = stats
	course.UpdatedAt = c.s.now()
	return stats, nil
}

func (c *Courses) Count(_ context.Context) (int64, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return int64(len(c.s.courses)), nil
}

// Instructors is the in-memory InstructorRepository.
type Instructors struct {
	s *Store
}

func cloneInstructor(i *domain.Instructor) *domain.Instructor {
	out := *i
	out.Departments = slices.Clone(i.Departments)
	out.Courses = slices.Clone(i.Courses)
	out.Stats.Tags = slices.Clone(i.Stats.Tags)
	return &out
}

// Upsert replaces the catalog fields of an instructor, keeping its stats.
func (in *Instructors) Upsert(_ context.Context, instructor *domain.Instructor) error {
	in.s.mu.Lock()
	defer in.s.mu.Unlock()

	instructor.UpdatedAt = in.s.now()
	next := cloneInstructor(instructor)
	if existing, ok := in.s.instructors[instructor.ID]; ok {
		next.Stats = existing.Stats
	} else {
		next.Stats = domain.InstructorStats{Tags: []domain.Tag{}}
	}
	in.s.instructors[instructor.ID] = next
	return nil
}

func (in *Instructors) GetByID(_ context.Context, id string) (*domain.Instructor, error) {
	in.s.mu.RLock()
	defer in.s.mu.RUnlock()

	instructor, ok := in.s.instructors[id]
	if !ok {
		return nil, apperrors.NotFound("instructor", id)
	}
	return cloneInstructor(instructor), nil
}

func (in *Instructors) Exists(_ context.Context, id string) (bool, error) {
	in.s.mu.RLock()
	defer in.s.mu.RUnlock()
	_, ok := in.s.instructors[id]
	return ok, nil
}

func (in *Instructors) List(_ context.Context, filter domain.InstructorFilter, w pagination.Window) ([]domain.Instructor, int, error) {
	w = w.Normalize()
	keep := instructorPredicate(filter)

	in.s.mu.RLock()
	matched := []domain.Instructor{}
	for _, instructor := range in.s.instructors {
		if keep(instructor) {
			matched = append(matched, *cloneInstructor(instructor))
		}
	}
	in.s.mu.RUnlock()

	less := instructorLess(filter.Sort)
	slices.SortFunc(matched, func(a, b domain.Instructor) int { return less(&a, &b) })
	return page(matched, w.Start(), w.Limit), len(matched), nil
}

func (in *Instructors) ListIDs(_ context.Context) ([]string, error) {
	in.s.mu.RLock()
	defer in.s.mu.RUnlock()
	return sortedKeys(in.s.instructors), nil
}

// RecomputeStats serializes per instructor, derives stats from a snapshot of
// the instructor's reviews and stores them.
func (in *Instructors) RecomputeStats(_ context.Context, id string, compute repository.InstructorStatsFunc) (domain.InstructorStats, error) {
	unlock := in.s.statsLocks.Lock("instructor:" + id)
	defer unlock()

	if ok, _ := in.Exists(context.Background(), id); !ok {
		return domain.InstructorStats{}, apperrors.InvalidState(fmt.Sprintf("cannot update stats of missing instructor %q", id))
	}

	stats := compute(in.s.reviewsFor(func(r *domain.Review) bool {
		return r.Type == domain.ReviewTypeInstructor && r.TargetID == id
	}))

	in.s.mu.Lock()
	defer in.s.mu.Unlock()
	instructor, ok := in.s.instructors[id]
	if !ok {
		return domain.InstructorStats{}, apperrors.InvalidState(fmt.Sprintf("instructor %q removed during recompute", id))
	}
	instructor.Stats = stats
	instructor.UpdatedAt = in.s.now()
	return stats, nil
}

func (in *Instructors) Count(_ context.Context) (int64, error) {
	in.s.mu.RLock()
	defer in.s.mu.RUnlock()
	return int64(len(in.s.instructors)), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
