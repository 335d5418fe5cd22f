package memory

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// textMatch is a case-insensitive substring test, the in-memory ILIKE.
func textMatch(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func compile(pattern string, enabled bool) *regexp.Regexp {
	if !enabled {
		return nil
	}
	return regexp.MustCompile(pattern)
}

// coursePredicate compiles a normalized course filter.
func coursePredicate(f domain.CourseFilter) func(*domain.Course) bool {
	level := compile(domain.LevelPattern(f.Levels), len(f.Levels) > 0)
	subject := compile(domain.SubjectPattern(f.Subjects), len(f.Subjects) > 0)
	id := domain.IDQuery(f.Query)

	return func(c *domain.Course) bool {
		if level != nil && !level.MatchString(c.Catalog) {
			return false
		}
		if subject != nil && !subject.MatchString(c.Subject) {
			return false
		}
		for _, term := range f.Terms {
			if !slices.Contains(c.Terms, term) {
				return false
			}
		}
		if f.Query != "" {
			return textMatch(c.ID, id) ||
				textMatch(c.Catalog, f.Query) ||
				textMatch(c.Title, f.Query) ||
				textMatch(c.Subject, f.Query) ||
				textMatch(c.Description, f.Query)
		}
		return true
	}
}

func courseLess(s domain.CourseSort) func(a, b *domain.Course) int {
	return func(a, b *domain.Course) int {
		var c int
		switch s.By {
		case domain.CourseSortDifficulty:
			c = cmp.Compare(a.Stats.AvgDifficulty, b.Stats.AvgDifficulty)
		case domain.CourseSortExperience:
			c = cmp.Compare(a.Stats.AvgExperience, b.Stats.AvgExperience)
		case domain.CourseSortReviewCount:
			c = cmp.Compare(a.Stats.ReviewCount, b.Stats.ReviewCount)
		}
		if s.Reverse {
			c = -c
		}
		return cmp.Or(c, strings.Compare(a.ID, b.ID))
	}
}

func anyCourse(courses []domain.InstructorCourse, match func(domain.InstructorCourse) bool) bool {
	return slices.ContainsFunc(courses, match)
}

func anyOf[T comparable](have, want []T) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

// instructorPredicate compiles a normalized instructor filter.
func instructorPredicate(f domain.InstructorFilter) func(*domain.Instructor) bool {
	level := compile(domain.LevelPattern(f.Levels), len(f.Levels) > 0)
	subject := compile(domain.SubjectPattern(f.Subjects), len(f.Subjects) > 0)
	id := domain.IDQuery(f.Query)

	return func(i *domain.Instructor) bool {
		if level != nil && !anyCourse(i.Courses, func(c domain.InstructorCourse) bool { return level.MatchString(c.Catalog) }) {
			return false
		}
		if subject != nil && !anyCourse(i.Courses, func(c domain.InstructorCourse) bool { return subject.MatchString(c.Subject) }) {
			return false
		}
		if len(f.Departments) > 0 && !anyOf(i.Departments, f.Departments) {
			return false
		}
		if len(f.Tags) > 0 && !anyOf(i.Stats.Tags, f.Tags) {
			return false
		}
		if f.Query != "" {
			return textMatch(i.ID, id) ||
				textMatch(i.FirstName, f.Query) ||
				textMatch(i.LastName, f.Query) ||
				textMatch(i.FirstName+" "+i.LastName, f.Query) ||
				textMatch(strings.Join(i.Departments, " "), f.Query) ||
				textMatch(strings.Join(domain.TagStrings(i.Stats.Tags), " "), f.Query) ||
				anyCourse(i.Courses, func(c domain.InstructorCourse) bool { return textMatch(c.Subject+c.Catalog, id) })
		}
		return true
	}
}

func instructorLess(s domain.InstructorSort) func(a, b *domain.Instructor) int {
	return func(a, b *domain.Instructor) int {
		var c int
		switch s.By {
		case domain.InstructorSortDifficulty:
			c = cmp.Compare(a.Stats.AvgDifficulty, b.Stats.AvgDifficulty)
		case domain.InstructorSortRating:
			c = cmp.Compare(a.Stats.AvgRating, b.Stats.AvgRating)
		case domain.InstructorSortReviewCount:
			c = cmp.Compare(a.Stats.ReviewCount, b.Stats.ReviewCount)
		default:
			c = cmp.Or(strings.Compare(a.LastName, b.LastName), strings.Compare(a.FirstName, b.FirstName))
		}
		if s.Reverse && s.By != "" {
			c = -c
		}
		return cmp.Or(c, strings.Compare(a.ID, b.ID))
	}
}

// reviewLess orders reviews like the SQL backend: the zero sort is newest
// first, otherwise ascending unless Reverse.
func reviewLess(s domain.ReviewSort) func(a, b *domain.Review) int {
	return func(a, b *domain.Review) int {
		var c int
		switch s.By {
		case domain.ReviewSortRecency:
			c = a.Timestamp.Compare(b.Timestamp)
		case domain.ReviewSortExperience:
			c = cmp.Compare(a.Experience(), b.Experience())
		case domain.ReviewSortRating:
			c = cmp.Compare(a.Rating(), b.Rating())
		case domain.ReviewSortDifficulty:
			c = cmp.Compare(a.Difficulty(), b.Difficulty())
		case domain.ReviewSortLikes:
			c = cmp.Compare(a.Likes, b.Likes)
		default:
			c = -a.Timestamp.Compare(b.Timestamp)
		}
		if s.Reverse && s.By != "" {
			c = -c
		}
		return cmp.Or(c, strings.Compare(a.ID, b.ID))
	}
}

// page slices one window out of items.
func page[T any](items []T, start, limit int) []T {
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return append([]T{}, items[start:end]...)
}
