package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
)

var (
	levelRe   = regexp.MustCompile(`^[1-9][0-9]*$`)
	subjectRe = regexp.MustCompile(`^[A-Z]{2,5}$`)
)

// CourseSortField orders course listings.
type CourseSortField string

const (
	CourseSortDifficulty  CourseSortField = "difficulty"
	CourseSortExperience  CourseSortField = "experience"
	CourseSortReviewCount CourseSortField = "reviewCount"
)

// CourseSort selects a sort field; Reverse sorts descending. The zero value
// sorts by ID ascending.
type CourseSort struct {
	By      CourseSortField `json:"sort_type"`
	Reverse bool            `json:"reverse"`
}

// CourseFilter narrows a course listing. Empty fields do not filter.
type CourseFilter struct {
	Query    string     `json:"query"`
	Levels   []string   `json:"levels"`
	Subjects []string   `json:"subjects"`
	Terms    []string   `json:"terms"`
	Sort     CourseSort `json:"sort_by"`
}

// Normalize trims and upper-cases the filter and rejects malformed levels,
// subjects and sort fields.
func (f *CourseFilter) Normalize() error {
	var err error
	f.Query = strings.TrimSpace(f.Query)
	if f.Levels, err = normalizeLevels(f.Levels); err != nil {
		return err
	}
	if f.Subjects, err = normalizeSubjects(f.Subjects); err != nil {
		return err
	}
	f.Terms = compact(f.Terms)
	switch f.Sort.By {
	case "", CourseSortDifficulty, CourseSortExperience, CourseSortReviewCount:
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown course sort %q", f.Sort.By))
	}
	return nil
}

// InstructorSortField orders instructor listings.
type InstructorSortField string

const (
	InstructorSortDifficulty  InstructorSortField = "difficulty"
	InstructorSortRating      InstructorSortField = "rating"
	InstructorSortReviewCount InstructorSortField = "reviewCount"
)

// InstructorSort selects a sort field; Reverse sorts descending. The zero
// value sorts by last then first name.
type InstructorSort struct {
	By      InstructorSortField `json:"sort_type"`
	Reverse bool                `json:"reverse"`
}

// InstructorFilter narrows an instructor listing. Levels and subjects match
// any course the instructor teaches; departments and tags match any-of.
type InstructorFilter struct {
	Query       string         `json:"query"`
	Levels      []string       `json:"levels"`
	Subjects    []string       `json:"subjects"`
	Departments []string       `json:"departments"`
	Tags        []Tag          `json:"tags"`
	Sort        InstructorSort `json:"sort_by"`
}

// Normalize validates the filter the way CourseFilter.Normalize does and
// resolves tags to their canonical names.
func (f *InstructorFilter) Normalize() error {
	var err error
	f.Query = strings.TrimSpace(f.Query)
	if f.Levels, err = normalizeLevels(f.Levels); err != nil {
		return err
	}
	if f.Subjects, err = normalizeSubjects(f.Subjects); err != nil {
		return err
	}
	f.Departments = compact(f.Departments)
	if f.Tags, err = NormalizeTags(f.Tags); err != nil {
		return err
	}
	switch f.Sort.By {
	case "", InstructorSortDifficulty, InstructorSortRating, InstructorSortReviewCount:
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown instructor sort %q", f.Sort.By))
	}
	return nil
}

// ReviewSortField orders review listings.
type ReviewSortField string

const (
	ReviewSortRecency    ReviewSortField = "recency"
	ReviewSortExperience ReviewSortField = "experience"
	ReviewSortRating     ReviewSortField = "rating"
	ReviewSortDifficulty ReviewSortField = "difficulty"
	ReviewSortLikes      ReviewSortField = "likes"
)

// ReviewSort selects a sort field; Reverse sorts descending. The zero value
// lists the newest reviews first.
type ReviewSort struct {
	By      ReviewSortField `json:"sort_type"`
	Reverse bool            `json:"reverse"`
}

// ParseReviewSort resolves a sort name; "date" is accepted for recency.
func ParseReviewSort(by string, reverse bool) (ReviewSort, error) {
	f := ReviewSortField(strings.TrimSpace(by))
	switch f {
	case "":
		return ReviewSort{}, nil
	case "date":
		f = ReviewSortRecency
	case ReviewSortRecency, ReviewSortExperience, ReviewSortRating, ReviewSortDifficulty, ReviewSortLikes:
	default:
		return ReviewSort{}, apperrors.InvalidInput(fmt.Sprintf("unknown review sort %q", by))
	}
	return ReviewSort{By: f, Reverse: reverse}, nil
}

// ReviewQuery selects the reviews of one target.
type ReviewQuery struct {
	Type         ReviewType `json:"type"`
	TargetID     string     `json:"target_id"`
	InstructorID string     `json:"instructor_id,omitempty"`
	Sort         ReviewSort `json:"sort"`
}

func normalizeLevels(levels []string) ([]string, error) {
	levels = compact(levels)
	for _, l := range levels {
		if !levelRe.MatchString(l) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid level %q", l))
		}
	}
	return levels, nil
}

func normalizeSubjects(subjects []string) ([]string, error) {
	out := compact(subjects)
	for i, s := range out {
		out[i] = strings.ToUpper(s)
		if !subjectRe.MatchString(out[i]) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid subject %q", s))
		}
	}
	return out, nil
}

// LevelPattern builds an anchored regular expression matching catalog
// numbers at any of levels: "200" matches "248" and "248A" but not "2480".
// The syntax is valid for both PostgreSQL and Go.
func LevelPattern(levels []string) string {
	alts := make([]string, len(levels))
	for i, l := range levels {
		alts[i] = fmt.Sprintf("%c[0-9]{%d}", l[0], len(l)-1)
	}
	return "^(" + strings.Join(alts, "|") + ")([^0-9]|$)"
}

// SubjectPattern builds an anchored regular expression matching any of the
// subject prefixes.
func SubjectPattern(subjects []string) string {
	return "^(" + strings.Join(subjects, "|") + ")"
}

// IDQuery strips whitespace from a free-text query so "comp 248" matches the
// ID "COMP248".
func IDQuery(query string) string {
	return strings.Join(strings.Fields(query), "")
}

// PrioritizeIDMatches stably moves the items whose ID contains the
// whitespace-stripped query (case-insensitive) to the front. It reorders one
// page only; items are never moved across pages.
func PrioritizeIDMatches[T any](items []T, id func(T) string, query string) {
	q := strings.ToLower(IDQuery(query))
	if q == "" {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		mi := strings.Contains(strings.ToLower(id(items[i])), q)
		mj := strings.Contains(strings.ToLower(id(items[j])), q)
		return mi && !mj
	})
}
