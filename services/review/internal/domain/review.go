package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
)

// ReviewType selects which entity a review targets and which payload it carries.
type ReviewType string

const (
	ReviewTypeCourse     ReviewType = "course"
	ReviewTypeInstructor ReviewType = "instructor"
	ReviewTypeSchool     ReviewType = "school"
)

// ParseReviewType accepts the three review types case-insensitively.
func ParseReviewType(s string) (ReviewType, error) {
	switch t := ReviewType(strings.ToLower(strings.TrimSpace(s))); t {
	case ReviewTypeCourse, ReviewTypeInstructor, ReviewTypeSchool:
		return t, nil
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown review type %q", s))
}

// HasStats reports whether targets of this type carry denormalized statistics.
func (t ReviewType) HasStats() bool {
	return t == ReviewTypeCourse || t == ReviewTypeInstructor
}

// MinScore and MaxScore bound every 1..5 rating field.
const (
	MinScore = 1
	MaxScore = 5
)

// CoursePayload holds the course-specific fields of a review.
type CoursePayload struct {
	Difficulty   int    `json:"difficulty"`
	Experience   int    `json:"experience"`
	InstructorID string `json:"instructor_id,omitempty"`
}

// InstructorPayload holds the instructor-specific fields of a review.
type InstructorPayload struct {
	Difficulty int    `json:"difficulty"`
	Rating     int    `json:"rating"`
	Tags       []Tag  `json:"tags"`
	CourseID   string `json:"course_id,omitempty"`
}

// SchoolPayload holds the school-specific fields of a review.
type SchoolPayload struct {
	Rating int `json:"rating"`
}

// Review is a user's opinion of one course, instructor or school. Exactly
// one payload is set and it matches Type.
type Review struct {
	ID        string     `json:"id"`
	Type      ReviewType `json:"type"`
	AuthorID  string     `json:"author_id"`
	TargetID  string     `json:"target_id"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Likes     int        `json:"likes"`

	Course     *CoursePayload     `json:"course,omitempty"`
	Instructor *InstructorPayload `json:"instructor,omitempty"`
	School     *SchoolPayload     `json:"school,omitempty"`
}

// ReviewKey is the natural identity of a review.
type ReviewKey struct {
	Type     ReviewType `json:"type"`
	TargetID string     `json:"target_id"`
	AuthorID string     `json:"author_id"`
}

// Key returns the natural identity of r.
func (r *Review) Key() ReviewKey {
	return ReviewKey{Type: r.Type, TargetID: r.TargetID, AuthorID: r.AuthorID}
}

func scoreOK(v int) bool { return v >= MinScore && v <= MaxScore }

func scoreErr(field string, v int) error {
	return apperrors.InvalidInput(fmt.Sprintf("%s must be between %d and %d, got %d", field, MinScore, MaxScore, v))
}

// Validate checks the identity fields, that exactly the payload for Type is
// present and that every score lies in 1..5. Instructor tags are normalized
// to their canonical form and de-duplicated in place.
func (r *Review) Validate() error {
	if strings.TrimSpace(r.AuthorID) == "" {
		return apperrors.InvalidInput("author_id is required")
	}
	if strings.TrimSpace(r.TargetID) == "" {
		return apperrors.InvalidInput("target_id is required")
	}

	set := 0
	for _, p := range []bool{r.Course != nil, r.Instructor != nil, r.School != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return apperrors.InvalidInput("exactly one review payload must be set")
	}

	switch r.Type {
	case ReviewTypeCourse:
		if r.Course == nil {
			return apperrors.InvalidInput("course review requires a course payload")
		}
		if !scoreOK(r.Course.Difficulty) {
			return scoreErr("difficulty", r.Course.Difficulty)
		}
		if !scoreOK(r.Course.Experience) {
			return scoreErr("experience", r.Course.Experience)
		}
	case ReviewTypeInstructor:
		if r.Instructor == nil {
			return apperrors.InvalidInput("instructor review requires an instructor payload")
		}
		if !scoreOK(r.Instructor.Difficulty) {
			return scoreErr("difficulty", r.Instructor.Difficulty)
		}
		if !scoreOK(r.Instructor.Rating) {
			return scoreErr("rating", r.Instructor.Rating)
		}
		tags, err := NormalizeTags(r.Instructor.Tags)
		if err != nil {
			return err
		}
		r.Instructor.Tags = tags
	case ReviewTypeSchool:
		if r.School == nil {
			return apperrors.InvalidInput("school review requires a school payload")
		}
		if !scoreOK(r.School.Rating) {
			return scoreErr("rating", r.School.Rating)
		}
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown review type %q", r.Type))
	}
	return nil
}

// CourseID returns the course a review concerns: the target of a course
// review, or the optional course of an instructor review.
func (r *Review) CourseID() string {
	switch {
	case r.Type == ReviewTypeCourse:
		return r.TargetID
	case r.Instructor != nil:
		return r.Instructor.CourseID
	}
	return ""
}

// Difficulty returns the difficulty score, or 0 for school reviews.
func (r *Review) Difficulty() int {
	switch {
	case r.Course != nil:
		return r.Course.Difficulty
	case r.Instructor != nil:
		return r.Instructor.Difficulty
	}
	return 0
}

// Rating returns the rating score of instructor and school reviews, or 0.
func (r *Review) Rating() int {
	switch {
	case r.Instructor != nil:
		return r.Instructor.Rating
	case r.School != nil:
		return r.School.Rating
	}
	return 0
}

// Experience returns the experience score of course reviews, or 0.
func (r *Review) Experience() int {
	if r.Course != nil {
		return r.Course.Experience
	}
	return 0
}

// InstructorID returns the instructor a course review names, or the target of
// an instructor review.
func (r *Review) InstructorID() string {
	switch {
	case r.Type == ReviewTypeInstructor:
		return r.TargetID
	case r.Course != nil:
		return r.Course.InstructorID
	}
	return ""
}

// Overwrite replaces the editable fields of r with those of next, keeping the
// identity, ID and like count.
func (r *Review) Overwrite(next *Review) {
	r.Content = next.Content
	r.Timestamp = next.Timestamp
	r.Course = next.Course
	r.Instructor = next.Instructor
	r.School = next.School
}

// Clone returns a deep copy of r.
func (r *Review) Clone() *Review {
	c := *r
	if r.Course != nil {
		p := *r.Course
		c.Course = &p
	}
	if r.Instructor != nil {
		p := *r.Instructor
		p.Tags = append([]Tag(nil), r.Instructor.Tags...)
		c.Instructor = &p
	}
	if r.School != nil {
		p := *r.School
		c.School = &p
	}
	return &c
}
