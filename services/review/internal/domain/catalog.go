package domain

import (
	"strings"
	"time"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/slug"
)

// Course is a catalog course together with its review statistics.
type Course struct {
	ID          string      `json:"id"`
	Subject     string      `json:"subject"`
	Catalog     string      `json:"catalog"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Terms       []string    `json:"terms"`
	Instructors []string    `json:"instructors"`
	Stats       CourseStats `json:"stats"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CourseID derives the canonical course ID, e.g. ("comp", "248") -> "COMP248".
func CourseID(subject, catalog string) string {
	return strings.ToUpper(strings.TrimSpace(subject) + strings.TrimSpace(catalog))
}

// Normalize upper-cases subject and catalog, fills ID when empty and drops
// empty terms and instructors.
func (c *Course) Normalize() error {
	c.Subject = strings.ToUpper(strings.TrimSpace(c.Subject))
	c.Catalog = strings.ToUpper(strings.TrimSpace(c.Catalog))
	if c.ID == "" {
		c.ID = CourseID(c.Subject, c.Catalog)
	}
	c.ID = strings.ToUpper(c.ID)
	if c.Subject == "" || c.Catalog == "" {
		return apperrors.InvalidInput("subject and catalog are required")
	}
	c.Terms = compact(c.Terms)
	c.Instructors = compact(c.Instructors)
	return nil
}

// InstructorCourse names a course an instructor teaches.
type InstructorCourse struct {
	Subject string `json:"subject"`
	Catalog string `json:"catalog"`
}

// Instructor is a catalog instructor together with review statistics.
type Instructor struct {
	ID          string             `json:"id"`
	FirstName   string             `json:"first_name"`
	LastName    string             `json:"last_name"`
	Departments []string           `json:"departments"`
	Courses     []InstructorCourse `json:"courses"`
	Stats       InstructorStats    `json:"stats"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// InstructorID derives an instructor ID from a name, e.g. "Aiman Hanna" ->
// "aiman-hanna".
func InstructorID(firstName, lastName string) string {
	return slug.Generate(firstName + " " + lastName)
}

// Normalize fills ID from the name when empty and upper-cases course codes.
func (i *Instructor) Normalize() error {
	i.FirstName = strings.TrimSpace(i.FirstName)
	i.LastName = strings.TrimSpace(i.LastName)
	if i.FirstName == "" || i.LastName == "" {
		return apperrors.InvalidInput("first_name and last_name are required")
	}
	if i.ID == "" {
		i.ID = InstructorID(i.FirstName, i.LastName)
	}
	i.Departments = compact(i.Departments)
	for j := range i.Courses {
		i.Courses[j].Subject = strings.ToUpper(strings.TrimSpace(i.Courses[j].Subject))
		i.Courses[j].Catalog = strings.ToUpper(strings.TrimSpace(i.Courses[j].Catalog))
	}
	return nil
}

// HomeStats counts the catalog and the reviews written about it.
type HomeStats struct {
	Courses     int64 `json:"courses"`
	Instructors int64 `json:"instructors"`
	Reviews     int64 `json:"reviews"`
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
