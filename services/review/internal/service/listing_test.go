package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

func courseIDs(cs []domain.Course) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestListCourses_FilterAndSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, c := range [][2]string{{"COMP", "248"}, {"COMP", "352"}, {"SOEN", "287"}, {"COMP", "2480"}, {"ENGR", "201"}} {
		f.addCourse(t, c[0], c[1])
	}
	f.submit(t, courseInput("a", "COMP248", 5, 1))
	f.submit(t, courseInput("a", "SOEN287", 1, 1))

	res, err := f.listing.ListCourses(ctx, domain.CourseFilter{Levels: []string{"200"}}, pagination.DefaultWindow())
	require.NoError(t, err)
	assert.Equal(t, []string{"COMP248", "ENGR201", "SOEN287"}, courseIDs(res.Data))
	assert.Equal(t, 3, res.TotalCount)

	res, err = f.listing.ListCourses(ctx, domain.CourseFilter{
		Subjects: []string{"comp", "soen"},
		Sort:     domain.CourseSort{By: domain.CourseSortDifficulty, Reverse: true},
	}, pagination.DefaultWindow())
	require.NoError(t, err)
	assert.Equal(t, []string{"COMP248", "SOEN287", "COMP2480", "COMP352"}, courseIDs(res.Data))
}

func TestListCourses_Pagination(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"201", "202", "203", "204", "205"} {
		f.addCourse(t, "COMP", n)
	}

	res, err := f.listing.ListCourses(context.Background(), domain.CourseFilter{}, pagination.Window{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"COMP203", "COMP204"}, courseIDs(res.Data), "offset snaps to the page boundary")
	assert.Equal(t, 2, res.Offset)
	assert.Equal(t, 5, res.TotalCount)
	assert.True(t, res.HasNext)
}

func TestListCourses_QueryPrioritizesIDMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCourse(t, "COMP", "248")
	require.NoError(t, f.catalog.UpsertCourse(ctx, &domain.Course{
		Subject: "ENCS", Catalog: "282", Title: "Technical writing", Description: "follows comp 248",
	}))
	f.submit(t, courseInput("a", "ENCS282", 3, 3))

	res, err := f.listing.ListCourses(ctx, domain.CourseFilter{
		Query: "comp 248",
		Sort:  domain.CourseSort{By: domain.CourseSortReviewCount, Reverse: true},
	}, pagination.DefaultWindow())
	require.NoError(t, err)
	assert.Equal(t, []string{"COMP248", "ENCS282"}, courseIDs(res.Data), "the ID match outranks the busier course on its page")
}

func TestListCourses_InvalidFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.listing.ListCourses(context.Background(), domain.CourseFilter{Levels: []string{"2xx"}}, pagination.DefaultWindow())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestListInstructors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.catalog.UpsertInstructor(ctx, &domain.Instructor{
		FirstName: "Aiman", LastName: "Hanna", Departments: []string{"CS"},
		Courses: []domain.InstructorCourse{{Subject: "COMP", Catalog: "248"}},
	}))
	require.NoError(t, f.catalog.UpsertInstructor(ctx, &domain.Instructor{
		FirstName: "Joey", LastName: "Paquet", Departments: []string{"SE"},
		Courses: []domain.InstructorCourse{{Subject: "SOEN", Catalog: "341"}},
	}))
	f.submit(t, instructorInput("a", "joey-paquet", 2, 5, domain.TagToughGrader))

	res, err := f.listing.ListInstructors(ctx, domain.InstructorFilter{Subjects: []string{"COMP"}}, pagination.DefaultWindow())
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "aiman-hanna", res.Data[0].ID)

	res, err = f.listing.ListInstructors(ctx, domain.InstructorFilter{Tags: []domain.Tag{"tough grader"}}, pagination.DefaultWindow())
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "joey-paquet", res.Data[0].ID)
}

func TestListFiltered_Dispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCourse(t, "COMP", "248")
	f.addInstructor(t, "Aiman", "Hanna")

	got, err := f.listing.ListFiltered(ctx, domain.ReviewTypeCourse, []byte(`{"subjects":["COMP"]}`), pagination.DefaultWindow())
	require.NoError(t, err)
	courses, ok := got.(pagination.Result[domain.Course])
	require.True(t, ok)
	assert.Len(t, courses.Data, 1)

	got, err = f.listing.ListFiltered(ctx, domain.ReviewTypeInstructor, nil, pagination.DefaultWindow())
	require.NoError(t, err)
	instructors, ok := got.(pagination.Result[domain.Instructor])
	require.True(t, ok)
	assert.Len(t, instructors.Data, 1)

	_, err = f.listing.ListFiltered(ctx, domain.ReviewTypeCourse, []byte(`{"colour":"red"}`), pagination.DefaultWindow())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.listing.ListFiltered(ctx, domain.ReviewTypeSchool, nil, pagination.DefaultWindow())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestListReviews_SortAndViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addCourse(t, "COMP", "248")
	first := f.submit(t, courseInput("alice", id, 1, 5))
	second := f.submit(t, courseInput("bob", id, 4, 2))

	page, err := f.listing.ListReviews(ctx, domain.ReviewQuery{Type: domain.ReviewTypeCourse, TargetID: id}, pagination.DefaultWindow(), "bob")
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, second.ID, page.Data[0].ID, "newest first by default")
	require.NotNil(t, page.HasUserReviewed)
	assert.True(t, *page.HasUserReviewed)

	page, err = f.listing.ListReviews(ctx, domain.ReviewQuery{
		Type: domain.ReviewTypeCourse, TargetID: id,
		Sort: domain.ReviewSort{By: domain.ReviewSortExperience, Reverse: true},
	}, pagination.DefaultWindow(), "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, page.Data[0].ID)
	assert.Nil(t, page.HasUserReviewed)

	_, err = f.listing.ListReviews(ctx, domain.ReviewQuery{Type: "dorm", TargetID: id}, pagination.DefaultWindow(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestListReviews_InstructorFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addCourse(t, "COMP", "248")
	in := courseInput("alice", id, 3, 3)
	in.Course.InstructorID = "aiman-hanna"
	f.submit(t, in)
	f.submit(t, courseInput("bob", id, 3, 3))

	page, err := f.listing.ListReviews(ctx, domain.ReviewQuery{
		Type: domain.ReviewTypeCourse, TargetID: id, InstructorID: "aiman-hanna",
	}, pagination.DefaultWindow(), "")
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "alice", page.Data[0].AuthorID)
}
