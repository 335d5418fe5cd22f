package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// ReviewPage is one page of a target's reviews. HasUserReviewed is set when
// the viewer is known.
type ReviewPage struct {
	pagination.Result[domain.Review]
	HasUserReviewed *bool `json:"has_user_reviewed,omitempty"`
}

// ListingService builds the filtered, sorted and paginated views. Every
// page is read through the cache.
type ListingService struct {
	store  repository.Store
	cache  cache.Loader
	logger *slog.Logger
}

// NewListingService creates a listing service.
func NewListingService(store repository.Store, loader cache.Loader, logger *slog.Logger) *ListingService {
	return &ListingService{store: store, cache: loader, logger: logger}
}

// listingKey identifies one normalized request within a namespace.
func listingKey(kind string, parts ...any) string {
	raw, err := json.Marshal(parts)
	if err != nil {
		return kind + ":" + fmt.Sprint(parts...)
	}
	return kind + ":" + string(raw)
}

// ListCourses returns one page of the courses matching filter. Within the
// page, courses whose ID contains the query are moved to the front.
func (s *ListingService) ListCourses(ctx context.Context, filter domain.CourseFilter, w pagination.Window) (pagination.Result[domain.Course], error) {
	if err := filter.Normalize(); err != nil {
		return pagination.Result[domain.Course]{}, err
	}
	w = w.Normalize()
	w.Offset = w.Start()

	key := listingKey("courses", filter, w)
	return cache.Fetch(ctx, s.cache, cache.Global(cache.NamespaceFilteredListing), key, func(ctx context.Context) (pagination.Result[domain.Course], error) {
		items, total, err := s.store.Courses.List(ctx, filter, w)
		if err != nil {
			return pagination.Result[domain.Course]{}, fmt.Errorf("list courses: %w", err)
		}
		domain.PrioritizeIDMatches(items, func(c domain.Course) string { return c.ID }, filter.Query)
		return pagination.NewResult(items, total, w), nil
	})
}

// ListInstructors returns one page of the instructors matching filter, with
// the same page-local ID re-rank as ListCourses.
func (s *ListingService) ListInstructors(ctx context.Context, filter domain.InstructorFilter, w pagination.Window) (pagination.Result[domain.Instructor], error) {
	if err := filter.Normalize(); err != nil {
		return pagination.Result[domain.Instructor]{}, err
	}
	w = w.Normalize()
	w.Offset = w.Start()

	key := listingKey("instructors", filter, w)
	return cache.Fetch(ctx, s.cache, cache.Global(cache.NamespaceFilteredListing), key, func(ctx context.Context) (pagination.Result[domain.Instructor], error) {
		items, total, err := s.store.Instructors.List(ctx, filter, w)
		if err != nil {
			return pagination.Result[domain.Instructor]{}, fmt.Errorf("list instructors: %w", err)
		}
		domain.PrioritizeIDMatches(items, func(i domain.Instructor) string { return i.ID }, filter.Query)
		return pagination.NewResult(items, total, w), nil
	})
}

// ListReviews returns one page of a target's reviews. viewer may be empty.
func (s *ListingService) ListReviews(ctx context.Context, q domain.ReviewQuery, w pagination.Window, viewer string) (*ReviewPage, error) {
	if _, err := domain.ParseReviewType(string(q.Type)); err != nil {
		return nil, err
	}
	if q.TargetID == "" {
		return nil, apperrors.InvalidInput("target_id is required")
	}
	w = w.Normalize()
	w.Offset = w.Start()

	scope := cache.EntityReviews(q.Type, q.TargetID)
	result, err := cache.Fetch(ctx, s.cache, scope, listingKey("reviews", q, w), func(ctx context.Context) (pagination.Result[domain.Review], error) {
		items, total, err := s.store.Reviews.ListByTarget(ctx, q, w)
		if err != nil {
			return pagination.Result[domain.Review]{}, fmt.Errorf("list reviews: %w", err)
		}
		return pagination.NewResult(items, total, w), nil
	})
	if err != nil {
		return nil, err
	}

	page := &ReviewPage{Result: result}
	if viewer != "" {
		reviewed, err := s.store.Reviews.Exists(ctx, domain.ReviewKey{Type: q.Type, TargetID: q.TargetID, AuthorID: viewer})
		if err != nil {
			return nil, fmt.Errorf("check viewer review: %w", err)
		}
		page.HasUserReviewed = &reviewed
	}
	return page, nil
}

// ListFiltered decodes a filter for the given entity kind and dispatches to
// the matching listing. Unknown fields are rejected.
func (s *ListingService) ListFiltered(ctx context.Context, kind domain.ReviewType, rawFilter []byte, w pagination.Window) (any, error) {
	switch kind {
	case domain.ReviewTypeCourse:
		var f domain.CourseFilter
		if err := decodeFilter(rawFilter, &f); err != nil {
			return nil, err
		}
		return s.ListCourses(ctx, f, w)
	case domain.ReviewTypeInstructor:
		var f domain.InstructorFilter
		if err := decodeFilter(rawFilter, &f); err != nil {
			return nil, err
		}
		return s.ListInstructors(ctx, f, w)
	}
	return nil, apperrors.InvalidInput(fmt.Sprintf("no filtered listing for %q", kind))
}

func decodeFilter(raw []byte, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidInput("invalid filter: " + err.Error())
	}
	return nil
}
