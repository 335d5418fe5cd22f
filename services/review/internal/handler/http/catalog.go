package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/coursereviews/pkg/httputil"
	"github.com/utafrali/coursereviews/pkg/middleware"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/service"
)

// CatalogHandler serves courses and instructors: catalog upserts, details,
// their review listings and the filtered catalog views.
type CatalogHandler struct {
	catalog  *service.CatalogService
	listings *service.ListingService
	maxBytes int64
	logger   *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(catalog *service.CatalogService, listings *service.ListingService, maxBytes int64, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		listings: listings,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// --- Request DTOs ---

// UpsertCourseRequest is the JSON request body for PUT /courses/{id}.
type UpsertCourseRequest struct {
	Subject     string   `json:"subject" validate:"required,alpha,min=3,max=4"`
	Catalog     string   `json:"catalog" validate:"required,min=3,max=5"`
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description" validate:"max=5000"`
	Terms       []string `json:"terms" validate:"omitempty,dive,max=32"`
	Instructors []string `json:"instructors" validate:"omitempty,dive,max=128"`
}

// InstructorCourseRequest names a course taught by an instructor.
type InstructorCourseRequest struct {
	Subject string `json:"subject" validate:"required,max=4"`
	Catalog string `json:"catalog" validate:"required,max=5"`
}

// UpsertInstructorRequest is the JSON request body for PUT /instructors. The
// ID is derived from the name when omitted.
type UpsertInstructorRequest struct {
	ID          string                    `json:"id" validate:"omitempty,max=128"`
	FirstName   string                    `json:"first_name" validate:"required,max=100"`
	LastName    string                    `json:"last_name" validate:"required,max=100"`
	Departments []string                  `json:"departments" validate:"omitempty,dive,max=128"`
	Courses     []InstructorCourseRequest `json:"courses" validate:"omitempty,dive"`
}

// --- Course handlers ---

// UpsertCourse handles PUT /api/v1/courses/{id}
// @Summary Create or replace a course
// @Description Replaces the catalog fields of a course. Review statistics are kept.
// @Tags courses
// @Accept json
// @Produce json
// @Param id path string true "Course code, e.g. COMP248"
// @Param request body UpsertCourseRequest true "Catalog fields"
// @Success 200 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Router /api/v1/courses/{id} [put]
func (h *CatalogHandler) UpsertCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := courseIDParam(w, r)
	if !ok {
		return
	}

	var req UpsertCourseRequest
	if !decode(w, r, &req, h.maxBytes) {
		return
	}
	if derived := domain.CourseID(req.Subject, req.Catalog); derived != id {
		badRequest(w, "course id "+id+" does not match subject and catalog "+derived)
		return
	}

	course := &domain.Course{
		ID:          id,
		Subject:     req.Subject,
		Catalog:     req.Catalog,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Terms:       req.Terms,
		Instructors: req.Instructors,
	}
	if err := h.catalog.UpsertCourse(r.Context(), course); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: course})
}

// GetCourse handles GET /api/v1/courses/{id}
// @Summary Get a course with its review statistics
// @Tags courses
// @Produce json
// @Param id path string true "Course code"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/courses/{id} [get]
func (h *CatalogHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := courseIDParam(w, r)
	if !ok {
		return
	}

	course, err := h.catalog.GetCourse(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: course})
}

// ListCourseReviews handles GET /api/v1/courses/{id}/reviews
// @Summary List a course's reviews
// @Tags courses
// @Produce json
// @Param id path string true "Course code"
// @Param sort query string false "recency, experience, rating, difficulty or likes"
// @Param reverse query bool false "Sort descending"
// @Param instructor query string false "Only reviews naming this instructor"
// @Param limit query int false "Page size (max 100)" default(20)
// @Param offset query int false "Offset, snapped to a page boundary"
// @Success 200 {object} service.ReviewPage
// @Router /api/v1/courses/{id}/reviews [get]
func (h *CatalogHandler) ListCourseReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := courseIDParam(w, r)
	if !ok {
		return
	}
	h.listReviews(w, r, domain.ReviewTypeCourse, id)
}

// FilterCourses handles POST /api/v1/courses/filter
// @Summary Filter, sort and paginate courses
// @Tags courses
// @Accept json
// @Produce json
// @Param request body domain.CourseFilter false "Filter"
// @Success 200 {object} pagination.Result[domain.Course]
// @Failure 400 {object} httputil.Response
// @Router /api/v1/courses/filter [post]
func (h *CatalogHandler) FilterCourses(w http.ResponseWriter, r *http.Request) {
	h.filter(w, r, domain.ReviewTypeCourse)
}

// --- Instructor handlers ---

// UpsertInstructor handles PUT /api/v1/instructors
// @Summary Create or replace an instructor
// @Tags instructors
// @Accept json
// @Produce json
// @Param request body UpsertInstructorRequest true "Catalog fields"
// @Success 200 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Router /api/v1/instructors [put]
func (h *CatalogHandler) UpsertInstructor(w http.ResponseWriter, r *http.Request) {
	var req UpsertInstructorRequest
	if !decode(w, r, &req, h.maxBytes) {
		return
	}

	instructor := &domain.Instructor{
		ID:          strings.TrimSpace(req.ID),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Departments: req.Departments,
	}
	for _, c := range req.Courses {
		instructor.Courses = append(instructor.Courses, domain.InstructorCourse{Subject: c.Subject, Catalog: c.Catalog})
	}
	if err := h.catalog.UpsertInstructor(r.Context(), instructor); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: instructor})
}

// GetInstructor handles GET /api/v1/instructors/{id}
// @Summary Get an instructor with review statistics
// @Tags instructors
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/instructors/{id} [get]
func (h *CatalogHandler) GetInstructor(w http.ResponseWriter, r *http.Request) {
	instructor, err := h.catalog.GetInstructor(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: instructor})
}

// ListInstructorReviews handles GET /api/v1/instructors/{id}/reviews
// @Summary List an instructor's reviews
// @Tags instructors
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} service.ReviewPage
// @Router /api/v1/instructors/{id}/reviews [get]
func (h *CatalogHandler) ListInstructorReviews(w http.ResponseWriter, r *http.Request) {
	h.listReviews(w, r, domain.ReviewTypeInstructor, strings.TrimSpace(chi.URLParam(r, "id")))
}

// FilterInstructors handles POST /api/v1/instructors/filter
// @Summary Filter, sort and paginate instructors
// @Tags instructors
// @Accept json
// @Produce json
// @Param request body domain.InstructorFilter false "Filter"
// @Success 200 {object} pagination.Result[domain.Instructor]
// @Router /api/v1/instructors/filter [post]
func (h *CatalogHandler) FilterInstructors(w http.ResponseWriter, r *http.Request) {
	h.filter(w, r, domain.ReviewTypeInstructor)
}

// HomeStats handles GET /api/v1/stats/home
// @Summary Catalog and review counts
// @Tags stats
// @Produce json
// @Success 200 {object} domain.HomeStats
// @Router /api/v1/stats/home [get]
func (h *CatalogHandler) HomeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.HomeStats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// --- Shared ---

func (h *CatalogHandler) listReviews(w http.ResponseWriter, r *http.Request, reviewType domain.ReviewType, targetID string) {
	q, err := reviewQuery(r, reviewType, targetID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, err := h.listings.ListReviews(r.Context(), q, pagination.FromRequest(r), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, page)
}

// filter answers the filtered listing views. Pagination comes from the query
// string, so the body holds only the filter.
func (h *CatalogHandler) filter(w http.ResponseWriter, r *http.Request, kind domain.ReviewType) {
	raw, ok := readBody(w, r, h.maxBytes)
	if !ok {
		return
	}

	result, err := h.listings.ListFiltered(r.Context(), kind, raw, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
