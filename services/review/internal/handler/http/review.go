package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/coursereviews/pkg/httputil"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/service"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service  *service.ReviewService
	maxBytes int64
	logger   *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, maxBytes int64, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service:  svc,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// --- Request DTOs ---

// SubmitReviewRequest is the JSON request body for posting or editing a
// review. Exactly one payload must match Type.
type SubmitReviewRequest struct {
	Type       string                    `json:"type" validate:"required,oneof=course instructor school"`
	TargetID   string                    `json:"target_id" validate:"required,max=128"`
	Content    string                    `json:"content" validate:"max=10000"`
	Course     *domain.CoursePayload     `json:"course,omitempty"`
	Instructor *domain.InstructorPayload `json:"instructor,omitempty"`
	School     *domain.SchoolPayload     `json:"school,omitempty"`
}

// --- Handlers ---

// SubmitReview handles POST /api/v1/reviews
// @Summary Post or edit a review
// @Description Creates the caller's review of a target, or overwrites it if one exists.
// @Tags reviews
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Authenticated user"
// @Param request body SubmitReviewRequest true "Review to submit"
// @Success 201 {object} httputil.Response "created"
// @Success 200 {object} httputil.Response "edited"
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/reviews [post]
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if !decode(w, r, &req, h.maxBytes) {
		return
	}

	result, err := h.service.Submit(r.Context(), service.SubmitReviewInput{
		Type:       domain.ReviewType(req.Type),
		AuthorID:   userID,
		TargetID:   strings.TrimSpace(req.TargetID),
		Content:    req.Content,
		Course:     req.Course,
		Instructor: req.Instructor,
		School:     req.School,
	})

	var warnings []string
	if partial, ok := asPartial(r, err); ok {
		result = &service.SubmitResult{Review: partial.Review, IsNew: partial.IsNew}
		warnings = partial.Warnings()
	} else if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: result, Warnings: warnings})
}

// GetReview handles GET /api/v1/reviews/{id}
// @Summary Get a review
// @Tags reviews
// @Produce json
// @Param id path string true "Review UUID"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/reviews/{id} [get]
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	review, err := h.service.GetByID(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// DeleteReview handles DELETE /api/v1/reviews/{id}
// @Summary Delete one of the caller's reviews
// @Tags reviews
// @Param X-User-ID header string true "Authenticated user"
// @Param id path string true "Review UUID"
// @Success 204
// @Success 200 {object} httputil.Response "deleted with pending follow-ups"
// @Failure 403 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/reviews/{id} [delete]
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	err := h.service.DeleteOwned(r.Context(), id.String(), userID)
	if partial, ok := asPartial(r, err); ok {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Warnings: partial.Warnings()})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetUserReviews handles GET /api/v1/users/{userId}/reviews
// @Summary List a user's reviews
// @Tags reviews
// @Produce json
// @Param userId path string true "Author"
// @Success 200 {object} httputil.Response
// @Router /api/v1/users/{userId}/reviews [get]
func (h *ReviewHandler) GetUserReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.GetUserReviews(r.Context(), strings.TrimSpace(chi.URLParam(r, "userId")))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: reviews})
}
