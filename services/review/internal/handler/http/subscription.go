package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/coursereviews/pkg/httputil"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/service"
)

// SubscriptionHandler serves the caller's course subscriptions and the
// notifications they produce.
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
	notifications *service.NotificationService
	maxBytes      int64
	logger        *slog.Logger
}

// NewSubscriptionHandler creates a new subscription HTTP handler.
func NewSubscriptionHandler(
	subscriptions *service.SubscriptionService,
	notifications *service.NotificationService,
	maxBytes int64,
	logger *slog.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		notifications: notifications,
		maxBytes:      maxBytes,
		logger:        logger,
	}
}

// --- Request DTOs ---

// SubscribeRequest is the JSON request body for POST /subscriptions.
type SubscribeRequest struct {
	CourseID string `json:"course_id" validate:"required,coursecode"`
}

// MarkSeenRequest is the JSON request body for PUT /notifications/seen.
// Seen defaults to true.
type MarkSeenRequest struct {
	CourseID string `json:"course_id" validate:"required,max=16"`
	AuthorID string `json:"author_id" validate:"required,max=128"`
	Seen     *bool  `json:"seen"`
}

// SubscriptionStatus reports whether the caller follows a course.
type SubscriptionStatus struct {
	CourseID   string `json:"course_id"`
	Subscribed bool   `json:"subscribed"`
}

// --- Subscription handlers ---

// ListSubscriptions handles GET /api/v1/subscriptions
// @Summary Courses the caller follows
// @Tags subscriptions
// @Produce json
// @Param X-User-ID header string true "Authenticated user"
// @Success 200 {object} httputil.Response
// @Router /api/v1/subscriptions [get]
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	subs, err := h.subscriptions.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: subs})
}

// GetSubscription handles GET /api/v1/subscriptions/{courseId}
// @Summary Whether the caller follows a course
// @Tags subscriptions
// @Produce json
// @Param courseId path string true "Course code"
// @Success 200 {object} SubscriptionStatus
// @Router /api/v1/subscriptions/{courseId} [get]
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "courseId")

	subscribed, err := h.subscriptions.IsSubscribed(r.Context(), userID, courseID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: SubscriptionStatus{CourseID: courseID, Subscribed: subscribed}})
}

// Subscribe handles POST /api/v1/subscriptions
// @Summary Follow a course
// @Description New reviews of the course by other users will notify the caller.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body SubscribeRequest true "Course"
// @Success 201 {object} httputil.Response
// @Failure 404 {object} httputil.Response "unknown course"
// @Failure 409 {object} httputil.Response "already subscribed"
// @Router /api/v1/subscriptions [post]
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var req SubscribeRequest
	if !decode(w, r, &req, h.maxBytes) {
		return
	}

	sub, err := h.subscriptions.Subscribe(r.Context(), userID, req.CourseID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: sub})
}

// Unsubscribe handles DELETE /api/v1/subscriptions/{courseId}
// @Summary Stop following a course
// @Tags subscriptions
// @Param courseId path string true "Course code"
// @Success 204
// @Failure 404 {object} httputil.Response
// @Router /api/v1/subscriptions/{courseId} [delete]
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	if err := h.subscriptions.Unsubscribe(r.Context(), userID, chi.URLParam(r, "courseId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Notification handlers ---

// ListNotifications handles GET /api/v1/notifications
// @Summary The caller's notifications, newest review first
// @Tags notifications
// @Produce json
// @Success 200 {object} httputil.Response
// @Router /api/v1/notifications [get]
func (h *SubscriptionHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	notifications, err := h.notifications.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: notifications})
}

// MarkSeen handles PUT /api/v1/notifications/seen
// @Summary Mark a notification seen or unseen
// @Tags notifications
// @Accept json
// @Param request body MarkSeenRequest true "Notification"
// @Success 204
// @Router /api/v1/notifications/seen [put]
func (h *SubscriptionHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var req MarkSeenRequest
	if !decode(w, r, &req, h.maxBytes) {
		return
	}
	seen := req.Seen == nil || *req.Seen

	key := domain.NotificationKey{UserID: userID, CourseID: req.CourseID, AuthorID: req.AuthorID}
	if err := h.notifications.MarkSeen(r.Context(), key, seen); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DismissNotification handles DELETE /api/v1/notifications
// @Summary Dismiss a notification
// @Tags notifications
// @Param course_id query string true "Course of the review"
// @Param author_id query string true "Author of the review"
// @Success 204
// @Failure 404 {object} httputil.Response
// @Router /api/v1/notifications [delete]
func (h *SubscriptionHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	key := domain.NotificationKey{UserID: userID, CourseID: q.Get("course_id"), AuthorID: q.Get("author_id")}
	if err := h.notifications.Dismiss(r.Context(), key); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
