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

// InteractionHandler handles like/dislike reactions to reviews. A review is
// addressed by its type, target and author; the reacting identity is the
// referrer.
type InteractionHandler struct {
	service  *service.InteractionService
	maxBytes int64
	logger   *slog.Logger
}

// NewInteractionHandler creates a new interaction HTTP handler.
func NewInteractionHandler(svc *service.InteractionService, maxBytes int64, logger *slog.Logger) *InteractionHandler {
	return &InteractionHandler{
		service:  svc,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// --- Request DTOs ---

// ReviewRef addresses the review being reacted to.
type ReviewRef struct {
	Type     string `json:"type" validate:"required,oneof=course instructor"`
	TargetID string `json:"target_id" validate:"required,max=128"`
	AuthorID string `json:"author_id" validate:"required,max=128"`
}

// ReactRequest is the JSON request body for POST /interactions.
type ReactRequest struct {
	ReviewRef
	Kind string `json:"kind" validate:"required,oneof=like dislike"`
}

// ReactionResponse is the caller's current reaction to a review.
type ReactionResponse struct {
	Kind domain.InteractionKind `json:"kind"`
}

func (ref ReviewRef) key(referrer string) domain.InteractionKey {
	return domain.InteractionKey{
		Type:     domain.ReviewType(ref.Type),
		TargetID: strings.TrimSpace(ref.TargetID),
		UserID:   strings.TrimSpace(ref.AuthorID),
		Referrer: referrer,
	}
}

// refFromQuery reads a ReviewRef from "type", "target_id" and "author_id".
func refFromQuery(r *http.Request) (ReviewRef, error) {
	q := r.URL.Query()
	reviewType, err := domain.ParseReviewType(q.Get("type"))
	if err != nil {
		return ReviewRef{}, err
	}
	return ReviewRef{Type: string(reviewType), TargetID: q.Get("target_id"), AuthorID: q.Get("author_id")}, nil
}

// --- Handlers ---

// React handles POST /api/v1/interactions
// @Summary Like or dislike a review
// @Description Applies the reaction to the review's likes. Repeating the current reaction is a no-op.
// @Tags interactions
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Authenticated user"
// @Param X-Referrer header string false "Reacting session; defaults to the user"
// @Param request body ReactRequest true "Reaction"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/interactions [post]
func (h *InteractionHandler) React(w http.ResponseWriter, r *http.Request) {
	ref, ok := referrer(w, r)
	if !ok {
		return
	}

	var req ReactRequest
	if !decode(w, r, &req, h.maxBytes) {
		return
	}

	interaction, err := h.service.React(r.Context(), service.ReactInput{
		Key:  req.key(ref),
		Kind: domain.InteractionKind(req.Kind),
	})
	var warnings []string
	if stale, ok := asStale(r, err); ok {
		warnings = stale.Warnings()
	} else if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: interaction, Warnings: warnings})
}

// Unreact handles DELETE /api/v1/interactions
// @Summary Remove the caller's reaction to a review
// @Description Idempotent: removing an absent reaction succeeds.
// @Tags interactions
// @Param type query string true "course or instructor"
// @Param target_id query string true "Reviewed target"
// @Param author_id query string true "Review author"
// @Success 204
// @Success 200 {object} httputil.Response "Removed; listings refresh pending"
// @Router /api/v1/interactions [delete]
func (h *InteractionHandler) Unreact(w http.ResponseWriter, r *http.Request) {
	ref, ok := referrer(w, r)
	if !ok {
		return
	}
	review, err := refFromQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	err = h.service.Unreact(r.Context(), review.key(ref))
	if stale, ok := asStale(r, err); ok {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Warnings: stale.Warnings()})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetReaction handles GET /api/v1/interactions
// @Summary The caller's reaction to a review
// @Tags interactions
// @Produce json
// @Param type query string true "course or instructor"
// @Param target_id query string true "Reviewed target"
// @Param author_id query string true "Review author"
// @Success 200 {object} ReactionResponse
// @Failure 404 {object} httputil.Response "no reaction"
// @Router /api/v1/interactions [get]
func (h *InteractionHandler) GetReaction(w http.ResponseWriter, r *http.Request) {
	ref, ok := referrer(w, r)
	if !ok {
		return
	}
	review, err := refFromQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	kind, err := h.service.GetKind(r.Context(), review.key(ref))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ReactionResponse{Kind: kind}})
}

// ListForTarget handles GET /api/v1/interactions/target/{type}/{id}
// @Summary The caller's reactions to every review of a target
// @Tags interactions
// @Produce json
// @Param type path string true "course or instructor"
// @Param id path string true "Target ID"
// @Success 200 {object} httputil.Response
// @Router /api/v1/interactions/target/{type}/{id} [get]
func (h *InteractionHandler) ListForTarget(w http.ResponseWriter, r *http.Request) {
	ref, ok := referrer(w, r)
	if !ok {
		return
	}
	reviewType, err := domain.ParseReviewType(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	interactions, err := h.service.ListForTarget(r.Context(), reviewType, strings.TrimSpace(chi.URLParam(r, "id")), ref)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: interactions})
}
