package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/coursereviews/pkg/httputil"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/service"
)

// AdminHandler exposes maintenance operations.
type AdminHandler struct {
	stats    *service.StatsService
	maxBytes int64
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(stats *service.StatsService, maxBytes int64, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{stats: stats, maxBytes: maxBytes, logger: logger}
}

// RecomputeRequest is the JSON request body for POST /admin/stats/recompute.
type RecomputeRequest struct {
	Type string `json:"type" validate:"required,oneof=course instructor"`
}

// RecomputeStats handles POST /api/v1/admin/stats/recompute
// @Summary Recompute every target's statistics from its reviews
// @Tags admin
// @Accept json
// @Produce json
// @Param X-User-Role header string true "Must be admin"
// @Param request body RecomputeRequest true "Target type"
// @Success 200 {object} service.RecomputeSummary
// @Failure 403 {object} httputil.Response
// @Router /api/v1/admin/stats/recompute [post]
func (h *AdminHandler) RecomputeStats(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if !decode(w, r, &req, h.maxBytes) {
		return
	}

	summary, err := h.stats.RecomputeAll(r.Context(), domain.ReviewType(req.Type))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "stats recomputed",
		slog.String("type", req.Type),
		slog.Int("total", summary.Total),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", summary.Duration),
	)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
}
