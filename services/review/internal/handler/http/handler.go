package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/coursereviews/pkg/httputil"
	"github.com/utafrali/coursereviews/pkg/logger"
	"github.com/utafrali/coursereviews/pkg/middleware"
	"github.com/utafrali/coursereviews/pkg/validator"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/service"
)

// DefaultMaxBodyBytes caps request bodies when the router config leaves it unset.
const DefaultMaxBodyBytes int64 = 64 << 10

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) bool {
	if err := validator.DecodeAndValidate(w, r, dst, maxBytes); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// readBody returns the raw request body, writing a 400 when it is too large.
func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		httputil.WriteValidationError(w, errors.New("read request body: "+err.Error()))
		return nil, false
	}
	return raw, true
}

func badRequest(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: message},
	})
}

// courseIDParam reads and upper-cases the {id} path parameter of a course route.
func courseIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "id")))
	if err := validator.Validate(struct {
		ID string `json:"id" validate:"required,coursecode"`
	}{ID: id}); err != nil {
		httputil.WriteValidationError(w, err)
		return "", false
	}
	return id, true
}

// reviewQuery builds the listing query of one target from "sort", "reverse"
// and "instructor" query parameters.
func reviewQuery(r *http.Request, reviewType domain.ReviewType, targetID string) (domain.ReviewQuery, error) {
	q := r.URL.Query()
	reverse, _ := strconv.ParseBool(q.Get("reverse"))
	sort, err := domain.ParseReviewSort(q.Get("sort"), reverse)
	if err != nil {
		return domain.ReviewQuery{}, err
	}
	return domain.ReviewQuery{
		Type:         reviewType,
		TargetID:     targetID,
		InstructorID: strings.TrimSpace(q.Get("instructor")),
		Sort:         sort,
	}, nil
}

// referrer resolves the reacting identity: the X-Referrer header, else the
// caller. Writes 401 when neither is present.
func referrer(w http.ResponseWriter, r *http.Request) (string, bool) {
	if ref := middleware.ReferrerFromContext(r.Context()); ref != "" {
		return ref, true
	}
	return httputil.RequireUserID(w, r)
}

// asPartial reports whether err is a committed write with failed follow-ups
// and logs it.
func asPartial(r *http.Request, err error) (*service.PartialWriteError, bool) {
	var partial *service.PartialWriteError
	if !errors.As(err, &partial) {
		return nil, false
	}
	logger.FromContext(r.Context()).WarnContext(r.Context(), "review write committed with pending follow-ups",
		slog.String("review_id", partial.Review.ID),
		slog.String("stages", strings.Join(partial.Stages, ",")),
		slog.String("error", partial.Err.Error()),
	)
	return partial, true
}

// asStale reports whether err is a committed interaction change whose cache
// invalidation failed, and logs it.
func asStale(r *http.Request, err error) (*service.StaleCacheError, bool) {
	var stale *service.StaleCacheError
	if !errors.As(err, &stale) {
		return nil, false
	}
	logger.FromContext(r.Context()).WarnContext(r.Context(), "interaction committed with stale listings",
		slog.String("target_id", stale.Key.TargetID),
		slog.String("error", stale.Err.Error()),
	)
	return stale, true
}
