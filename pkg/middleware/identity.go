package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/coursereviews/pkg/httputil"
	"github.com/utafrali/coursereviews/pkg/logger"
)

// Identity headers are set by the upstream auth proxy; this service trusts
// them as-is.
const (
	ReferrerHeader = "X-Referrer"
	RoleHeader     = "X-User-Role"
)

type contextKeyType string

const (
	userIDKey   contextKeyType = "user_id"
	roleKey     contextKeyType = "role"
	referrerKey contextKeyType = "referrer"
)

// Identity copies the caller headers into the request context. It never
// rejects a request; handlers that need a user call httputil.RequireUserID.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := strings.TrimSpace(r.Header.Get(httputil.UserIDHeader)); id != "" {
			ctx = context.WithValue(ctx, userIDKey, id)
			ctx = logger.WithUserID(ctx, id)
		}
		if ref := strings.TrimSpace(r.Header.Get(ReferrerHeader)); ref != "" {
			ctx = context.WithValue(ctx, referrerKey, ref)
			ctx = logger.WithReferrer(ctx, ref)
		}
		if role := strings.TrimSpace(r.Header.Get(RoleHeader)); role != "" {
			ctx = context.WithValue(ctx, roleKey, role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose role is not in roles with 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := roleSet[RoleFromContext(r.Context())]; !ok {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "insufficient permissions"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext extracts the caller's user ID.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// ReferrerFromContext extracts the caller's session referrer.
func ReferrerFromContext(ctx context.Context) string {
	if ref, ok := ctx.Value(referrerKey).(string); ok {
		return ref
	}
	return ""
}

// RoleFromContext extracts the caller's role.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}
