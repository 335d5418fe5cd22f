package http

import (
	"net/http"
	"strings"

	"github.com/utafrali/coursereviews/pkg/httputil"
)

// ContentTypeJSON rejects POST and PUT requests, and any request carrying a
// body, unless they declare Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
