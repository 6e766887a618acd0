package middleware

import (
	"net/http"

	"github.com/cloo-solutions/agentkb/internal/api"
)

// MaxBodyBytes rejects declared oversize bodies up front and caps the rest.
// Handlers see *http.MaxBytesError once a streamed body crosses limit.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				api.PayloadTooLarge(w)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
