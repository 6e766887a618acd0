package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
)

// Recover turns a panic into an INTERNAL_ERROR envelope. It must sit outside
// SentryMiddleware, which re-panics after reporting.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.Log.Error("panic recovered",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.String("panic", fmt.Sprint(rec)),
				zap.ByteString("stack", debug.Stack()),
			)
			api.JSON(w, http.StatusInternalServerError, api.ErrorResponse{
				Success: false,
				Error:   http.StatusText(http.StatusInternalServerError),
				Code:    domain.ErrCodeInternalError,
			})
		}()

		next.ServeHTTP(w, r)
	})
}
