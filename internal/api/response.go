package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/telemetry"
)

// CodePayloadTooLarge is the one envelope code with no domain error behind it.
const CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Success: true, Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Success: false, Error: message})
}

// PayloadTooLarge writes the 413 envelope for oversize request bodies.
func PayloadTooLarge(w http.ResponseWriter) {
	JSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
		Success: false,
		Error:   "request body too large",
		Code:    CodePayloadTooLarge,
	})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists:
		return http.StatusConflict
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeForbidden:
		return http.StatusForbidden
	case domain.ErrCodeMissingCredential:
		return http.StatusUnprocessableEntity
	case domain.ErrCodeProviderFailure, domain.ErrCodeGenerationFailure, domain.ErrCodePartialFailure:
		return http.StatusBadGateway
	case domain.ErrCodeProviderTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrCodeStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes the domain message of err. Causes are logged and
// server-side failures are captured to Sentry; they never reach the client.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := DomainErrorToHTTP(err)

	message := http.StatusText(http.StatusInternalServerError)
	code := domain.ErrCodeInternalError
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
		code = domainErr.Code
	}

	if status >= http.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
		telemetry.CaptureError(r.Context(), err)
	} else {
		logger.Log.Debug("request rejected", zap.String("path", r.URL.Path), zap.String("code", code), zap.Error(err))
	}

	JSON(w, status, ErrorResponse{Success: false, Error: message, Code: code})
}
