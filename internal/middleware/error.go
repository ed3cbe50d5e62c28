package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ecatalogue/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	RespondWithJSON(w, statusCode, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, message string, fields []domain.FieldError) {
	if message == "" {
		message = "validation failed"
	}

	details := map[string]interface{}{
		"validation_errors": fields,
	}

	RespondWithErrorDetails(w, http.StatusBadRequest, message, details)
}

// RespondWithDomainError maps a catalogue error onto its HTTP status. Store
// and unclassified failures are logged and reported without their cause.
func RespondWithDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		RespondWithValidationErrors(w, verr.Message, verr.Fields)
		return
	}

	message := err.Error()
	var derr *domain.Error
	if errors.As(err, &derr) {
		message = derr.Message
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		RespondWithError(w, http.StatusBadRequest, message)
	case errors.Is(err, domain.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, message)
	case errors.Is(err, domain.ErrConflict):
		RespondWithError(w, http.StatusConflict, message)
	case errors.Is(err, domain.ErrAsset):
		logger.Error("Image asset gateway failure", zap.Error(err))
		RespondWithError(w, http.StatusBadGateway, "image storage is unavailable")
	default:
		logger.Error("Request failed", zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
