package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"taskdesk/internal/logger"
	"taskdesk/internal/service"
)

// handleBusinessError renders a service.BusinessError and reports whether
// it handled the error.
func handleBusinessError(w http.ResponseWriter, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}

	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: business error",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode))

	responseWithJSON(w, statusCode,
		toPayload("success", false),
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
	return true
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidationError, service.CodeInvalidStatus:
		return http.StatusBadRequest
	case service.CodeInvalidTransition:
		return http.StatusConflict
	case service.CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
