package middleware

import (
	"encoding/json"
	"net/http"

	"pr-review-service/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents the OpenAPI error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents the error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteErrorResponse writes an error response in OpenAPI format.
func WriteErrorResponse(w http.ResponseWriter, err error, logger *zap.Logger) {
	statusCode := domain.HTTPStatus(err)
	kind := domain.KindOf(err)

	if statusCode == http.StatusInternalServerError {
		logger.Error("Internal server error",
			zap.Error(err),
			zap.Int("status", statusCode),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:    string(kind),
			Message: err.Error(),
		},
	}

	if kind == "" {
		response.Error.Code = "INTERNAL_ERROR"
		response.Error.Message = "internal server error"
	}

	_ = json.NewEncoder(w).Encode(response)
}
