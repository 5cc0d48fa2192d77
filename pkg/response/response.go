package response

import (
	"encoding/json"
	"net/http"

	apperrors "hotpot-chat/pkg/errors"
	"hotpot-chat/pkg/logger"
)

// Response is the uniform envelope returned by every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// JSON writes an envelope with the given status.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Success: status >= 200 && status < 300,
		Message: message,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, message, data)
}

func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, message, data)
}

func BadRequest(w http.ResponseWriter, message string, details any) {
	JSON(w, http.StatusBadRequest, message, details)
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSON(w, http.StatusUnauthorized, message, nil)
}

// Error renders err through the application error taxonomy. Unexpected
// errors are logged with their internal cause and rendered generically.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.FromError(err)

	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error().
			Err(appErr.Internal).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(appErr.Message)
		JSON(w, appErr.StatusCode, apperrors.ErrUnexpected.Message, nil)
		return
	}

	JSON(w, appErr.StatusCode, appErr.Message, nil)
}
