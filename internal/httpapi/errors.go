package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// handleBoardError maps canvas errors to HTTP status codes
func handleBoardError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, canvas.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, canvas.ErrCycle):
		writeError(w, http.StatusConflict, "cycle", err)
	case errors.Is(err, canvas.ErrOutOfScope):
		writeError(w, http.StatusConflict, "out_of_scope", err)
	case errors.Is(err, canvas.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", err)
	case errors.Is(err, canvas.ErrInvalidDraft):
		writeError(w, http.StatusBadRequest, "invalid_draft", err)
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid_request", err)
	default:
		slog.Error("internal server error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}
