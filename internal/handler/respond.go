package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
	"github.com/pavelanni/adaptquiz/internal/llm"
	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/quizgen"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError sends the error envelope with a localized message. The
// underlying error is included only when debug errors are enabled.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msgID string, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	resp := model.ErrorResponse{Error: appI18n.T(r.Context(), msgID)}
	if h.config.DebugErrors && err != nil {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}

// generateStatus maps a generation error to an HTTP status and message ID.
func generateStatus(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "GenerationTimeout"
	case errors.Is(err, llm.ErrUpstreamAuth):
		return http.StatusUnauthorized, "UpstreamAuth"
	case errors.Is(err, llm.ErrUpstreamRateLimited):
		return http.StatusTooManyRequests, "UpstreamRateLimited"
	case errors.Is(err, quizgen.ErrNoValidQuestions):
		return http.StatusUnprocessableEntity, "NoValidQuestions"
	}
	return http.StatusInternalServerError, "GenerationFailed"
}
