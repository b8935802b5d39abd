package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// errResponse is the uniform error body. Retryable marks outcomes like an
// exhausted recipient pool, where the client should offer another attempt
// rather than treat the call as failed.
type errResponse struct {
	Error     string `json:"error" validate:"required"`
	Retryable bool   `json:"retryable,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func retryableBody(msg string) errResponse {
	return errResponse{Error: msg, Retryable: true}
}
