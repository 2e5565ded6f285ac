package utils

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Responder writes JSON responses and reports failures on its logger.
type Responder struct {
	logger *slog.Logger
}

func NewResponder(logger *slog.Logger) Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return Responder{logger: logger}
}

// JSON encodes v before touching w, so a value that cannot be encoded turns
// into a 500 instead of a truncated body.
func (r Responder) JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("httpapi: encode response", "status", status, "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody(status, "failed to encode response"))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		r.logger.Debug("httpapi: write response", "error", err)
	}
}

// Error writes the status text and msg. A non-nil cause is logged at error
// level for 5xx statuses and at warn otherwise; it never reaches the client.
func (r Responder) Error(w http.ResponseWriter, status int, msg string, cause error) {
	if cause != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		r.logger.Log(context.Background(), level, "httpapi: "+msg, "status", status, "error", cause)
	}
	r.JSON(w, status, errorBody(status, msg))
}

func errorBody(status int, msg string) map[string]string {
	return map[string]string{
		"error":   http.StatusText(status),
		"message": msg,
	}
}
