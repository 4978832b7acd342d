// Package server defines shared response types and utility helpers that are
// reused across client, hub and handler logic.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// messageResponse is the JSON body of simple replies and errors.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to write response", zap.Error(err))
	}
}

func writeMessage(w http.ResponseWriter, log *zap.Logger, status int, msg string) {
	writeJSON(w, log, status, messageResponse{Message: msg})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
