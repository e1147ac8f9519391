package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/reggaepotato22/krugerr-brendt/internal/analytics"
	"github.com/reggaepotato22/krugerr-brendt/internal/imagestore"
	"github.com/reggaepotato22/krugerr-brendt/internal/service"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps service errors onto status codes. Validation
// messages are shown to the client; anything unexpected is logged and
// replaced by msg.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, analytics.ErrInvalidPreferences):
		writeError(w, http.StatusBadRequest, clientMessage(err))
	case errors.Is(err, service.ErrNotFound), errors.Is(err, imagestore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error(msg, append(attrs, "error", err)...)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// clientMessage drops the sentinel prefix from a wrapped validation error.
func clientMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{service.ErrValidation, analytics.ErrInvalidPreferences} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}

func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
