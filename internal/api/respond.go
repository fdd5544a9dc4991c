package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{Error: message})
}

// respondFailure maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a generic 500.
func respondFailure(w http.ResponseWriter, logger *slog.Logger, err error, action string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "webhook not found")
	case errors.Is(err, domain.ErrInactive):
		respondError(w, http.StatusConflict, "webhook is inactive")
	default:
		logger.Error("request failed", "action", action, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// queryInt reads a positive integer query parameter, falling back when it is
// absent or malformed.
func queryInt(r *http.Request, key string, fallback int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
