package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type EventHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewEventHandler(d Dispatcher, logger *slog.Logger) *EventHandler {
	return &EventHandler{dispatcher: d, logger: logger}
}

type triggerRequest struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type triggerResponse struct {
	EventType         string `json:"event_type"`
	DeliveriesStarted int    `json:"deliveries_started"`
}

// Trigger fans a domain event out to subscribed webhooks. The response only
// says how many deliveries started, never how they went.
func (h *EventHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.EventType = strings.TrimSpace(req.EventType)
	if req.EventType == "" {
		respondError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}

	started, err := h.dispatcher.Trigger(r.Context(), req.EventType, data)
	if err != nil {
		respondFailure(w, h.logger, err, "dispatch event")
		return
	}

	respondJSON(w, http.StatusAccepted, triggerResponse{
		EventType:         req.EventType,
		DeliveriesStarted: started,
	})
}
