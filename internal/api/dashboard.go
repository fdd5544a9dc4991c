package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
)

// PipelineCounter reports delivery pipelines currently running.
type PipelineCounter interface {
	InFlight() int
}

// ClientCounter reports connected live-feed clients.
type ClientCounter interface {
	ClientCount() int
}

type DashboardHandler struct {
	store     store.Store
	pipelines PipelineCounter
	clients   ClientCounter
	webhooks  *WebhookHandler
	logger    *slog.Logger
}

func NewDashboardHandler(s store.Store, pipelines PipelineCounter, clients ClientCounter, webhooks *WebhookHandler, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{store: s, pipelines: pipelines, clients: clients, webhooks: webhooks, logger: logger}
}

type statsResponse struct {
	domain.DeliveryStats
	PipelinesInFlight int `json:"pipelines_in_flight"`
	WebSocketClients  int `json:"websocket_clients"`
}

// Stats returns aggregated ledger numbers for the admin dashboard.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DeliveryStats(r.Context())
	if err != nil {
		respondFailure(w, h.logger, err, "load delivery stats")
		return
	}

	resp := statsResponse{DeliveryStats: *stats}
	if h.pipelines != nil {
		resp.PipelinesInFlight = h.pipelines.InFlight()
	}
	if h.clients != nil {
		resp.WebSocketClients = h.clients.ClientCount()
	}
	respondJSON(w, http.StatusOK, resp)
}

// WebhookHealth lists the health of every webhook, newest first.
func (h *DashboardHandler) WebhookHealth(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.store.ListWebhooks(r.Context())
	if err != nil {
		respondFailure(w, h.logger, err, "list webhooks")
		return
	}

	result := make([]webhookHealth, 0, len(webhooks))
	for _, wh := range webhooks {
		result = append(result, h.webhooks.healthOf(r.Context(), wh.Webhook))
	}
	respondJSON(w, http.StatusOK, result)
}
