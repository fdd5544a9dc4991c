package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 500
)

type DeliveryHandler struct {
	store  store.DeliveryStore
	logger *slog.Logger
}

func NewDeliveryHandler(s store.DeliveryStore, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{store: s, logger: logger}
}

// List searches the whole ledger, including entries of deleted webhooks.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := q.Get("status")
	switch status {
	case "", domain.StatusPending, domain.StatusSuccess, domain.StatusFailed:
	default:
		respondError(w, http.StatusBadRequest, "status must be PENDING, SUCCESS or FAILED")
		return
	}

	limit := queryInt(r, "limit", defaultDeliveryLimit)
	if limit > maxDeliveryLimit {
		limit = maxDeliveryLimit
	}

	records, err := h.store.QueryDeliveries(r.Context(), domain.DeliveryFilter{
		WebhookID:  q.Get("webhook_id"),
		DeliveryID: q.Get("delivery_id"),
		EventType:  q.Get("event_type"),
		Status:     status,
		Limit:      limit,
	})
	if err != nil {
		respondFailure(w, h.logger, err, "list deliveries")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		respondError(w, http.StatusNotFound, "delivery not found")
		return
	}
	if err != nil {
		respondFailure(w, h.logger, err, "get delivery")
		return
	}

	respondJSON(w, http.StatusOK, d)
}
