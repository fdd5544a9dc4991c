package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/Priya8975/fitcenter-webhooks/internal/engine"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Dispatcher starts delivery pipelines.
type Dispatcher interface {
	Trigger(ctx context.Context, eventType string, data any) (int, error)
	Test(ctx context.Context, webhookID string) error
}

type WebhookHandler struct {
	store        store.Store
	dispatcher   Dispatcher
	health       *engine.HealthTracker
	limiter      engine.Limiter
	defaultRetry int
	logger       *slog.Logger
}

func NewWebhookHandler(s store.Store, d Dispatcher, health *engine.HealthTracker, limiter engine.Limiter, defaultRetry int, logger *slog.Logger) *WebhookHandler {
	if defaultRetry <= 0 {
		defaultRetry = domain.DefaultRetryCount
	}
	return &WebhookHandler{
		store:        s,
		dispatcher:   d,
		health:       health,
		limiter:      limiter,
		defaultRetry: defaultRetry,
		logger:       logger,
	}
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.store.ListWebhooks(r.Context())
	if err != nil {
		respondFailure(w, h.logger, err, "list webhooks")
		return
	}
	respondJSON(w, http.StatusOK, webhooks)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wh, err := h.store.GetWebhook(r.Context(), id)
	if err != nil {
		respondFailure(w, h.logger, err, "get webhook")
		return
	}
	count, err := h.store.CountDeliveries(r.Context(), id)
	if err != nil {
		respondFailure(w, h.logger, err, "count deliveries")
		return
	}

	respondJSON(w, http.StatusOK, domain.WebhookWithCount{Webhook: *wh, DeliveryCount: count})
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWebhookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := domain.ValidateCreate(req); err != nil {
		respondFailure(w, h.logger, err, "create webhook")
		return
	}
	if req.RetryCount == nil {
		n := h.defaultRetry
		req.RetryCount = &n
	}

	wh, err := h.store.CreateWebhook(r.Context(), domain.NewWebhook(uuid.NewString(), req, time.Now().UTC()))
	if err != nil {
		respondFailure(w, h.logger, err, "create webhook")
		return
	}

	h.logger.Info("webhook created", "webhook_id", wh.ID, "events", wh.Events.List())
	respondJSON(w, http.StatusCreated, wh)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateWebhookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := domain.ValidateUpdate(req); err != nil {
		respondFailure(w, h.logger, err, "update webhook")
		return
	}

	wh, err := h.store.UpdateWebhook(r.Context(), id, req)
	if err != nil {
		respondFailure(w, h.logger, err, "update webhook")
		return
	}
	respondJSON(w, http.StatusOK, wh)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteWebhook(r.Context(), id); err != nil {
		respondFailure(w, h.logger, err, "delete webhook")
		return
	}
	h.health.Forget(r.Context(), id)

	h.logger.Info("webhook deleted", "webhook_id", id)
	respondJSON(w, http.StatusOK, nil)
}

// History pages through the webhook's ledger entries, newest first.
func (h *WebhookHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetWebhook(r.Context(), id); err != nil {
		respondFailure(w, h.logger, err, "get webhook")
		return
	}

	page, limit := domain.NormalizePage(queryInt(r, "page", 1), queryInt(r, "limit", domain.DefaultPageSize))
	records, total, err := h.store.ListWebhookDeliveries(r.Context(), id, page, limit)
	if err != nil {
		respondFailure(w, h.logger, err, "list deliveries")
		return
	}

	respondJSON(w, http.StatusOK, domain.NewDeliveryPage(records, total, page, limit))
}

type testResponse struct {
	Message   string `json:"message"`
	WebhookID string `json:"webhook_id"`
}

// Test queues a webhook.test delivery and returns before it runs.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wh, err := h.store.GetWebhook(r.Context(), id)
	if err != nil {
		respondFailure(w, h.logger, err, "get webhook")
		return
	}
	if !wh.IsActive {
		respondFailure(w, h.logger, domain.ErrInactive, "send test delivery")
		return
	}
	if h.limiter != nil && !h.limiter.Allow(r.Context(), "test:"+id) {
		respondError(w, http.StatusTooManyRequests, "too many test deliveries, try again later")
		return
	}

	if err := h.dispatcher.Test(r.Context(), id); err != nil {
		respondFailure(w, h.logger, err, "send test delivery")
		return
	}

	respondJSON(w, http.StatusAccepted, testResponse{
		Message:   "test delivery queued",
		WebhookID: id,
	})
}

type webhookHealth struct {
	WebhookID       string             `json:"webhook_id"`
	Name            string             `json:"name"`
	URL             string             `json:"url"`
	IsActive        bool               `json:"is_active"`
	LastTriggeredAt *time.Time         `json:"last_triggered_at"`
	LastSuccessAt   *time.Time         `json:"last_success_at"`
	LastFailureAt   *time.Time         `json:"last_failure_at"`
	Health          engine.HealthState `json:"health"`
}

func (h *WebhookHandler) healthOf(ctx context.Context, wh domain.Webhook) webhookHealth {
	return webhookHealth{
		WebhookID:       wh.ID,
		Name:            wh.Name,
		URL:             wh.URL,
		IsActive:        wh.IsActive,
		LastTriggeredAt: wh.LastTriggeredAt,
		LastSuccessAt:   wh.LastSuccessAt,
		LastFailureAt:   wh.LastFailureAt,
		Health:          h.health.GetState(ctx, wh.ID),
	}
}

func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	wh, err := h.store.GetWebhook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, h.logger, err, "get webhook")
		return
	}
	respondJSON(w, http.StatusOK, h.healthOf(r.Context(), *wh))
}
