package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/Priya8975/fitcenter-webhooks/internal/metrics"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
)

// Dispatcher fans a domain event out to every matching webhook, starting one
// delivery pipeline per webhook on the pool.
type Dispatcher struct {
	webhooks  store.WebhookStore
	scheduler *Scheduler
	pool      *Pool
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatcher(webhooks store.WebhookStore, scheduler *Scheduler, pool *Pool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks:  webhooks,
		scheduler: scheduler,
		pool:      pool,
		logger:    logger,
		now:       time.Now,
	}
}

// Trigger starts a delivery for each active webhook subscribed to eventType
// and returns how many were started. It does not wait for any of them.
func (d *Dispatcher) Trigger(ctx context.Context, eventType string, data any) (int, error) {
	targets, err := d.webhooks.ListActiveForEvent(ctx, eventType)
	if err != nil {
		return 0, fmt.Errorf("listing webhooks for %s: %w", eventType, err)
	}
	metrics.EventsTriggered.WithLabelValues(eventType).Inc()

	if len(targets) == 0 {
		d.logger.Debug("no webhooks subscribed", "event_type", eventType)
		return 0, nil
	}

	body, err := domain.EncodeEnvelope(eventType, data, d.now())
	if err != nil {
		return 0, fmt.Errorf("encoding %s envelope: %w", eventType, err)
	}

	for _, w := range targets {
		d.start(w, eventType, body)
	}

	d.logger.Info("event dispatched",
		"event_type", eventType,
		"webhooks", len(targets),
	)
	return len(targets), nil
}

// Test sends a webhook.test delivery to one webhook regardless of its
// subscribed event types.
func (d *Dispatcher) Test(ctx context.Context, webhookID string) error {
	w, err := d.webhooks.GetWebhook(ctx, webhookID)
	if err != nil {
		return err
	}
	if !w.IsActive {
		return domain.ErrInactive
	}

	now := d.now()
	body, err := domain.EncodeEnvelope(domain.TestEventType, map[string]any{
		"message":    "This is a test webhook delivery",
		"webhook_id": w.ID,
		"sent_at":    now.UTC().Format(time.RFC3339),
	}, now)
	if err != nil {
		return fmt.Errorf("encoding test envelope: %w", err)
	}

	d.start(*w, domain.TestEventType, body)
	return nil
}

func (d *Dispatcher) start(w domain.Webhook, eventType string, body []byte) {
	d.pool.Go(eventType+":"+w.ID, func(ctx context.Context) {
		d.scheduler.Run(ctx, w, eventType, body)
	})
}
