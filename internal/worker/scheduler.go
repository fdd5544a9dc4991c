package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/Priya8975/fitcenter-webhooks/internal/engine"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
	"github.com/google/uuid"
)

// Observer is told about every ledger entry the scheduler writes.
type Observer interface {
	AttemptRecorded(ctx context.Context, d domain.Delivery)
}

// Scheduler runs the attempt loop for one delivery: execute, record, back off,
// repeat until success or the webhook's retry budget is spent.
type Scheduler struct {
	webhooks  store.WebhookStore
	ledger    store.DeliveryStore
	executor  *Executor
	backoff   engine.Backoff
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

func NewScheduler(webhooks store.WebhookStore, ledger store.DeliveryStore, executor *Executor, backoff engine.Backoff, logger *slog.Logger, observers ...Observer) *Scheduler {
	return &Scheduler{
		webhooks:  webhooks,
		ledger:    ledger,
		executor:  executor,
		backoff:   backoff,
		observers: observers,
		logger:    logger,
		now:       time.Now,
	}
}

// Run delivers body to w, retrying on failure. It returns once the delivery
// reaches SUCCESS or FAILED, the ledger rejects a write, or ctx is cancelled
// during a backoff wait.
func (s *Scheduler) Run(ctx context.Context, w domain.Webhook, eventType string, body []byte) {
	deliveryID := uuid.NewString()
	maxAttempts := w.MaxAttempts()

	for attempt := 1; ; attempt++ {
		res := s.executor.Execute(ctx, Attempt{
			URL:        w.URL,
			Secret:     w.Secret,
			EventType:  eventType,
			DeliveryID: deliveryID,
			Number:     attempt,
			Body:       body,
		})

		if ctx.Err() != nil {
			s.logger.Info("shutdown interrupted delivery attempt",
				"webhook_id", w.ID,
				"delivery_id", deliveryID,
				"attempt", attempt,
			)
			return
		}

		status := domain.StatusPending
		switch {
		case res.OK():
			status = domain.StatusSuccess
		case attempt >= maxAttempts:
			status = domain.StatusFailed
		}

		entry := domain.Delivery{
			ID:           uuid.NewString(),
			WebhookID:    w.ID,
			DeliveryID:   deliveryID,
			EventType:    eventType,
			Payload:      json.RawMessage(body),
			Status:       status,
			ResponseCode: res.StatusCode,
			ResponseBody: res.Detail(),
			Attempts:     attempt,
			DurationMs:   res.Duration.Milliseconds(),
			CreatedAt:    s.now().UTC(),
		}

		if err := s.ledger.AppendDelivery(ctx, entry); err != nil {
			s.logger.Error("failed to record delivery attempt, abandoning delivery",
				"error", err,
				"webhook_id", w.ID,
				"delivery_id", deliveryID,
				"attempt", attempt,
			)
			return
		}
		s.notify(ctx, entry)

		switch status {
		case domain.StatusSuccess:
			s.logger.Info("delivery successful",
				"webhook_id", w.ID,
				"delivery_id", deliveryID,
				"event_type", eventType,
				"attempt", attempt,
				"status_code", *res.StatusCode,
				"duration_ms", entry.DurationMs,
			)
			s.markDelivered(ctx, w.ID, true, entry.CreatedAt)
			return
		case domain.StatusFailed:
			s.logger.Warn("delivery failed permanently",
				"webhook_id", w.ID,
				"delivery_id", deliveryID,
				"event_type", eventType,
				"attempts", attempt,
				"response", entry.ResponseBody,
			)
			s.markDelivered(ctx, w.ID, false, entry.CreatedAt)
			return
		}

		delay := s.backoff.Delay(attempt)
		s.logger.Info("delivery attempt failed, retrying",
			"webhook_id", w.ID,
			"delivery_id", deliveryID,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"retry_in", delay.String(),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("shutdown during backoff, delivery left pending",
				"webhook_id", w.ID,
				"delivery_id", deliveryID,
				"attempt", attempt,
			)
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) notify(ctx context.Context, d domain.Delivery) {
	for _, o := range s.observers {
		o.AttemptRecorded(ctx, d)
	}
}

func (s *Scheduler) markDelivered(ctx context.Context, webhookID string, success bool, at time.Time) {
	if err := s.webhooks.MarkDelivered(ctx, webhookID, success, at); err != nil {
		// The webhook may have been deleted while the delivery was in flight.
		s.logger.Warn("failed to update webhook delivery timestamps",
			"error", err,
			"webhook_id", webhookID,
		)
	}
}
