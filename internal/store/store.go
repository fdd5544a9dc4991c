package store

import (
	"context"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
)

// WebhookStore is the webhook registry.
type WebhookStore interface {
	CreateWebhook(ctx context.Context, w domain.Webhook) (*domain.Webhook, error)
	GetWebhook(ctx context.Context, id string) (*domain.Webhook, error)
	ListWebhooks(ctx context.Context) ([]domain.WebhookWithCount, error)
	UpdateWebhook(ctx context.Context, id string, req domain.UpdateWebhookRequest) (*domain.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
	ListActiveForEvent(ctx context.Context, eventType string) ([]domain.Webhook, error)
	// MarkDelivered stamps last_triggered_at plus last_success_at or
	// last_failure_at once a delivery pipeline reaches a terminal state.
	MarkDelivered(ctx context.Context, id string, success bool, at time.Time) error
}

// DeliveryStore is the append-only delivery history ledger.
type DeliveryStore interface {
	AppendDelivery(ctx context.Context, d domain.Delivery) error
	ListWebhookDeliveries(ctx context.Context, webhookID string, page, limit int) ([]domain.Delivery, int, error)
	CountDeliveries(ctx context.Context, webhookID string) (int, error)
	QueryDeliveries(ctx context.Context, f domain.DeliveryFilter) ([]domain.Delivery, error)
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	DeliveryStats(ctx context.Context) (*domain.DeliveryStats, error)
}

// Store is everything the service persists.
type Store interface {
	WebhookStore
	DeliveryStore
	Close()
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
