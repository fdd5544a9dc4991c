package domain

import (
	"time"
)

// DefaultRetryCount is the attempt budget for a webhook that does not set one.
const DefaultRetryCount = 3

// MaxRetryCount bounds retry_count on create and update.
const MaxRetryCount = 10

// Webhook is a registered subscriber endpoint and the event types it wants.
type Webhook struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	Events          EventSet   `json:"events"`
	Secret          string     `json:"-"`
	HasSecret       bool       `json:"has_secret"`
	RetryCount      int        `json:"retry_count"`
	IsActive        bool       `json:"is_active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	LastSuccessAt   *time.Time `json:"last_success_at"`
	LastFailureAt   *time.Time `json:"last_failure_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MaxAttempts returns the attempt budget for a single delivery.
func (w *Webhook) MaxAttempts() int {
	if w.RetryCount <= 0 {
		return DefaultRetryCount
	}
	return w.RetryCount
}

// WebhookWithCount is a webhook plus the number of ledger entries recorded for it.
type WebhookWithCount struct {
	Webhook
	DeliveryCount int `json:"delivery_count"`
}

type CreateWebhookRequest struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Events     []string `json:"events"`
	Secret     string   `json:"secret,omitempty"`
	IsActive   *bool    `json:"is_active,omitempty"`
	RetryCount *int     `json:"retry_count,omitempty"`
}

type UpdateWebhookRequest struct {
	Name       *string   `json:"name,omitempty"`
	URL        *string   `json:"url,omitempty"`
	Events     *[]string `json:"events,omitempty"`
	Secret     *string   `json:"secret,omitempty"`
	IsActive   *bool     `json:"is_active,omitempty"`
	RetryCount *int      `json:"retry_count,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r UpdateWebhookRequest) Empty() bool {
	return r.Name == nil && r.URL == nil && r.Events == nil &&
		r.Secret == nil && r.IsActive == nil && r.RetryCount == nil
}

// NewWebhook builds a webhook from a validated create request.
func NewWebhook(id string, req CreateWebhookRequest, now time.Time) Webhook {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	retries := DefaultRetryCount
	if req.RetryCount != nil {
		retries = *req.RetryCount
	}
	return Webhook{
		ID:         id,
		Name:       req.Name,
		URL:        req.URL,
		Events:     NewEventSet(req.Events...),
		Secret:     req.Secret,
		HasSecret:  req.Secret != "",
		RetryCount: retries,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Apply merges a partial update into w.
func (w *Webhook) Apply(req UpdateWebhookRequest, now time.Time) {
	if req.Name != nil {
		w.Name = *req.Name
	}
	if req.URL != nil {
		w.URL = *req.URL
	}
	if req.Events != nil {
		w.Events = NewEventSet(*req.Events...)
	}
	if req.Secret != nil {
		w.Secret = *req.Secret
		w.HasSecret = w.Secret != ""
	}
	if req.IsActive != nil {
		w.IsActive = *req.IsActive
	}
	if req.RetryCount != nil {
		w.RetryCount = *req.RetryCount
	}
	w.UpdatedAt = now
}
