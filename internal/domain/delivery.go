package domain

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// Ledger entry statuses. PENDING marks a non-final failed attempt.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// MaxResponseBody caps the response text stored per attempt.
const MaxResponseBody = 1024

// Delivery is one attempt recorded in the delivery history ledger.
type Delivery struct {
	ID           string          `json:"id"`
	WebhookID    string          `json:"webhook_id"`
	DeliveryID   string          `json:"delivery_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	ResponseCode *int            `json:"response_code"`
	ResponseBody string          `json:"response_body"`
	Attempts     int             `json:"attempts"`
	DurationMs   int64           `json:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DeliveryFilter narrows a ledger query. Empty fields match everything.
type DeliveryFilter struct {
	WebhookID  string
	DeliveryID string
	EventType  string
	Status     string
	Limit      int
}

// DeliveryPage is one page of a webhook's delivery history.
type DeliveryPage struct {
	Events     []Delivery `json:"events"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// DeliveryStats aggregates the ledger.
type DeliveryStats struct {
	TotalAttempts  int     `json:"total_attempts"`
	SuccessCount   int     `json:"success_count"`
	PendingCount   int     `json:"pending_count"`
	FailedCount    int     `json:"failed_count"`
	SuccessRate    float64 `json:"success_rate"`
	AvgDurationMs  float64 `json:"avg_duration_ms"`
	ActiveWebhooks int     `json:"active_webhooks"`
	TotalWebhooks  int     `json:"total_webhooks"`
}

// TruncateBody makes s storable as text and clips it to at most
// MaxResponseBody bytes without splitting a character. Invalid UTF-8 becomes
// U+FFFD and NUL bytes are dropped, since Postgres TEXT accepts neither.
func TruncateBody(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.ReplaceAll(s, "\x00", "")
	if len(s) <= MaxResponseBody {
		return s
	}
	cut := MaxResponseBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
