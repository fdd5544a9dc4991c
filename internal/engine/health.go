package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Health states
const (
	HealthUnknown  = "unknown"
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthFailing  = "failing"
)

// HealthTracker keeps a per-webhook consecutive-failure counter in Redis.
// It only observes delivery outcomes; it never blocks an attempt.
//
// - healthy: last attempt succeeded.
// - degraded: at least one consecutive failure.
// - failing: consecutive failures reached the threshold.
//
// A nil tracker, or one without a Redis client, is a no-op.
type HealthTracker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
}

// HealthState is the current health of a webhook endpoint.
type HealthState struct {
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastStatusCode      int    `json:"last_status_code,omitempty"`
	LastAttemptAt       string `json:"last_attempt_at,omitempty"`
	LastFailedAt        string `json:"last_failed_at,omitempty"`
}

func NewHealthTracker(redisClient *redis.Client, failureThreshold int, logger *slog.Logger) *HealthTracker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	return &HealthTracker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: failureThreshold,
	}
}

func healthKey(webhookID string) string {
	return fmt.Sprintf("wh:health:%s", webhookID)
}

func (h *HealthTracker) enabled() bool {
	return h != nil && h.redisClient != nil
}

// RecordSuccess resets the failure counter.
func (h *HealthTracker) RecordSuccess(ctx context.Context, webhookID string, statusCode int) {
	if !h.enabled() {
		return
	}
	key := healthKey(webhookID)

	prev, _ := h.redisClient.HGet(ctx, key, "failures").Int()

	err := h.redisClient.HSet(ctx, key,
		"failures", 0,
		"last_status", statusCode,
		"last_attempt_at", time.Now().Unix(),
	).Err()
	if err != nil {
		h.logger.Error("failed to record webhook success", "error", err, "webhook_id", webhookID)
		return
	}

	if prev >= h.failureThreshold {
		h.logger.Info("webhook endpoint recovered", "webhook_id", webhookID, "previous_failures", prev)
	}
}

// RecordFailure increments the failure counter. statusCode is 0 when no
// response was received.
func (h *HealthTracker) RecordFailure(ctx context.Context, webhookID string, statusCode int) {
	if !h.enabled() {
		return
	}
	key := healthKey(webhookID)

	failures, err := h.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		h.logger.Error("failed to record webhook failure", "error", err, "webhook_id", webhookID)
		return
	}

	now := time.Now().Unix()
	h.redisClient.HSet(ctx, key,
		"last_status", statusCode,
		"last_attempt_at", now,
		"last_failed_at", now,
	)

	if failures == int64(h.failureThreshold) {
		h.logger.Warn("webhook endpoint failing",
			"webhook_id", webhookID,
			"failures", failures,
			"threshold", h.failureThreshold,
		)
	}
}

// AttemptRecorded feeds a ledger entry into the tracker. PENDING and FAILED
// entries both count as failed attempts.
func (h *HealthTracker) AttemptRecorded(ctx context.Context, d domain.Delivery) {
	code := 0
	if d.ResponseCode != nil {
		code = *d.ResponseCode
	}
	if d.Status == domain.StatusSuccess {
		h.RecordSuccess(ctx, d.WebhookID, code)
		return
	}
	h.RecordFailure(ctx, d.WebhookID, code)
}

// GetState returns the current health of a webhook endpoint.
func (h *HealthTracker) GetState(ctx context.Context, webhookID string) HealthState {
	if !h.enabled() {
		return HealthState{State: HealthUnknown}
	}

	data, err := h.redisClient.HGetAll(ctx, healthKey(webhookID)).Result()
	if err != nil || len(data) == 0 {
		return HealthState{State: HealthUnknown}
	}

	failures, _ := strconv.Atoi(data["failures"])
	lastStatus, _ := strconv.Atoi(data["last_status"])

	state := HealthHealthy
	switch {
	case failures >= h.failureThreshold:
		state = HealthFailing
	case failures > 0:
		state = HealthDegraded
	}

	return HealthState{
		State:               state,
		ConsecutiveFailures: failures,
		LastStatusCode:      lastStatus,
		LastAttemptAt:       formatUnix(data["last_attempt_at"]),
		LastFailedAt:        formatUnix(data["last_failed_at"]),
	}
}

// Forget drops the health record, used when a webhook is deleted.
func (h *HealthTracker) Forget(ctx context.Context, webhookID string) {
	if !h.enabled() {
		return
	}
	h.redisClient.Del(ctx, healthKey(webhookID))
}

func formatUnix(s string) string {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
