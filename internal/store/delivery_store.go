package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `id, webhook_id, delivery_id, event_type, payload, status,
	response_code, response_body, attempts, duration_ms, created_at`

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	var payload string
	err := row.Scan(
		&d.ID, &d.WebhookID, &d.DeliveryID, &d.EventType, &payload, &d.Status,
		&d.ResponseCode, &d.ResponseBody, &d.Attempts, &d.DurationMs, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Payload = json.RawMessage(payload)
	return &d, nil
}

// AppendDelivery inserts one attempt into the ledger. Rows are never updated.
func (s *PostgresStore) AppendDelivery(ctx context.Context, d domain.Delivery) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries (id, webhook_id, delivery_id, event_type, payload, status, response_code, response_body, attempts, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, d.ID, d.WebhookID, d.DeliveryID, d.EventType, string(d.Payload), d.Status,
		d.ResponseCode, d.ResponseBody, d.Attempts, d.DurationMs, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}
	return nil
}

// ListWebhookDeliveries returns one page of a webhook's history, newest first,
// and the total row count for that webhook.
func (s *PostgresStore) ListWebhookDeliveries(ctx context.Context, webhookID string, page, limit int) ([]domain.Delivery, int, error) {
	page, limit = domain.NormalizePage(page, limit)
	if !validID(webhookID) {
		return []domain.Delivery{}, 0, nil
	}

	total, err := s.CountDeliveries(ctx, webhookID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE webhook_id = $1
		ORDER BY created_at DESC, attempts DESC
		LIMIT $2 OFFSET $3
	`, webhookID, limit, domain.Offset(page, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	deliveries, err := collectDeliveries(rows)
	if err != nil {
		return nil, 0, err
	}
	return deliveries, total, nil
}

func (s *PostgresStore) CountDeliveries(ctx context.Context, webhookID string) (int, error) {
	if !validID(webhookID) {
		return 0, nil
	}
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM webhook_deliveries WHERE webhook_id = $1
	`, webhookID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("counting deliveries: %w", err)
	}
	return total, nil
}

// QueryDeliveries browses the ledger across webhooks with optional filters.
func (s *PostgresStore) QueryDeliveries(ctx context.Context, f domain.DeliveryFilter) ([]domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries`
	args := []any{}
	argIdx := 1
	conditions := []string{}

	add := func(column, value string) {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if f.WebhookID != "" {
		if !validID(f.WebhookID) {
			return []domain.Delivery{}, nil
		}
		add("webhook_id", f.WebhookID)
	}
	if f.DeliveryID != "" {
		if !validID(f.DeliveryID) {
			return []domain.Delivery{}, nil
		}
		add("delivery_id", f.DeliveryID)
	}
	if f.EventType != "" {
		add("event_type", f.EventType)
	}
	if f.Status != "" {
		add("status", f.Status)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, attempts DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

func (s *PostgresStore) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	d, err := scanDelivery(s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying delivery: %w", err)
	}
	return d, nil
}

func collectDeliveries(rows pgx.Rows) ([]domain.Delivery, error) {
	deliveries := []domain.Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}
	return deliveries, nil
}
