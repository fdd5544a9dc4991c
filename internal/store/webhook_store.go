package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const webhookColumns = `id, name, url, events, secret, retry_count, is_active,
	last_triggered_at, last_success_at, last_failure_at, created_at, updated_at`

func scanWebhook(row pgx.Row, extra ...any) (*domain.Webhook, error) {
	var w domain.Webhook
	var events []string
	dest := []any{
		&w.ID, &w.Name, &w.URL, &events, &w.Secret, &w.RetryCount, &w.IsActive,
		&w.LastTriggeredAt, &w.LastSuccessAt, &w.LastFailureAt, &w.CreatedAt, &w.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	w.Events = domain.NewEventSet(events...)
	w.HasSecret = w.Secret != ""
	return &w, nil
}

func (s *PostgresStore) CreateWebhook(ctx context.Context, w domain.Webhook) (*domain.Webhook, error) {
	created, err := scanWebhook(s.pool.QueryRow(ctx, `
		INSERT INTO webhooks (id, name, url, events, secret, retry_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+webhookColumns,
		w.ID, w.Name, w.URL, w.Events.List(), w.Secret, w.RetryCount, w.IsActive, w.CreatedAt, w.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("inserting webhook: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetWebhook(ctx context.Context, id string) (*domain.Webhook, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	w, err := scanWebhook(s.pool.QueryRow(ctx, `
		SELECT `+webhookColumns+` FROM webhooks WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying webhook: %w", err)
	}
	return w, nil
}

// ListWebhooks returns every webhook newest first with its ledger size.
func (s *PostgresStore) ListWebhooks(ctx context.Context) ([]domain.WebhookWithCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookColumns+`,
			(SELECT COUNT(*) FROM webhook_deliveries d WHERE d.webhook_id = webhooks.id)
		FROM webhooks
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := []domain.WebhookWithCount{}
	for rows.Next() {
		var count int
		w, err := scanWebhook(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		webhooks = append(webhooks, domain.WebhookWithCount{Webhook: *w, DeliveryCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhooks: %w", err)
	}
	return webhooks, nil
}

func (s *PostgresStore) UpdateWebhook(ctx context.Context, id string, req domain.UpdateWebhookRequest) (*domain.Webhook, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}

	setClauses, args := webhookUpdateSet(req)
	if len(setClauses) == 0 {
		return s.GetWebhook(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	query := fmt.Sprintf(`
		UPDATE webhooks SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(setClauses, ", "), len(args)+1, webhookColumns)
	args = append(args, id)

	w, err := scanWebhook(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("updating webhook: %w", err)
	}
	return w, nil
}

// webhookUpdateSet turns the fields present in req into numbered SET
// clauses and their arguments, starting at $1.
func webhookUpdateSet(req domain.UpdateWebhookRequest) ([]string, []any) {
	var (
		clauses []string
		args    []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.Name != nil {
		set("name", *req.Name)
	}
	if req.URL != nil {
		set("url", *req.URL)
	}
	if req.Events != nil {
		set("events", domain.NewEventSet(*req.Events...).List())
	}
	if req.Secret != nil {
		set("secret", *req.Secret)
	}
	if req.IsActive != nil {
		set("is_active", *req.IsActive)
	}
	if req.RetryCount != nil {
		set("retry_count", *req.RetryCount)
	}
	return clauses, args
}

// DeleteWebhook removes the registry row. Ledger rows are left in place.
func (s *PostgresStore) DeleteWebhook(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	result, err := s.pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListActiveForEvent finds active webhooks whose event set contains eventType.
func (s *PostgresStore) ListActiveForEvent(ctx context.Context, eventType string) ([]domain.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE is_active = true AND $1 = ANY(events)
		ORDER BY created_at
	`, eventType)
	if err != nil {
		return nil, fmt.Errorf("finding webhooks for event: %w", err)
	}
	defer rows.Close()

	var webhooks []domain.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		webhooks = append(webhooks, *w)
	}
	return webhooks, rows.Err()
}

func (s *PostgresStore) MarkDelivered(ctx context.Context, id string, success bool, at time.Time) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	column := "last_failure_at"
	if success {
		column = "last_success_at"
	}
	result, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE webhooks SET last_triggered_at = $2, %s = $2
		WHERE id = $1
	`, column), id, at)
	if err != nil {
		return fmt.Errorf("updating webhook health: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
