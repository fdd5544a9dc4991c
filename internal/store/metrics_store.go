package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
)

// DeliveryStats returns aggregated ledger statistics.
func (s *PostgresStore) DeliveryStats(ctx context.Context) (*domain.DeliveryStats, error) {
	var m domain.DeliveryStats

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'SUCCESS') AS success,
			COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
			COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM webhook_deliveries
	`).Scan(&m.TotalAttempts, &m.SuccessCount, &m.PendingCount, &m.FailedCount, &m.AvgDurationMs)
	if err != nil {
		return nil, fmt.Errorf("querying delivery stats: %w", err)
	}

	if m.TotalAttempts > 0 {
		m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalAttempts) * 100
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active = true) FROM webhooks
	`).Scan(&m.TotalWebhooks, &m.ActiveWebhooks)
	if err != nil {
		return nil, fmt.Errorf("querying webhook counts: %w", err)
	}

	return &m, nil
}
