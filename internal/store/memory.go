package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
)

// MemoryStore keeps webhooks and the ledger in process memory. It backs
// local development when no DATABASE_URL is set, and the tests.
type MemoryStore struct {
	mu         sync.RWMutex
	webhooks   map[string]*domain.Webhook
	deliveries []domain.Delivery
}

func NewMemory() *MemoryStore {
	return &MemoryStore{webhooks: make(map[string]*domain.Webhook)}
}

func (m *MemoryStore) Close() {}

func (m *MemoryStore) CreateWebhook(_ context.Context, w domain.Webhook) (*domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneWebhook(w)
	m.webhooks[w.ID] = &stored
	out := cloneWebhook(stored)
	return &out, nil
}

func (m *MemoryStore) GetWebhook(_ context.Context, id string) (*domain.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.webhooks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneWebhook(*w)
	return &out, nil
}

func (m *MemoryStore) ListWebhooks(_ context.Context) ([]domain.WebhookWithCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, d := range m.deliveries {
		counts[d.WebhookID]++
	}

	out := make([]domain.WebhookWithCount, 0, len(m.webhooks))
	for _, w := range m.webhooks {
		out = append(out, domain.WebhookWithCount{Webhook: cloneWebhook(*w), DeliveryCount: counts[w.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateWebhook(_ context.Context, id string, req domain.UpdateWebhookRequest) (*domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !req.Empty() {
		w.Apply(req, time.Now().UTC())
	}
	out := cloneWebhook(*w)
	return &out, nil
}

func (m *MemoryStore) DeleteWebhook(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.webhooks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.webhooks, id)
	return nil
}

func (m *MemoryStore) ListActiveForEvent(_ context.Context, eventType string) ([]domain.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Webhook
	for _, w := range m.webhooks {
		if w.IsActive && w.Events.Contains(eventType) {
			out = append(out, cloneWebhook(*w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) MarkDelivered(_ context.Context, id string, success bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t := at
	w.LastTriggeredAt = &t
	if success {
		w.LastSuccessAt = &t
	} else {
		w.LastFailureAt = &t
	}
	return nil
}

func (m *MemoryStore) AppendDelivery(_ context.Context, d domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Payload = append([]byte(nil), d.Payload...)
	m.deliveries = append(m.deliveries, d)
	return nil
}

// newestFirst returns matching ledger rows ordered by created_at descending.
// Rows written in the same instant keep reverse insertion order.
func (m *MemoryStore) newestFirst(match func(domain.Delivery) bool) []domain.Delivery {
	var out []domain.Delivery
	for i := len(m.deliveries) - 1; i >= 0; i-- {
		if match(m.deliveries[i]) {
			out = append(out, m.deliveries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) ListWebhookDeliveries(_ context.Context, webhookID string, page, limit int) ([]domain.Delivery, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, limit = domain.NormalizePage(page, limit)

	all := m.newestFirst(func(d domain.Delivery) bool { return d.WebhookID == webhookID })
	total := len(all)
	start := domain.Offset(page, limit)
	if start >= total {
		return []domain.Delivery{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *MemoryStore) CountDeliveries(_ context.Context, webhookID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, d := range m.deliveries {
		if d.WebhookID == webhookID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) QueryDeliveries(_ context.Context, f domain.DeliveryFilter) ([]domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.newestFirst(func(d domain.Delivery) bool {
		return (f.WebhookID == "" || d.WebhookID == f.WebhookID) &&
			(f.DeliveryID == "" || d.DeliveryID == f.DeliveryID) &&
			(f.EventType == "" || d.EventType == f.EventType) &&
			(f.Status == "" || d.Status == f.Status)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	if out == nil {
		out = []domain.Delivery{}
	}
	return out, nil
}

func (m *MemoryStore) GetDelivery(_ context.Context, id string) (*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.deliveries {
		if d.ID == id {
			out := d
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemoryStore) DeliveryStats(_ context.Context) (*domain.DeliveryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s domain.DeliveryStats
	var totalMs int64
	for _, d := range m.deliveries {
		s.TotalAttempts++
		totalMs += d.DurationMs
		switch d.Status {
		case domain.StatusSuccess:
			s.SuccessCount++
		case domain.StatusPending:
			s.PendingCount++
		case domain.StatusFailed:
			s.FailedCount++
		}
	}
	if s.TotalAttempts > 0 {
		s.SuccessRate = float64(s.SuccessCount) / float64(s.TotalAttempts) * 100
		s.AvgDurationMs = float64(totalMs) / float64(s.TotalAttempts)
	}
	for _, w := range m.webhooks {
		s.TotalWebhooks++
		if w.IsActive {
			s.ActiveWebhooks++
		}
	}
	return &s, nil
}

func cloneWebhook(w domain.Webhook) domain.Webhook {
	w.Events = domain.NewEventSet(w.Events.List()...)
	w.LastTriggeredAt = cloneTime(w.LastTriggeredAt)
	w.LastSuccessAt = cloneTime(w.LastSuccessAt)
	w.LastFailureAt = cloneTime(w.LastFailureAt)
	return w
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
