package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhooks_CRUD(t *testing.T) {
	a := newTestAPI(t, "")

	created := a.createWebhook(t, "https://crm.example.test/hooks", nil)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.DefaultRetryCount, created.RetryCount)
	assert.True(t, created.IsActive)
	assert.True(t, created.HasSecret)
	assert.Nil(t, created.Secret, "secret must never be echoed")

	var list []webhookJSON
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/webhooks", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].DeliveryCount)

	var updated webhookJSON
	status := a.do(t, http.MethodPut, "/api/v1/webhooks/"+created.ID, map[string]any{
		"name":      "billing",
		"events":    []string{"member.created", "payment.completed"},
		"is_active": false,
	}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "billing", updated.Name)
	assert.Equal(t, []string{"member.created", "payment.completed"}, updated.Events)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "https://crm.example.test/hooks", updated.URL)

	var got webhookJSON
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/webhooks/"+created.ID, nil, &got))
	assert.Equal(t, "billing", got.Name)

	var deleted any
	require.Equal(t, http.StatusOK, a.do(t, http.MethodDelete, "/api/v1/webhooks/"+created.ID, nil, &deleted))
	assert.Nil(t, deleted)

	var e errorJSON
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/v1/webhooks/"+created.ID, nil, &e))
	assert.Equal(t, "webhook not found", e.Error)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, "/api/v1/webhooks/"+created.ID, nil, nil))
}

func TestWebhooks_ListNewestFirst(t *testing.T) {
	a := newTestAPI(t, "")
	first := a.createWebhook(t, "https://a.example.test", nil)
	time.Sleep(2 * time.Millisecond)
	second := a.createWebhook(t, "https://b.example.test", nil)

	var list []webhookJSON
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/webhooks", nil, &list))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestWebhooks_Validation(t *testing.T) {
	a := newTestAPI(t, "")

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"name":`},
		{"missing name", map[string]any{"url": "https://x.test", "events": []string{"a"}}},
		{"bad url", map[string]any{"name": "x", "url": "not a url", "events": []string{"a"}}},
		{"ftp url", map[string]any{"name": "x", "url": "ftp://x.test", "events": []string{"a"}}},
		{"padded url", map[string]any{"name": "x", "url": " https://x.test/hook", "events": []string{"a"}}},
		{"no events", map[string]any{"name": "x", "url": "https://x.test", "events": []string{}}},
		{"retry too high", map[string]any{"name": "x", "url": "https://x.test", "events": []string{"a"}, "retry_count": 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorJSON
			assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/api/v1/webhooks", tt.body, &e))
			assert.NotEmpty(t, e.Error)
		})
	}

	wh := a.createWebhook(t, "https://x.test", nil)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPut, "/api/v1/webhooks/"+wh.ID, map[string]any{"url": "nope"}, nil))
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPut, "/api/v1/webhooks/"+wh.ID, map[string]any{"url": "https://x.test/hook "}, nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPut, "/api/v1/webhooks/"+uuid.NewString(), map[string]any{"name": "x"}, nil))
}

func TestWebhooks_History(t *testing.T) {
	a := newTestAPI(t, "")
	wh := a.createWebhook(t, "https://x.test", nil)

	base := time.Now().UTC()
	for i := 0; i < 25; i++ {
		require.NoError(t, a.store.AppendDelivery(context.Background(), domain.Delivery{
			ID:         uuid.NewString(),
			WebhookID:  wh.ID,
			DeliveryID: uuid.NewString(),
			EventType:  "payment.completed",
			Payload:    []byte(`{}`),
			Status:     domain.StatusSuccess,
			Attempts:   1,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	var page domain.DeliveryPage
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/webhooks/"+wh.ID+"/events?page=2&limit=10", nil, &page))
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Events, 10)
	assert.True(t, page.Events[0].CreatedAt.After(page.Events[9].CreatedAt))

	var got webhookJSON
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/webhooks/"+wh.ID, nil, &got))
	assert.Equal(t, 25, got.DeliveryCount)

	// History survives delete, but only through the global ledger query.
	require.Equal(t, http.StatusOK, a.do(t, http.MethodDelete, "/api/v1/webhooks/"+wh.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/v1/webhooks/"+wh.ID+"/events", nil, nil))

	var rows []domain.Delivery
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/deliveries?limit=100&webhook_id="+wh.ID, nil, &rows))
	assert.Len(t, rows, 25)
}

func TestWebhooks_TestDelivery(t *testing.T) {
	a := newTestAPI(t, "")
	srv := receiver(t, http.StatusOK)

	active := a.createWebhook(t, srv.URL, nil)
	inactive := a.createWebhook(t, srv.URL, map[string]any{"is_active": false})

	var ack testResponse
	require.Equal(t, http.StatusAccepted, a.do(t, http.MethodPost, "/api/v1/webhooks/"+active.ID+"/test", nil, &ack))
	assert.Equal(t, active.ID, ack.WebhookID)
	a.pool.Wait()

	rows, err := a.store.QueryDeliveries(context.Background(), domain.DeliveryFilter{WebhookID: active.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TestEventType, rows[0].EventType)
	assert.Equal(t, domain.StatusSuccess, rows[0].Status)

	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, "/api/v1/webhooks/"+inactive.ID+"/test", nil, nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, "/api/v1/webhooks/"+uuid.NewString()+"/test", nil, nil))

	// The limiter allows two test deliveries per minute per webhook.
	assert.Equal(t, http.StatusAccepted, a.do(t, http.MethodPost, "/api/v1/webhooks/"+active.ID+"/test", nil, nil))
	assert.Equal(t, http.StatusTooManyRequests, a.do(t, http.MethodPost, "/api/v1/webhooks/"+active.ID+"/test", nil, nil))
}

func TestWebhooks_Health(t *testing.T) {
	a := newTestAPI(t, "")
	wh := a.createWebhook(t, "https://x.test", nil)

	var h webhookHealth
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/webhooks/"+wh.ID+"/health", nil, &h))
	assert.Equal(t, wh.ID, h.WebhookID)
	assert.Equal(t, "unknown", h.Health.State)

	var all []webhookHealth
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/stats/webhooks", nil, &all))
	assert.Len(t, all, 1)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/v1/webhooks/"+uuid.NewString()+"/health", nil, nil))
}
