package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/Priya8975/fitcenter-webhooks/internal/engine"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
)

func newTestDispatcher(t *testing.T, s *store.MemoryStore) (*Dispatcher, *Pool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 4, testLogger())
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})
	return NewDispatcher(s, newTestScheduler(s), pool, testLogger()), pool
}

func TestDispatcher_TriggerFansOutToSubscribers(t *testing.T) {
	var hits atomic.Int32
	var lastBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		lastBody.Store(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := store.NewMemory()
	subscribed := createWebhook(t, s, server.URL, 3, true, "payment.completed", "member.created")
	other := createWebhook(t, s, server.URL, 3, true, "class.cancelled")
	inactive := createWebhook(t, s, server.URL, 3, false, "payment.completed")

	d, pool := newTestDispatcher(t, s)
	n, err := d.Trigger(context.Background(), "payment.completed", map[string]any{"amount": 40})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if n != 1 {
		t.Fatalf("started %d pipelines, want 1", n)
	}
	pool.Wait()

	if hits.Load() != 1 {
		t.Errorf("endpoint hit %d times, want 1", hits.Load())
	}
	if got := ledgerFor(t, s, subscribed.ID); len(got) != 1 || got[0].Status != domain.StatusSuccess {
		t.Errorf("subscribed ledger = %+v", got)
	}
	for _, w := range []domain.Webhook{other, inactive} {
		if got := ledgerFor(t, s, w.ID); len(got) != 0 {
			t.Errorf("webhook %s should have no entries, got %d", w.ID, len(got))
		}
	}

	var env struct {
		Event     string          `json:"event"`
		Timestamp time.Time       `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(lastBody.Load().([]byte), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Event != "payment.completed" || string(env.Data) != `{"amount":40}` || env.Timestamp.IsZero() {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestDispatcher_TriggerWithoutSubscribers(t *testing.T) {
	s := store.NewMemory()
	d, _ := newTestDispatcher(t, s)

	n, err := d.Trigger(context.Background(), "member.deleted", nil)
	if err != nil || n != 0 {
		t.Fatalf("Trigger = %d, %v; want 0, nil", n, err)
	}
}

func TestDispatcher_TriggerDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := store.NewMemory()
	for i := 0; i < 10; i++ {
		createWebhook(t, s, server.URL, 1, true, "class.booked")
	}
	d, pool := newTestDispatcher(t, s)

	start := time.Now()
	n, err := d.Trigger(context.Background(), "class.booked", nil)
	if err != nil || n != 10 {
		t.Fatalf("Trigger = %d, %v", n, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Trigger took %s while endpoints were blocked", elapsed)
	}

	close(release)
	pool.Wait()
}

func TestDispatcher_Test(t *testing.T) {
	var sig atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		sig.Store(engine.Verify("gym-secret", b, r.Header.Get(engine.HeaderSignature)))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := store.NewMemory()
	active := createWebhook(t, s, server.URL, 3, true, "member.created")
	inactive := createWebhook(t, s, server.URL, 3, false, "member.created")
	d, pool := newTestDispatcher(t, s)
	ctx := context.Background()

	if err := d.Test(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing webhook: got %v, want ErrNotFound", err)
	}
	if err := d.Test(ctx, inactive.ID); !errors.Is(err, domain.ErrInactive) {
		t.Errorf("inactive webhook: got %v, want ErrInactive", err)
	}
	if err := d.Test(ctx, active.ID); err != nil {
		t.Fatalf("test delivery: %v", err)
	}
	pool.Wait()

	rows := ledgerFor(t, s, active.ID)
	if len(rows) != 1 || rows[0].EventType != domain.TestEventType || rows[0].Status != domain.StatusSuccess {
		t.Fatalf("unexpected ledger %+v", rows)
	}
	if ok, _ := sig.Load().(bool); !ok {
		t.Error("test delivery signature did not verify")
	}
}
