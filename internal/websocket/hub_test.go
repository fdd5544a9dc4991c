package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/gorilla/websocket"
)

func setupTestHub(t *testing.T) *Hub {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connectWS(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect WebSocket: %v", err)
	}

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) DeliveryEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var ev DeliveryEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		t.Fatalf("bad message %s: %v", message, err)
	}
	return ev
}

func TestHub_ClientConnectsAndLeaves(t *testing.T) {
	hub := setupTestHub(t)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients initially, got %d", hub.ClientCount())
	}

	conn, cleanup := connectWS(t, hub)
	defer cleanup()
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_AttemptRecordedReachesAllClients(t *testing.T) {
	hub := setupTestHub(t)

	conn1, cleanup1 := connectWS(t, hub)
	defer cleanup1()
	conn2, cleanup2 := connectWS(t, hub)
	defer cleanup2()
	waitForClients(t, hub, 2)

	code := 503
	hub.AttemptRecorded(context.Background(), domain.Delivery{
		ID:           "row-1",
		WebhookID:    "wh-1",
		DeliveryID:   "dlv-1",
		EventType:    "class.booked",
		Status:       domain.StatusPending,
		ResponseCode: &code,
		ResponseBody: "maintenance",
		Attempts:     1,
		DurationMs:   42,
		CreatedAt:    time.Now().UTC(),
	})

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		ev := readEvent(t, conn)
		if ev.Type != TypeRetrying || ev.DeliveryID != "dlv-1" || ev.WebhookID != "wh-1" {
			t.Errorf("client %d got %+v", i+1, ev)
		}
		if ev.ResponseCode == nil || *ev.ResponseCode != 503 || ev.Detail != "maintenance" {
			t.Errorf("client %d got response %v %q", i+1, ev.ResponseCode, ev.Detail)
		}
	}
}

func TestEventFromDelivery(t *testing.T) {
	tests := []struct {
		status     string
		wantType   string
		wantDetail string
	}{
		{domain.StatusSuccess, TypeDelivered, ""},
		{domain.StatusPending, TypeRetrying, "body"},
		{domain.StatusFailed, TypeFailed, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			ev := EventFromDelivery(domain.Delivery{Status: tt.status, ResponseBody: "body", Attempts: 2})
			if ev.Type != tt.wantType || ev.Detail != tt.wantDetail || ev.Attempt != 2 {
				t.Errorf("got %+v", ev)
			}
		})
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	conn, cleanup := connectWS(t, hub)
	defer cleanup()
	waitForClients(t, hub, 1)

	cancel()
	<-stopped

	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients after shutdown, got %d", hub.ClientCount())
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}
