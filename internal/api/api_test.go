package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/Priya8975/fitcenter-webhooks/internal/engine"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
	ws "github.com/Priya8975/fitcenter-webhooks/internal/websocket"
	"github.com/Priya8975/fitcenter-webhooks/internal/worker"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	server *httptest.Server
	store  *store.MemoryStore
	pool   *worker.Pool
	token  string
}

func newTestAPI(t *testing.T, adminSecret string) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(ctx, 8, logger)
	sched := worker.NewScheduler(mem, mem, worker.NewExecutor(time.Second), engine.NewBackoff(time.Millisecond), logger)

	router := NewRouter(Deps{
		Store:        mem,
		StorageName:  "memory",
		Dispatcher:   worker.NewDispatcher(mem, sched, pool, logger),
		Pipelines:    pool,
		Health:       engine.NewHealthTracker(nil, 5, logger),
		TestLimiter:  engine.NewLocalLimiter(2, time.Minute),
		Hub:          ws.NewHub(logger),
		AdminSecret:  adminSecret,
		DefaultRetry: domain.DefaultRetryCount,
		Logger:       logger,
	})
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
		server.Close()
	})

	return &testAPI{server: server, store: mem, pool: pool}
}

// do sends a JSON request and decodes the response envelope's data into out.
func (a *testAPI) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = bytes.NewReader([]byte(raw))
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if resp.StatusCode < 300 {
			var env struct {
				Data json.RawMessage `json:"data"`
			}
			require.NoError(t, json.Unmarshal(raw, &env), string(raw))
			require.NoError(t, json.Unmarshal(env.Data, out), string(raw))
		} else {
			require.NoError(t, json.Unmarshal(raw, out), string(raw))
		}
	}
	return resp.StatusCode
}

type webhookJSON struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	Events        []string `json:"events"`
	Secret        *string  `json:"secret"`
	HasSecret     bool     `json:"has_secret"`
	RetryCount    int      `json:"retry_count"`
	IsActive      bool     `json:"is_active"`
	DeliveryCount int      `json:"delivery_count"`
	LastSuccessAt *string  `json:"last_success_at"`
	LastFailureAt *string  `json:"last_failure_at"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func (a *testAPI) createWebhook(t *testing.T, url string, body map[string]any) webhookJSON {
	t.Helper()
	req := map[string]any{
		"name":   "front-desk",
		"url":    url,
		"events": []string{"payment.completed"},
		"secret": "gym-secret",
	}
	for k, v := range body {
		req[k] = v
	}
	var wh webhookJSON
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/webhooks", req, &wh))
	return wh
}

func receiver(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}
