package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/engine"
	"github.com/Priya8975/fitcenter-webhooks/internal/metrics"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
	ws "github.com/Priya8975/fitcenter-webhooks/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Store        store.Store
	StorageName  string
	Dispatcher   Dispatcher
	Pipelines    PipelineCounter
	Health       *engine.HealthTracker
	TestLimiter  engine.Limiter
	Hub          *ws.Hub
	RedisEnabled bool
	AdminSecret  string
	DefaultRetry int
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	webhookHandler := NewWebhookHandler(d.Store, d.Dispatcher, d.Health, d.TestLimiter, d.DefaultRetry, d.Logger)
	eventHandler := NewEventHandler(d.Dispatcher, d.Logger)
	deliveryHandler := NewDeliveryHandler(d.Store, d.Logger)

	var clients ClientCounter
	if d.Hub != nil {
		clients = d.Hub
	}
	dashHandler := NewDashboardHandler(d.Store, d.Pipelines, clients, webhookHandler, d.Logger)

	r.Handle("/metrics", metrics.Handler())

	admin := AdminAuth(d.AdminSecret, d.Logger)
	if d.Hub != nil {
		r.With(admin).Get("/ws", d.Hub.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(d.StorageName, d.RedisEnabled))
		r.Handle("/metrics", metrics.Handler())

		r.Group(func(r chi.Router) {
			r.Use(admin)

			r.Route("/webhooks", func(r chi.Router) {
				r.Get("/", webhookHandler.List)
				r.Post("/", webhookHandler.Create)
				r.Get("/{id}", webhookHandler.Get)
				r.Put("/{id}", webhookHandler.Update)
				r.Patch("/{id}", webhookHandler.Update)
				r.Delete("/{id}", webhookHandler.Delete)
				r.Get("/{id}/events", webhookHandler.History)
				r.Post("/{id}/test", webhookHandler.Test)
				r.Get("/{id}/health", webhookHandler.Health)
			})

			r.Post("/events", eventHandler.Trigger)

			r.Route("/deliveries", func(r chi.Router) {
				r.Get("/", deliveryHandler.List)
				r.Get("/{id}", deliveryHandler.Get)
			})

			r.Get("/stats", dashHandler.Stats)
			r.Get("/stats/webhooks", dashHandler.WebhookHealth)
		})
	})

	return r
}

// requestLogger logs each request with slog and feeds the HTTP metrics,
// labelled by route pattern rather than raw path.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.ObserveHTTP(r.Method, route, status, elapsed)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware adds CORS headers for the admin dashboard.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
