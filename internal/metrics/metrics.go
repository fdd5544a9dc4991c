package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts API requests by method, route pattern and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records API request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// WebhookDeliveries counts ledger entries by event type and status.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook delivery attempts by event type and ledger status."},
		[]string{"event_type", "status"},
	)
	// WebhookDuration tracks attempt latency in seconds.
	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_duration_seconds", Help: "Webhook delivery attempt duration in seconds.", Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10}},
		[]string{"event_type", "status"},
	)
	// PipelinesInFlight is the number of delivery pipelines currently running.
	PipelinesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "webhook_pipelines_in_flight", Help: "Delivery pipelines currently running."},
	)
	// EventsTriggered counts dispatched domain events by type.
	EventsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_events_triggered_total", Help: "Domain events submitted for fan-out."},
		[]string{"event_type"},
	)
)

var regOnce sync.Once

// Register adds every collector to Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookDuration)
		Registry.MustRegister(PipelinesInFlight)
		Registry.MustRegister(EventsTriggered)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// DeliveryObserver feeds ledger entries into the delivery metrics.
type DeliveryObserver struct{}

func (DeliveryObserver) AttemptRecorded(_ context.Context, d domain.Delivery) {
	WebhookDeliveries.WithLabelValues(d.EventType, d.Status).Inc()
	WebhookDuration.WithLabelValues(d.EventType, d.Status).Observe(float64(d.DurationMs) / 1000)
}

// ObserveHTTP records one API request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
