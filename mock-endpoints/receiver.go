package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/engine"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type receiver struct {
	secret   string
	flaky    int
	slowWait time.Duration
	logger   *slog.Logger

	total      atomic.Int64
	badSig     atomic.Int64
	mu         sync.Mutex
	byDelivery map[string]int
	byEvent    map[string]int
}

func newReceiver(secret string, flaky int, logger *slog.Logger) *receiver {
	return &receiver{
		secret:     secret,
		flaky:      flaky,
		slowWait:   3 * time.Second,
		logger:     logger,
		byDelivery: make(map[string]int),
		byEvent:    make(map[string]int),
	}
}

func (rc *receiver) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/webhook", func(r chi.Router) {
		r.Use(rc.verify)
		r.Post("/success", func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusOK, "received")
		})
		r.Post("/slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(rc.slowWait)
			reply(w, http.StatusOK, "received (slow)")
		})
		r.Post("/fail", func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusInternalServerError, "internal server error")
		})
		r.Post("/flaky", rc.handleFlaky)
		r.Post("/redirect", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusFound)
		})
	})
	r.Get("/stats", rc.handleStats)

	return r
}

// verify counts the request and, when a secret is configured, rejects
// bodies whose signature does not match with 401.
func (rc *receiver) verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			reply(w, http.StatusBadRequest, "unreadable body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		n := rc.total.Add(1)
		deliveryID := r.Header.Get(engine.HeaderDelivery)
		eventType := r.Header.Get(engine.HeaderEvent)

		rc.mu.Lock()
		rc.byDelivery[deliveryID]++
		rc.byEvent[eventType]++
		rc.mu.Unlock()

		sig := r.Header.Get(engine.HeaderSignature)
		valid := rc.secret == "" || engine.Verify(rc.secret, body, sig)

		rc.logger.Info("webhook received",
			"n", n,
			"path", r.URL.Path,
			"event_type", eventType,
			"delivery_id", deliveryID,
			"attempt", r.Header.Get(engine.HeaderAttempt),
			"signed", sig != "",
			"signature_valid", valid,
		)

		if !valid {
			rc.badSig.Add(1)
			reply(w, http.StatusUnauthorized, "signature mismatch")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleFlaky fails the first rc.flaky attempts of every delivery.
func (rc *receiver) handleFlaky(w http.ResponseWriter, r *http.Request) {
	rc.mu.Lock()
	seen := rc.byDelivery[r.Header.Get(engine.HeaderDelivery)]
	rc.mu.Unlock()

	if seen <= rc.flaky {
		reply(w, http.StatusServiceUnavailable, "try again")
		return
	}
	reply(w, http.StatusOK, "received after retries")
}

type statsResponse struct {
	TotalRequests     int64          `json:"total_requests"`
	InvalidSignatures int64          `json:"invalid_signatures"`
	Deliveries        int            `json:"deliveries"`
	ByEvent           map[string]int `json:"by_event"`
}

func (rc *receiver) handleStats(w http.ResponseWriter, r *http.Request) {
	rc.mu.Lock()
	resp := statsResponse{
		TotalRequests:     rc.total.Load(),
		InvalidSignatures: rc.badSig.Load(),
		Deliveries:        len(rc.byDelivery),
		ByEvent:           make(map[string]int, len(rc.byEvent)),
	}
	for k, v := range rc.byEvent {
		resp.ByEvent[k] = v
	}
	rc.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func reply(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": message})
}
