package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/Priya8975/fitcenter-webhooks/internal/engine"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// Attempt is one HTTP POST of an envelope to a webhook endpoint.
type Attempt struct {
	URL        string
	Secret     string
	EventType  string
	DeliveryID string
	Number     int
	Body       []byte
}

// AttemptResult is the outcome of one attempt. StatusCode is nil when no
// response was received.
type AttemptResult struct {
	StatusCode *int
	Body       string
	Err        error
	Duration   time.Duration
}

// OK reports whether the attempt counts as delivered.
func (r AttemptResult) OK() bool {
	return r.Err == nil && r.StatusCode != nil && *r.StatusCode >= 200 && *r.StatusCode < 300
}

// Detail is what the ledger stores as response_body: the error text when no
// response arrived, otherwise the response body.
func (r AttemptResult) Detail() string {
	switch {
	case r.Err != nil:
		return domain.TruncateBody(r.Err.Error())
	case r.Body == "" && !r.OK() && r.StatusCode != nil:
		return fmt.Sprintf("endpoint returned %d", *r.StatusCode)
	}
	return r.Body
}

// Executor performs delivery attempts over HTTP.
type Executor struct {
	httpClient *http.Client
}

// NewExecutor creates an executor whose client gives up after timeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Execute POSTs the attempt body and reads at most 1 KiB of the response.
func (e *Executor) Execute(ctx context.Context, a Attempt) AttemptResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(a.Body))
	if err != nil {
		return AttemptResult{Err: fmt.Errorf("building request: %w", err), Duration: time.Since(start)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(engine.HeaderEvent, a.EventType)
	req.Header.Set(engine.HeaderTimestamp, start.UTC().Format(time.RFC3339))
	req.Header.Set(engine.HeaderDelivery, a.DeliveryID)
	req.Header.Set(engine.HeaderAttempt, strconv.Itoa(a.Number))
	if a.Secret != "" {
		req.Header.Set(engine.HeaderSignature, engine.Sign(a.Secret, a.Body))
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return AttemptResult{Err: fmt.Errorf("request failed: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	// Read a few extra bytes so a character straddling the cap is dropped
	// whole instead of being mangled.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, domain.MaxResponseBody+utf8.UTFMax))
	code := resp.StatusCode

	return AttemptResult{
		StatusCode: &code,
		Body:       domain.TruncateBody(string(body)),
		Duration:   time.Since(start),
	}
}
