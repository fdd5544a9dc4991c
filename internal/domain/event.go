package domain

import (
	"encoding/json"
	"time"
)

// TestEventType is sent by the connectivity check endpoint.
const TestEventType = "webhook.test"

// Envelope is the JSON body posted to subscribers.
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// EncodeEnvelope serializes the outbound body once; every attempt of every
// pipeline for the event sends these exact bytes.
func EncodeEnvelope(eventType string, data any, at time.Time) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(Envelope{
		Event:     eventType,
		Timestamp: at.UTC(),
		Data:      data,
	})
}
