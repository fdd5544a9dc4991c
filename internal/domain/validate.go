package domain

import (
	"net/url"
	"strings"
)

// ValidateCreate checks a create request before anything is stored.
func ValidateCreate(req CreateWebhookRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(req.URL) == "" {
		return invalid("url", "is required")
	}
	if err := ValidateURL(req.URL); err != nil {
		return err
	}
	if len(NewEventSet(req.Events...)) == 0 {
		return invalid("events", "at least one event type is required")
	}
	if req.RetryCount != nil {
		if err := validateRetryCount(*req.RetryCount); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUpdate checks only the fields present in the request.
func ValidateUpdate(req UpdateWebhookRequest) error {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if req.URL != nil {
		if err := ValidateURL(*req.URL); err != nil {
			return err
		}
	}
	if req.Events != nil && len(NewEventSet(*req.Events...)) == 0 {
		return invalid("events", "at least one event type is required")
	}
	if req.RetryCount != nil {
		if err := validateRetryCount(*req.RetryCount); err != nil {
			return err
		}
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs with a host.
// The value is stored as given, so surrounding whitespace is rejected.
func ValidateURL(raw string) error {
	if raw != strings.TrimSpace(raw) {
		return invalid("url", "must not contain surrounding whitespace")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return invalid("url", "must be a valid absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("url", "scheme must be http or https")
	}
	if u.Host == "" {
		return invalid("url", "must include a host")
	}
	return nil
}

func validateRetryCount(n int) error {
	if n < 1 || n > MaxRetryCount {
		return invalid("retry_count", "must be between 1 and 10")
	}
	return nil
}
