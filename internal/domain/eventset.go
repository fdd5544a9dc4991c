package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// EventSet is the set of event types a webhook subscribes to.
type EventSet map[string]struct{}

// NewEventSet builds a set from event type names, dropping blanks and duplicates.
func NewEventSet(types ...string) EventSet {
	s := make(EventSet, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		s[t] = struct{}{}
	}
	return s
}

func (s EventSet) Contains(eventType string) bool {
	_, ok := s[eventType]
	return ok
}

// List returns the event types sorted.
func (s EventSet) List() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s EventSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *EventSet) UnmarshalJSON(data []byte) error {
	var types []string
	if err := json.Unmarshal(data, &types); err != nil {
		return err
	}
	*s = NewEventSet(types...)
	return nil
}
