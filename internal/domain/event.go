// Package domain holds the core data types shared by every component of the
// detection and response engine: events, stains, threat taxonomy, rules,
// baselines, nanobot state, and the graph types produced by correlation.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the closed set of observation kinds the engine understands.
type EventKind string

const (
	EventPortScan        EventKind = "PORT_SCAN"
	EventAuthFail        EventKind = "AUTH_FAIL"
	EventProcessSpawn    EventKind = "PROCESS_SPAWN"
	EventNetFlow         EventKind = "NET_FLOW"
	EventHostDiscovered  EventKind = "HOST_DISCOVERED"
	EventThreatIndicator EventKind = "THREAT_INDICATOR"
	EventAnomaly         EventKind = "ANOMALY"
	EventHuntRequest     EventKind = "HUNT_REQUEST"
	EventPatrolRequest   EventKind = "PATROL_REQUEST"
)

// Event is an observation created by ingress. Ingress sets ThreatScore and
// Confidence right after construction, before submitting it; once submitted
// it is never mutated, and it is discarded once every subscriber has
// consumed it.
type Event struct {
	ID          string
	Timestamp   time.Time
	Source      string
	Kind        EventKind
	Payload     map[string]any
	ThreatScore *float64
	Confidence  *float64
	Tags        []string
}

// NewEvent stamps a fresh id and timestamp; payload/tags are copied so the
// caller's map cannot mutate the event after construction.
func NewEvent(source string, kind EventKind, payload map[string]any, tags ...string) Event {
	cp := make(map[string]any, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Kind:      kind,
		Payload:   cp,
		Tags:      append([]string(nil), tags...),
	}
}

// Bool reads a boolean field from the payload, defaulting to false.
func (e Event) Bool(field string) bool {
	v, ok := e.Payload[field].(bool)
	return ok && v
}

// Float reads a numeric field from the payload, defaulting to 0.
func (e Event) Float(field string) float64 {
	switch v := e.Payload[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// String reads a string field from the payload, defaulting to "".
func (e Event) String(field string) string {
	v, _ := e.Payload[field].(string)
	return v
}

// Has reports whether the payload carries the given field at all.
func (e Event) Has(field string) bool {
	_, ok := e.Payload[field]
	return ok
}

// StringSlice reads a []string field from the payload.
func (e Event) StringSlice(field string) []string {
	switch v := e.Payload[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// IntSlice reads a []int field from the payload, accepting JSON-decoded
// []any of floats as well as a native []int.
func (e Event) IntSlice(field string) []int {
	switch v := e.Payload[field].(type) {
	case []int:
		return v
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				out = append(out, int(n))
			case int:
				out = append(out, n)
			}
		}
		return out
	default:
		return nil
	}
}
