package nanobot

import (
	"fmt"
	"sync"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// Enumeration is one active or completed reconnaissance sweep launched by
// the scout agent against a discovered host or service.
type Enumeration struct {
	ID        string
	Target    string
	EnumType  string
	StartedAt time.Time
	Completed bool
	Results   map[string]any
}

// Enumerator performs scout-mode enumeration of newly discovered hosts and
// services. Grounded on the enumeration nanobot.
type Enumerator struct {
	id            string
	maxConcurrent int
	nextID        int

	mu           sync.Mutex
	enumerations map[string]*Enumeration
}

// NewEnumerator constructs an Enumerator capped at maxConcurrent active
// sweeps.
func NewEnumerator(id string, maxConcurrent int) *Enumerator {
	return &Enumerator{
		id:            id,
		maxConcurrent: maxConcurrent,
		enumerations:  make(map[string]*Enumeration),
	}
}

func (e *Enumerator) ID() string { return e.id }

func (e *Enumerator) CanHandle(event domain.Event) bool {
	switch event.Kind {
	case domain.EventAnomaly, domain.EventHostDiscovered:
		return true
	}
	return event.Bool("new_host_discovered") || event.Bool("new_service_discovered") || event.Bool("enumerate_target")
}

func (e *Enumerator) Assess(event domain.Event) float64 {
	confidence := 0.3

	if event.Bool("new_host_discovered") {
		confidence += 0.3
	}
	if event.Bool("new_service_discovered") {
		confidence += 0.25
	}
	if event.Kind == domain.EventAnomaly {
		confidence += 0.20
	}
	if event.Bool("incomplete_data") {
		confidence += 0.10
	}
	if event.Bool("high_value_target") {
		confidence += 0.10
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func enumTarget(event domain.Event) string {
	if t := event.String("target"); t != "" {
		return t
	}
	if h := event.String("hostname"); h != "" {
		return h
	}
	return sourceIP(event)
}

func selectEnumType(event domain.Event) string {
	switch {
	case event.Bool("new_host_discovered"):
		return "port_scan"
	case event.Bool("new_service_discovered"):
		return "service_detection"
	case event.String("domain") != "" || event.String("hostname") != "":
		return "subdomain"
	default:
		return "port_scan"
	}
}

func (e *Enumerator) Execute(event domain.Event, confidence float64) domain.ActionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := 0
	for _, en := range e.enumerations {
		if !en.Completed {
			active++
		}
	}
	if active >= e.maxConcurrent {
		return errorResult("ENUMERATE", confidence, fmt.Sprintf("max concurrent enumerations reached (%d)", e.maxConcurrent))
	}

	target := enumTarget(event)
	if target == "" {
		return errorResult("ENUMERATE", confidence, "no target identified in event")
	}

	e.nextID++
	id := fmt.Sprintf("enum-%d", e.nextID)
	enumeration := &Enumeration{
		ID:        id,
		Target:    target,
		EnumType:  selectEnumType(event),
		StartedAt: Now(),
	}
	e.enumerations[id] = enumeration

	return domain.NewActionResult("ENUMERATE", domain.ActionSuccess, confidence, map[string]any{
		"enumeration_id": id,
		"target":         target,
		"enum_type":      enumeration.EnumType,
	})
}

// CompleteEnumeration records results and marks id completed, reporting
// whether it existed.
func (e *Enumerator) CompleteEnumeration(id string, results map[string]any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.enumerations[id]
	if !ok {
		return false
	}
	en.Completed = true
	en.Results = results
	return true
}

// GetActiveEnumerations returns every sweep not yet completed.
func (e *Enumerator) GetActiveEnumerations() []Enumeration {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Enumeration
	for _, en := range e.enumerations {
		if !en.Completed {
			out = append(out, *en)
		}
	}
	return out
}

// GetEnumerationResults returns id's recorded results, if completed.
func (e *Enumerator) GetEnumerationResults(id string) (map[string]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.enumerations[id]
	if !ok || !en.Completed {
		return nil, false
	}
	return en.Results, true
}

// EnumeratorStats summarizes active and completed sweep counts.
type EnumeratorStats struct {
	Active    int
	Completed int
	Total     int
}

// GetStatistics reports the current active/completed enumeration counts.
func (e *Enumerator) GetStatistics() EnumeratorStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := EnumeratorStats{Total: len(e.enumerations)}
	for _, en := range e.enumerations {
		if en.Completed {
			stats.Completed++
		} else {
			stats.Active++
		}
	}
	return stats
}
