// Package nanobot implements the automated-response agents and the swarm
// manager that coordinates them.
package nanobot

import (
	"sync"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// defaultHistoryLimit bounds the in-memory action history ring kept per
// agent for statistics.
const defaultHistoryLimit = 200

// threatScoreOf reads an event's threat score, defaulting to 0 when unset.
func threatScoreOf(event domain.Event) float64 {
	if event.ThreatScore != nil {
		return *event.ThreatScore
	}
	return 0
}

// confidenceOf reads an event's carried confidence, defaulting to fallback
// when unset.
func confidenceOf(event domain.Event, fallback float64) float64 {
	if event.Confidence != nil {
		return *event.Confidence
	}
	return fallback
}

// Handler is the threat-specific behavior every concrete nanobot supplies.
// Agent composes a Handler with the shared tier-gate policy.
type Handler interface {
	ID() string
	CanHandle(event domain.Event) bool
	Assess(event domain.Event) float64
	Execute(event domain.Event, confidence float64) domain.ActionResult
}

// Agent wraps a Handler with activation state, the confidence tier gate,
// and a bounded action history. It satisfies bus.Subscriber, so an Agent
// can also be registered directly on the shared event bus.
type Agent struct {
	handler           Handler
	mode              domain.NanobotMode
	autoFireThreshold float64
	proposeThreshold  float64

	mu      sync.Mutex
	active  bool
	history []domain.ActionResult
}

// NewAgent wraps handler with the given mode and confidence thresholds.
func NewAgent(handler Handler, mode domain.NanobotMode, autoFireThreshold, proposeThreshold float64) *Agent {
	return &Agent{
		handler:           handler,
		mode:              mode,
		autoFireThreshold: autoFireThreshold,
		proposeThreshold:  proposeThreshold,
	}
}

// ID returns the wrapped handler's identifier.
func (a *Agent) ID() string { return a.handler.ID() }

// Mode returns the agent's operating mode.
func (a *Agent) Mode() domain.NanobotMode { return a.mode }

// CanHandle delegates to the handler.
func (a *Agent) CanHandle(event domain.Event) bool { return a.handler.CanHandle(event) }

// Activate marks the agent eligible for processing.
func (a *Agent) Activate() {
	a.mu.Lock()
	a.active = true
	a.mu.Unlock()
}

// Deactivate marks the agent ineligible for processing.
func (a *Agent) Deactivate() {
	a.mu.Lock()
	a.active = false
	a.mu.Unlock()
}

// IsActive reports the agent's current activation state.
func (a *Agent) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Process applies the confidence tier gate to event and composes
// can_handle/assess/execute, returning nil when inactive or unable to
// handle the event. It satisfies bus.Subscriber's signature by never
// returning a non-nil error — agent failures surface as FAILED results
// instead, so dispatch continues uninterrupted for other consumers.
func (a *Agent) Process(event domain.Event) (*domain.ActionResult, error) {
	if !a.IsActive() {
		return nil, nil
	}
	if !a.handler.CanHandle(event) {
		return nil, nil
	}

	confidence := a.handler.Assess(event)

	var result domain.ActionResult
	switch {
	case confidence < a.proposeThreshold:
		result = domain.NewActionResult("ALERT", domain.ActionSkipped, confidence, map[string]any{
			"reason": "confidence_too_low",
		})
	case confidence < a.autoFireThreshold:
		result = domain.NewActionResult("ALERT", domain.ActionSuccess, confidence, map[string]any{
			"reason": "proposed_to_hunter",
		})
	default:
		result = a.handler.Execute(event, confidence)
	}

	a.record(result)
	return &result, nil
}

func (a *Agent) record(result domain.ActionResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, result)
	if len(a.history) > defaultHistoryLimit {
		a.history = a.history[len(a.history)-defaultHistoryLimit:]
	}
}

// Stats is the per-agent statistics summary.
type Stats struct {
	TotalActions  int
	Successes     int
	Failures      int
	SuccessRate   float64
	AvgConfidence float64
	IsActive      bool
}

// Statistics reports this agent's action history summary.
func (a *Agent) Statistics() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := len(a.history)
	stats := Stats{TotalActions: total, IsActive: a.active}
	if total == 0 {
		return stats
	}

	var successes int
	var confidenceSum float64
	for _, r := range a.history {
		if r.Status == domain.ActionSuccess {
			successes++
		}
		confidenceSum += r.Confidence
	}

	stats.Successes = successes
	stats.Failures = total - successes
	stats.SuccessRate = float64(successes) / float64(total)
	stats.AvgConfidence = confidenceSum / float64(total)
	return stats
}

// RecentActions returns up to limit of the most recently recorded results.
func (a *Agent) RecentActions(limit int) []domain.ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 || limit > len(a.history) {
		limit = len(a.history)
	}
	out := make([]domain.ActionResult, limit)
	copy(out, a.history[len(a.history)-limit:])
	return out
}

// ClearHistory discards the recorded action history.
func (a *Agent) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}
