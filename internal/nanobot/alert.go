package nanobot

import (
	"strconv"
	"sync"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// Alert is one raised security alert.
type Alert struct {
	ID           string
	Level        domain.AlertLevel
	ThreatScore  float64
	Confidence   float64
	RaisedAt     time.Time
	Message      string
	Acknowledged bool
}

// AlertNanobot always observes and raises alerts at or above its configured
// minimum level. Grounded on the alerting nanobot, the one agent that runs
// regardless of mode since it never mutates external state.
type AlertNanobot struct {
	id       string
	minLevel domain.AlertLevel

	mu      sync.Mutex
	nextID  int
	alerts  map[string]*Alert
	byLevel map[domain.AlertLevel]int
}

// NewAlertNanobot constructs an AlertNanobot that raises alerts at or above
// minLevel.
func NewAlertNanobot(id string, minLevel domain.AlertLevel) *AlertNanobot {
	return &AlertNanobot{
		id:       id,
		minLevel: minLevel,
		alerts:   make(map[string]*Alert),
		byLevel:  make(map[domain.AlertLevel]int),
	}
}

func (a *AlertNanobot) ID() string { return a.id }

func (a *AlertNanobot) CanHandle(event domain.Event) bool { return true }

func (a *AlertNanobot) Assess(event domain.Event) float64 {
	baseConfidence := confidenceOf(event, 0.30)
	threatScore := threatScoreOf(event)

	switch {
	case threatScore >= 9.0:
		return 0.95
	case threatScore >= 7.0:
		return 0.85
	case threatScore >= 5.0:
		return 0.70
	case threatScore >= 3.0:
		return 0.50
	default:
		return baseConfidence
	}
}

func alertLevel(event domain.Event, confidence float64) domain.AlertLevel {
	threatScore := threatScoreOf(event)

	switch {
	case event.Bool("breach_detected") || confidence >= 0.95:
		return domain.AlertBreach
	case threatScore >= 9.0 || confidence >= 0.90:
		return domain.AlertCritical
	case threatScore >= 7.0 || confidence >= 0.75:
		return domain.AlertElevated
	case threatScore >= 5.0 || confidence >= 0.60:
		return domain.AlertWarning
	default:
		return domain.AlertInfo
	}
}

func (a *AlertNanobot) Execute(event domain.Event, confidence float64) domain.ActionResult {
	level := alertLevel(event, confidence)
	if !level.AtLeast(a.minLevel) {
		return domain.NewActionResult("ALERT", domain.ActionSkipped, confidence, map[string]any{
			"reason": "below_minimum_level", "level": string(level),
		})
	}

	a.mu.Lock()
	a.nextID++
	id := "alert-" + strconv.Itoa(a.nextID)
	alert := &Alert{
		ID:          id,
		Level:       level,
		ThreatScore: threatScoreOf(event),
		Confidence:  confidence,
		RaisedAt:    Now(),
		Message:     event.String("message"),
	}
	a.alerts[id] = alert
	a.byLevel[level]++
	a.mu.Unlock()

	return domain.NewActionResult("ALERT", domain.ActionSuccess, confidence, map[string]any{
		"alert_id": id,
		"level":    string(level),
	})
}

// GetActiveAlerts returns every alert that has not been acknowledged.
func (a *AlertNanobot) GetActiveAlerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Alert
	for _, al := range a.alerts {
		if !al.Acknowledged {
			out = append(out, *al)
		}
	}
	return out
}

// GetAlertStatistics returns the count of raised alerts per level.
func (a *AlertNanobot) GetAlertStatistics() map[domain.AlertLevel]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[domain.AlertLevel]int, len(a.byLevel))
	for k, v := range a.byLevel {
		out[k] = v
	}
	return out
}

// AcknowledgeAlert marks id acknowledged, reporting whether it existed.
func (a *AlertNanobot) AcknowledgeAlert(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	al, ok := a.alerts[id]
	if !ok {
		return false
	}
	al.Acknowledged = true
	return true
}

// ClearOldAlerts removes acknowledged alerts raised before cutoff and
// returns the count removed.
func (a *AlertNanobot) ClearOldAlerts(cutoff time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for id, al := range a.alerts {
		if al.Acknowledged && al.RaisedAt.Before(cutoff) {
			delete(a.alerts, id)
			removed++
		}
	}
	return removed
}
