package nanobot

import (
	"fmt"
	"sync"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// huntTypes is the set of threat types the hunter actively pursues.
var huntTypes = map[string]struct{}{
	"malware":      {},
	"c2":           {},
	"exfiltration": {},
	"lateral_move": {},
	"persistence":  {},
}

// CaughtThreat is one indicator of compromise confirmed during a hunt.
type CaughtThreat struct {
	HuntID   string
	IOC      string
	CaughtAt time.Time
}

// Hunt is one active or completed threat-hunting sweep.
type Hunt struct {
	ID        string
	StartedAt time.Time
	Completed bool
	Caught    []CaughtThreat
	Results   map[string]any
}

// ThreatHunter proactively pursues indicators of compromise surfaced by
// other subsystems. Grounded on the threat-hunting nanobot.
type ThreatHunter struct {
	id     string
	nextID int

	mu    sync.Mutex
	hunts map[string]*Hunt
}

// NewThreatHunter constructs a ThreatHunter.
func NewThreatHunter(id string) *ThreatHunter {
	return &ThreatHunter{id: id, hunts: make(map[string]*Hunt)}
}

func (h *ThreatHunter) ID() string { return h.id }

func (h *ThreatHunter) CanHandle(event domain.Event) bool {
	switch event.Kind {
	case domain.EventThreatIndicator, domain.EventHuntRequest:
		return true
	}
	return event.Bool("ioc") || event.Bool("suspicious_pattern") || event.String("threat_type") != ""
}

func (h *ThreatHunter) Assess(event domain.Event) float64 {
	confidence := 0.2

	iocs := event.StringSlice("iocs")
	if n := len(iocs); n > 0 {
		if n > 3 {
			n = 3
		}
		confidence += 0.20 * float64(n)
	}
	if event.Bool("suspicious_pattern") {
		confidence += 0.15
	}
	if event.Bool("threat_signature_match") {
		confidence += 0.25
	}
	if _, ok := huntTypes[event.String("threat_type")]; ok {
		confidence += 0.10
	}

	indicators := event.StringSlice("indicators")
	if len(indicators) >= 3 {
		confidence += 0.15
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func (h *ThreatHunter) Execute(event domain.Event, confidence float64) domain.ActionResult {
	iocs := event.StringSlice("iocs")
	if len(iocs) == 0 {
		return errorResult("THREAT_HUNT", confidence, "no IOCs present to hunt")
	}

	h.mu.Lock()
	h.nextID++
	id := fmt.Sprintf("hunt-%d", h.nextID)
	now := Now()

	caught := make([]CaughtThreat, 0, len(iocs)+1)
	for _, ioc := range iocs {
		caught = append(caught, CaughtThreat{HuntID: id, IOC: ioc, CaughtAt: now})
	}
	if event.Bool("suspicious_pattern") {
		caught = append(caught, CaughtThreat{HuntID: id, IOC: "pattern:" + event.String("threat_type"), CaughtAt: now})
	}

	hunt := &Hunt{ID: id, StartedAt: now, Caught: caught}
	h.hunts[id] = hunt
	h.mu.Unlock()

	return domain.NewActionResult("THREAT_HUNT", domain.ActionSuccess, confidence, map[string]any{
		"hunt_id":      id,
		"caught_count": len(caught),
	})
}

// CompleteHunt records results and marks id completed, reporting whether it
// existed.
func (h *ThreatHunter) CompleteHunt(id string, results map[string]any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	hunt, ok := h.hunts[id]
	if !ok {
		return false
	}
	hunt.Completed = true
	hunt.Results = results
	return true
}

// GetActiveHunts returns every hunt not yet completed.
func (h *ThreatHunter) GetActiveHunts() []Hunt {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Hunt
	for _, hunt := range h.hunts {
		if !hunt.Completed {
			out = append(out, *hunt)
		}
	}
	return out
}

// GetCaughtThreats returns every IOC caught across all hunts.
func (h *ThreatHunter) GetCaughtThreats() []CaughtThreat {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []CaughtThreat
	for _, hunt := range h.hunts {
		out = append(out, hunt.Caught...)
	}
	return out
}

// HunterStats summarizes hunting activity.
type HunterStats struct {
	TotalHunts     int
	ActiveHunts    int
	CompletedHunts int
	TotalCaught    int
}

// GetHuntStatistics reports aggregate hunting activity.
func (h *ThreatHunter) GetHuntStatistics() HunterStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := HunterStats{TotalHunts: len(h.hunts)}
	for _, hunt := range h.hunts {
		if hunt.Completed {
			stats.CompletedHunts++
		} else {
			stats.ActiveHunts++
		}
		stats.TotalCaught += len(hunt.Caught)
	}
	return stats
}
