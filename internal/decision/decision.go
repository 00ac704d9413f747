// Package decision evaluates rule sets against events and applies the
// hybrid confidence-tier policy that decides whether the swarm should act,
// propose, or merely observe.
package decision

import (
	"sort"
	"strings"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// clamp constrains v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Recommendation is one matched rule's suggested response.
type Recommendation struct {
	RuleID             string
	ActionType         string
	Priority           int
	ConfidenceModifier float64
}

// Engine evaluates rule sets and the hybrid policy. It holds no mutable
// state of its own; rule sets are supplied per call and the confidence
// thresholds are fixed at construction.
type Engine struct {
	autoFireThreshold float64
	proposeThreshold  float64
}

// New constructs an Engine with the configured confidence thresholds.
func New(autoFireThreshold, proposeThreshold float64) *Engine {
	return &Engine{autoFireThreshold: autoFireThreshold, proposeThreshold: proposeThreshold}
}

// EvaluateRules returns every rule whose conditions match event, not
// expired at t, sorted by priority descending.
func (e *Engine) EvaluateRules(rules []domain.Rule, event domain.Event, t time.Time) []Recommendation {
	var matched []Recommendation
	for _, rule := range rules {
		if rule.Expired(t) {
			continue
		}
		if !evalConditions(rule.Conditions, rule.Logic, event) {
			continue
		}
		matched = append(matched, Recommendation{
			RuleID:             rule.RuleID,
			ActionType:         rule.ActionType,
			Priority:           rule.Priority,
			ConfidenceModifier: rule.ConfidenceModifier,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Priority > matched[j].Priority })
	return matched
}

func evalConditions(conditions []domain.Condition, logic domain.Logic, event domain.Event) bool {
	if len(conditions) == 0 {
		return false
	}

	if logic == domain.LogicOr {
		for _, c := range conditions {
			if evalCondition(c, event) {
				return true
			}
		}
		return false
	}

	for _, c := range conditions {
		if !evalCondition(c, event) {
			return false
		}
	}
	return true
}

func evalCondition(c domain.Condition, event domain.Event) bool {
	actual, ok := event.Payload[c.FieldPath]
	if !ok {
		return false
	}

	switch c.Operator {
	case domain.OpEquals:
		return actual == c.Value
	case domain.OpGreater:
		a, aok := toFloat(actual)
		b, bok := toFloat(c.Value)
		return aok && bok && a > b
	case domain.OpLess:
		a, aok := toFloat(actual)
		b, bok := toFloat(c.Value)
		return aok && bok && a < b
	case domain.OpContains:
		as, aok := actual.(string)
		vs, vok := c.Value.(string)
		return aok && vok && strings.Contains(as, vs)
	case domain.OpInSet:
		set, ok := c.Value.([]string)
		if !ok {
			return false
		}
		actualStr, ok := actual.(string)
		if !ok {
			return false
		}
		for _, v := range set {
			if v == actualStr {
				return true
			}
		}
		return false
	case domain.OpMatches:
		as, aok := actual.(string)
		vs, vok := c.Value.(string)
		return aok && vok && strings.Contains(as, vs)
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Recommend returns the highest-priority matched rule and the adjusted
// confidence it implies, or false if nothing matched.
func (e *Engine) Recommend(rules []domain.Rule, event domain.Event, baseConfidence float64, t time.Time) (Recommendation, float64, bool) {
	matched := e.EvaluateRules(rules, event, t)
	if len(matched) == 0 {
		return Recommendation{}, 0, false
	}
	top := matched[0]
	return top, clamp(baseConfidence+top.ConfidenceModifier, 0, 1), true
}

// DefaultRules is the rule set applied when no operator-supplied rules are
// configured: a single aggressive-port-scan auto-block rule, matching the
// auto-block scenario where a high scan count drives adjusted_confidence to
// 1.0 ahead of the IP-block agent's own assessment, plus a brute-force
// escalation rule along the same lines.
func DefaultRules() []domain.Rule {
	return []domain.Rule{
		{
			RuleID:   "block-aggressive-scanner",
			Priority: 95,
			Logic:    domain.LogicAnd,
			Conditions: []domain.Condition{
				{FieldPath: "port_scan_detected", Operator: domain.OpEquals, Value: true},
				{FieldPath: "ports_scanned", Operator: domain.OpGreater, Value: 100.0},
			},
			ActionType:         "BLOCK_IP",
			ConfidenceModifier: 0.30,
		},
		{
			RuleID:   "escalate-brute-force",
			Priority: 80,
			Logic:    domain.LogicAnd,
			Conditions: []domain.Condition{
				{FieldPath: "brute_force_attempt", Operator: domain.OpEquals, Value: true},
			},
			ActionType:         "BLOCK_IP",
			ConfidenceModifier: 0.20,
		},
	}
}

// Context carries the contextual signals the hybrid policy's modifier
// table keys off.
type Context struct {
	HistoricalThreatLevel domain.Severity
	RecentIncidents       int
	IsOffHours            bool
	SourceReputation      string
}

// Mode is the hybrid decision's resulting action tier.
type Mode string

const (
	ModeAutoFire Mode = "auto_fire"
	ModePropose  Mode = "propose"
	ModeObserve  Mode = "observe"
)

// Decision is the hybrid policy's verdict for one event.
type Decision struct {
	Mode              Mode
	AdjustedConfidence float64
	ConfidenceChange  float64
	Reasoning         []string
	ShouldAct         bool
}

// historicalThreatLevelDelta mirrors the fixed contextual-modifier table.
func historicalThreatLevelDelta(level domain.Severity) (float64, string) {
	switch level {
	case domain.SeverityCritical:
		return 0.15, "historical threat level CRITICAL"
	case domain.SeverityHigh:
		return 0.10, "historical threat level HIGH"
	case domain.SeverityMedium:
		return 0.0, ""
	case domain.SeverityLow:
		return -0.05, "historical threat level LOW"
	default:
		return 0.0, ""
	}
}

func recentIncidentsDelta(count int) (float64, string) {
	switch {
	case count >= 5:
		return 0.15, "5+ recent incidents from this source"
	case count >= 2:
		return 0.08, "multiple recent incidents"
	default:
		return 0.0, ""
	}
}

func offHoursDelta(isOffHours bool) (float64, string) {
	if isOffHours {
		return 0.05, "activity observed off-hours"
	}
	return 0.0, ""
}

func sourceReputationDelta(reputation string) (float64, string) {
	switch reputation {
	case "malicious":
		return 0.20, "source has a malicious reputation"
	case "suspicious":
		return 0.10, "source has a suspicious reputation"
	case "trusted":
		return -0.15, "source is trusted"
	default:
		return 0.0, ""
	}
}

// HybridDecide applies the contextual modifier table to baseConfidence and
// assigns a mode against the engine's configured thresholds.
func (e *Engine) HybridDecide(baseConfidence float64, ctx Context) Decision {
	adjusted := baseConfidence
	var reasoning []string

	apply := func(delta float64, reason string) {
		if reason == "" {
			return
		}
		adjusted += delta
		reasoning = append(reasoning, reason)
	}

	apply(historicalThreatLevelDelta(ctx.HistoricalThreatLevel))
	apply(recentIncidentsDelta(ctx.RecentIncidents))
	apply(offHoursDelta(ctx.IsOffHours))
	apply(sourceReputationDelta(ctx.SourceReputation))

	adjusted = clamp(adjusted, 0, 1)
	change := adjusted - baseConfidence

	var mode Mode
	switch {
	case adjusted >= e.autoFireThreshold:
		mode = ModeAutoFire
	case adjusted >= e.proposeThreshold:
		mode = ModePropose
	default:
		mode = ModeObserve
	}

	return Decision{
		Mode:               mode,
		AdjustedConfidence: adjusted,
		ConfidenceChange:   change,
		Reasoning:          reasoning,
		ShouldAct:          mode == ModeAutoFire || mode == ModePropose,
	}
}
