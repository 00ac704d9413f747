// Package engine wires the classifier and baseline learner onto the event
// bus: every observation carrying indicators/behaviors is classified into
// the threat taxonomy and turned into a stored stain; every observation
// carrying a metric sample feeds the adaptive baseline. cmd/engine and
// cmd/gateway both subscribe a Processor to their bus; correlation and the
// nanobot swarm are wired separately in those mains, not in this package.
package engine

import (
	"github.com/iff-guardian/nanoguard/internal/baseline"
	"github.com/iff-guardian/nanoguard/internal/classifier"
	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/iff-guardian/nanoguard/internal/stain"
	"github.com/iff-guardian/nanoguard/pkg/logger"
)

// categoryMarker maps a classifier category to its closed stain marker type.
var categoryMarker = map[domain.ThreatCategory]domain.MarkerType{
	domain.CategoryCrow:     domain.MarkerCrow,
	domain.CategoryMagpie:   domain.MarkerMagpie,
	domain.CategorySquirrel: domain.MarkerSquirrel,
	domain.CategorySnake:    domain.MarkerSnake,
	domain.CategoryParasite: domain.MarkerParasite,
	domain.CategoryBat:      domain.MarkerBat,
}

// Processor implements bus.Subscriber. It never produces an ActionResult of
// its own (classification and baseline recording are not nanobot actions);
// it always returns (nil, nil) and lets the swarm's agents react to the
// same event independently.
type Processor struct {
	classifier *classifier.Classifier
	baseline   *baseline.Learner
	store      *stain.Store
	log        logger.Logger
}

// New constructs a Processor over the given classifier, baseline learner,
// and stain store.
func New(c *classifier.Classifier, b *baseline.Learner, store *stain.Store, log logger.Logger) *Processor {
	return &Processor{classifier: c, baseline: b, store: store, log: log}
}

func (p *Processor) ID() string { return "classifier-baseline-processor" }

// CanHandle accepts every event; classification and baseline recording are
// each individually skipped when the event doesn't carry the relevant
// fields.
func (p *Processor) CanHandle(event domain.Event) bool { return true }

// Process classifies and records the event, never itself producing a
// nanobot ActionResult.
func (p *Processor) Process(event domain.Event) (*domain.ActionResult, error) {
	p.recordMetric(event)
	p.classify(event)
	return nil, nil
}

func (p *Processor) recordMetric(event domain.Event) {
	name := event.String("metric_name")
	if name == "" || !event.Has("metric_value") {
		return
	}
	p.baseline.Record(name, event.Float("metric_value"), event.Timestamp)
}

func (p *Processor) classify(event domain.Event) {
	indicators := event.StringSlice("indicators")
	behaviors := event.StringSlice("behaviors")
	if len(indicators) == 0 && len(behaviors) == 0 {
		return
	}

	result, ok := p.classifier.Best(indicators, behaviors)
	if !ok {
		return
	}

	marker, ok := categoryMarker[result.Category]
	if !ok {
		marker = domain.MarkerUnknown
	}

	confidence := confidenceOf(event, result.Score)
	threatScore := threatScoreOf(event, result.Score*10)

	p.store.Upsert(domain.Stain{
		TagID:      stainTagID(event),
		MarkerType: marker,
		Color:      marker.DefaultColor(),
		FirstSeen:  event.Timestamp,
		LastSeen:   event.Timestamp,
		HitCount:   1,
		Target: domain.Target{
			IP: event.String("source_ip"),
		},
		ThreatScore: threatScore,
		Confidence:  confidence,
		Evidence:    append(append([]string(nil), result.MatchedIndicators...), result.MatchedBehaviors...),
		Status:      statusForSeverity(result.Severity),
	})
}

// stainTagID derives a content-addressed tag from the event's source IP and
// kind so repeated observations of the same condition dedup on upsert.
func stainTagID(event domain.Event) string {
	ip := event.String("source_ip")
	if ip == "" {
		ip = event.Source
	}
	return ip + ":" + string(event.Kind)
}

func statusForSeverity(s domain.Severity) domain.StainStatus {
	switch s {
	case domain.SeverityCritical, domain.SeverityHigh:
		return domain.StatusActiveThreat
	case domain.SeverityMedium:
		return domain.StatusMonitoring
	default:
		return domain.StatusMonitoring
	}
}

func confidenceOf(event domain.Event, fallback float64) float64 {
	if event.Confidence != nil {
		return *event.Confidence
	}
	return fallback
}

func threatScoreOf(event domain.Event, fallback float64) float64 {
	if event.ThreatScore != nil {
		return *event.ThreatScore
	}
	return fallback
}
