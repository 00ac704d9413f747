package domain

// Severity is the ordinary severity ladder used on stains, threats, and
// attack chains. Kept distinct from AlertLevel — see DESIGN.md open
// question #1.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AlertLevel is the alert-agent-only ladder, distinct from Severity.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertElevated AlertLevel = "ELEVATED"
	AlertCritical AlertLevel = "CRITICAL"
	AlertBreach   AlertLevel = "BREACH"
)

// alertLevelOrder mirrors the original's level_order list used to compare a
// computed level against a configured minimum.
var alertLevelOrder = []AlertLevel{AlertInfo, AlertWarning, AlertElevated, AlertCritical, AlertBreach}

// AtLeast reports whether level is ranked at or above min on the ladder.
func (level AlertLevel) AtLeast(min AlertLevel) bool {
	li, mi := -1, -1
	for i, l := range alertLevelOrder {
		if l == level {
			li = i
		}
		if l == min {
			mi = i
		}
	}
	if li == -1 || mi == -1 {
		return false
	}
	return li >= mi
}

// ThreatCategory is the closed taxonomy the classifier assigns events to.
type ThreatCategory string

const (
	CategoryCrow     ThreatCategory = "CROW"
	CategoryMagpie   ThreatCategory = "MAGPIE"
	CategorySquirrel ThreatCategory = "SQUIRREL"
	CategorySnake    ThreatCategory = "SNAKE"
	CategoryParasite ThreatCategory = "PARASITE"
	CategoryBat      ThreatCategory = "BAT"
)

// CategoryOrder is the fixed tie-break order the classifier uses: earlier
// entries win ties over later ones.
var CategoryOrder = []ThreatCategory{
	CategoryCrow, CategoryMagpie, CategorySquirrel, CategorySnake, CategoryParasite, CategoryBat,
}

// CategoryProfile describes one taxonomy entry's matching rules and weights.
type CategoryProfile struct {
	Category        ThreatCategory
	Indicators      map[string]struct{}
	Behaviors       map[string]struct{}
	SeverityPrior   Severity
	IndicatorWeight float64
	BehaviorWeight  float64
	Recommendations []string
}

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, i := range items {
		m[i] = struct{}{}
	}
	return m
}

// DefaultCategoryProfiles mirrors original_source/ai/threat_classifier.py's
// classification_rules table exactly, including the per-category weight
// split and the emoji-free recommendation text.
func DefaultCategoryProfiles() map[ThreatCategory]CategoryProfile {
	return map[ThreatCategory]CategoryProfile{
		CategoryCrow: {
			Category:        CategoryCrow,
			Indicators:      set("c2_beacon", "malware_signature", "known_malicious_hash", "suspicious_process"),
			Behaviors:       set("data_exfiltration", "unusual_network_pattern", "process_injection"),
			SeverityPrior:   SeverityHigh,
			IndicatorWeight: 0.6,
			BehaviorWeight:  0.4,
			Recommendations: []string{
				"Deploy a BLACK tracer on the host",
				"Check for command-and-control beaconing",
				"Isolate the affected host",
			},
		},
		CategoryMagpie: {
			Category:        CategoryMagpie,
			Indicators:      set("data_exfiltration_indicator", "large_outbound_transfer", "unusual_destination"),
			Behaviors:       set("data_staging", "compression_activity", "encrypted_channel"),
			SeverityPrior:   SeverityHigh,
			IndicatorWeight: 0.7,
			BehaviorWeight:  0.3,
			Recommendations: []string{
				"Review DLP controls and data access",
				"Inspect outbound transfer destinations",
			},
		},
		CategorySquirrel: {
			Category:        CategorySquirrel,
			Indicators:      set("lateral_movement_indicator", "credential_reuse", "internal_port_scan"),
			Behaviors:       set("privilege_escalation", "multi_host_access", "pass_the_hash"),
			SeverityPrior:   SeverityMedium,
			IndicatorWeight: 0.5,
			BehaviorWeight:  0.5,
			Recommendations: []string{
				"Strengthen network segmentation",
				"Audit credential reuse across hosts",
			},
		},
		CategorySnake: {
			Category:        CategorySnake,
			Indicators:      set("hidden_service_indicator", "rootkit_signature", "process_hiding"),
			Behaviors:       set("stealth_persistence", "log_tampering"),
			SeverityPrior:   SeverityCritical,
			IndicatorWeight: 0.8,
			BehaviorWeight:  0.2,
			Recommendations: []string{
				"Run integrity verification on system binaries",
				"Check for rootkit persistence mechanisms",
			},
		},
		CategoryParasite: {
			Category:        CategoryParasite,
			Indicators:      set("resource_hijack_indicator", "cryptomining_signature", "unauthorized_service"),
			Behaviors:       set("resource_exhaustion", "unauthorized_scheduling"),
			SeverityPrior:   SeverityMedium,
			IndicatorWeight: 0.7,
			BehaviorWeight:  0.3,
			Recommendations: []string{
				"Audit scheduled tasks and services",
				"Check CPU/GPU utilization anomalies",
			},
		},
		CategoryBat: {
			Category:        CategoryBat,
			Indicators:      set("recon_indicator", "port_scan_signature", "enumeration_activity"),
			Behaviors:       set("reconnaissance", "service_enumeration"),
			SeverityPrior:   SeverityLow,
			IndicatorWeight: 0.6,
			BehaviorWeight:  0.4,
			Recommendations: []string{
				"Increase monitoring on scanned assets",
				"Deploy a decoy service on probed ports",
			},
		},
	}
}
