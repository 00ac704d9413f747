// Package classifier assigns the closed threat taxonomy to a set of
// observed indicators and behaviors via weighted multi-signal scoring,
// across the closed threat-category taxonomy.
package classifier

import (
	"sort"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// Result is one taxonomy match, scored and annotated with recommendations.
type Result struct {
	Category          domain.ThreatCategory
	Score             float64
	Severity          domain.Severity
	MatchedIndicators []string
	MatchedBehaviors  []string
	Recommendations   []string
}

// Classifier scores indicators/behaviors against a fixed category profile
// table.
type Classifier struct {
	profiles map[domain.ThreatCategory]domain.CategoryProfile
}

// New constructs a Classifier from the given profile table. Pass
// domain.DefaultCategoryProfiles() for the standard taxonomy.
func New(profiles map[domain.ThreatCategory]domain.CategoryProfile) *Classifier {
	return &Classifier{profiles: profiles}
}

// Classify scores indicators and behaviors against every category and
// returns the results sorted by descending score, with domain.CategoryOrder
// used as the fixed tie-break.
func (c *Classifier) Classify(indicators, behaviors []string) []Result {
	results := make([]Result, 0, len(c.profiles))

	for category, profile := range c.profiles {
		matchedIndicators := intersect(indicators, profile.Indicators)
		matchedBehaviors := intersect(behaviors, profile.Behaviors)

		indicatorScore := fraction(len(matchedIndicators), len(profile.Indicators))
		behaviorScore := fraction(len(matchedBehaviors), len(profile.Behaviors))

		score := indicatorScore*profile.IndicatorWeight + behaviorScore*profile.BehaviorWeight

		results = append(results, Result{
			Category:          category,
			Score:             score,
			Severity:          profile.SeverityPrior,
			MatchedIndicators: matchedIndicators,
			MatchedBehaviors:  matchedBehaviors,
			Recommendations:   profile.Recommendations,
		})
	}

	sortResults(results)
	return results
}

// Best returns the top-scoring category. Every category is scored even
// when nothing intersects its keyword sets, so with a non-empty profile
// table this always returns a winner — at confidence 0 for an empty or
// wholly unmatched indicator/behavior set. It only returns false when the
// classifier itself holds no categories to score against.
func (c *Classifier) Best(indicators, behaviors []string) (Result, bool) {
	results := c.Classify(indicators, behaviors)
	if len(results) == 0 {
		return Result{}, false
	}
	return results[0], true
}

func intersect(observed []string, allowed map[string]struct{}) []string {
	matched := make([]string, 0)
	for _, o := range observed {
		if _, ok := allowed[o]; ok {
			matched = append(matched, o)
		}
	}
	return matched
}

func fraction(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

func sortResults(results []Result) {
	rank := make(map[domain.ThreatCategory]int, len(domain.CategoryOrder))
	for i, cat := range domain.CategoryOrder {
		rank[cat] = i
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return rank[results[i].Category] < rank[results[j].Category]
	})
}
