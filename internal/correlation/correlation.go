// Package correlation links related stains, reconstructs attack chains,
// builds threat graphs over connected components, and maps threats onto
// the forest hierarchy.
package correlation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// linkThreshold is the minimum correlation strength to group two stains
// under link_stains.
const linkThreshold = 0.5

// edgeThreshold is the minimum correlation strength to draw a graph edge —
// looser than linkThreshold so the graph view surfaces weaker relationships
// link_stains groups would drop.
const edgeThreshold = 0.3

// chainGap is the maximum gap between consecutive stains before a new
// attack chain starts.
const chainGap = 2 * time.Hour

// Engine is the stain correlation engine. It is stateless: every method
// operates over the stain slice it is given.
type Engine struct{}

// New constructs a correlation Engine.
func New() *Engine {
	return &Engine{}
}

// StainGroup is a primary stain and the stains found correlated with it.
type StainGroup struct {
	PrimaryTagID        string
	LinkedTagIDs        []string
	CorrelationStrength float64
	CommonIndicators    [][]string
}

// correlationResult is strength plus the indicators that contributed to it.
type correlationResult struct {
	strength   float64
	indicators []string
}

func (e *Engine) correlate(a, b domain.Stain) correlationResult {
	var indicators []string
	var strength float64

	if a.Target.IP != "" && a.Target.IP == b.Target.IP {
		indicators = append(indicators, "same_ip")
		strength += 0.4
	}
	if !a.FirstSeen.IsZero() && !b.FirstSeen.IsZero() {
		diff := b.FirstSeen.Sub(a.FirstSeen)
		if diff < 0 {
			diff = -diff
		}
		if diff < time.Hour {
			indicators = append(indicators, "time_proximity")
			strength += 0.3
		}
	}
	if a.MarkerType != "" && a.MarkerType == b.MarkerType {
		indicators = append(indicators, "same_threat_type")
		strength += 0.3
	}
	if a.Forest.Tree != "" && a.Forest.Tree == b.Forest.Tree {
		indicators = append(indicators, "same_tree")
		strength += 0.2
	}

	if strength > 1.0 {
		strength = 1.0
	}
	return correlationResult{strength: strength, indicators: indicators}
}

// LinkStains groups stains whose pairwise correlation strength clears
// linkThreshold, greedily consuming each match so no stain appears in two
// groups.
func (e *Engine) LinkStains(stains []domain.Stain) []StainGroup {
	if len(stains) == 0 {
		return nil
	}

	processed := make(map[int]bool, len(stains))
	var groups []StainGroup

	for i, primary := range stains {
		if processed[i] {
			continue
		}

		group := StainGroup{PrimaryTagID: primary.TagID}
		var strengths []float64

		for j := i + 1; j < len(stains); j++ {
			if processed[j] {
				continue
			}
			result := e.correlate(primary, stains[j])
			if result.strength >= linkThreshold {
				group.LinkedTagIDs = append(group.LinkedTagIDs, stains[j].TagID)
				group.CommonIndicators = append(group.CommonIndicators, result.indicators)
				strengths = append(strengths, result.strength)
				processed[j] = true
			}
		}

		if len(group.LinkedTagIDs) > 0 {
			sum := 0.0
			for _, s := range strengths {
				sum += s
			}
			group.CorrelationStrength = sum / float64(len(strengths))
			processed[i] = true
			groups = append(groups, group)
		}
	}

	return groups
}

// IdentifyAttackChain sorts stains by first-seen time and breaks a new
// chain whenever consecutive stains are more than chainGap apart. Chains
// shorter than two stains are dropped.
func (e *Engine) IdentifyAttackChain(stains []domain.Stain) []domain.AttackChain {
	sorted := append([]domain.Stain(nil), stains...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FirstSeen.Before(sorted[j].FirstSeen)
	})

	var chains []domain.AttackChain
	var current []domain.Stain
	var lastTime time.Time
	haveLast := false

	flush := func() {
		if len(current) >= 2 {
			chains = append(chains, e.analyzeChain(current))
		}
		current = nil
	}

	for _, st := range sorted {
		if st.FirstSeen.IsZero() {
			continue
		}
		if haveLast && st.FirstSeen.Sub(lastTime) > chainGap {
			flush()
		}
		current = append(current, st)
		lastTime = st.FirstSeen
		haveLast = true
	}
	flush()

	return chains
}

func (e *Engine) analyzeChain(chain []domain.Stain) domain.AttackChain {
	pattern := identifyPattern(chain)

	ids := make([]string, len(chain))
	for i, s := range chain {
		ids[i] = s.TagID
	}

	return domain.AttackChain{
		ChainID:         fmt.Sprintf("chain_%s_%d", chain[0].TagID, len(chain)),
		StainIDs:        ids,
		StartTime:       chain[0].FirstSeen,
		EndTime:         chain[len(chain)-1].FirstSeen,
		Pattern:         pattern,
		Severity:        assessChainSeverity(chain),
		Recommendations: chainRecommendations(chain, pattern),
		MitreTactic:     domain.MitreTacticFor(pattern),
	}
}

func identifyPattern(chain []domain.Stain) string {
	types := make(map[domain.MarkerType]bool, len(chain))
	for _, s := range chain {
		types[s.MarkerType] = true
	}

	switch {
	case types[domain.MarkerCrow] && types[domain.MarkerMagpie]:
		return domain.PatternMalwareToExfiltration
	case types[domain.MarkerSquirrel]:
		return domain.PatternLateralMovement
	case len(types) == 1:
		return domain.PatternRepeatedAttack
	default:
		return domain.PatternMultiStageAttack
	}
}

func assessChainSeverity(chain []domain.Stain) domain.Severity {
	maxScore := 0.0
	for _, s := range chain {
		if s.ThreatScore > maxScore {
			maxScore = s.ThreatScore
		}
	}

	switch {
	case maxScore >= 8.0 || len(chain) >= 5:
		return domain.SeverityCritical
	case maxScore >= 6.0 || len(chain) >= 3:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

func chainRecommendations(chain []domain.Stain, pattern string) []string {
	recs := []string{
		fmt.Sprintf("Attack chain detected with %d stages", len(chain)),
		"Review all affected systems",
		"Check for additional compromised assets",
	}

	switch pattern {
	case domain.PatternLateralMovement:
		recs = append(recs, "Strengthen network segmentation")
	case domain.PatternMalwareToExfiltration:
		recs = append(recs, "Review DLP controls and data access")
	}
	return recs
}

// BuildThreatGraph builds the node/edge graph over stains and identifies
// connected-component clusters via iterative DFS.
func (e *Engine) BuildThreatGraph(stains []domain.Stain) domain.ThreatGraph {
	nodes := make([]domain.GraphNode, len(stains))
	for i, s := range stains {
		nodes[i] = domain.GraphNode{ID: s.TagID, Type: s.MarkerType, Score: s.ThreatScore, Timestamp: s.FirstSeen}
	}

	adjacency := make(map[string]map[string]struct{}, len(stains))
	var edges []domain.GraphEdge

	for i := 0; i < len(stains); i++ {
		for j := i + 1; j < len(stains); j++ {
			result := e.correlate(stains[i], stains[j])
			if result.strength < edgeThreshold {
				continue
			}
			edges = append(edges, domain.GraphEdge{
				Source:       stains[i].TagID,
				Target:       stains[j].TagID,
				Weight:       result.strength,
				Relationship: strings.Join(result.indicators, ", "),
			})
			addEdge(adjacency, stains[i].TagID, stains[j].TagID)
			addEdge(adjacency, stains[j].TagID, stains[i].TagID)
		}
	}

	density := 0.0
	if n := len(nodes); n > 1 {
		density = float64(len(edges)) / (float64(n) * float64(n-1) / 2)
	}

	return domain.ThreatGraph{
		Nodes:    nodes,
		Edges:    edges,
		Density:  density,
		Clusters: clusters(nodes, adjacency),
	}
}

func addEdge(adjacency map[string]map[string]struct{}, from, to string) {
	if adjacency[from] == nil {
		adjacency[from] = make(map[string]struct{})
	}
	adjacency[from][to] = struct{}{}
}

// clusters finds connected components of size >= 2 using iterative DFS
// with an explicit stack, avoiding recursion depth limits on large graphs.
func clusters(nodes []domain.GraphNode, adjacency map[string]map[string]struct{}) []domain.Cluster {
	visited := make(map[string]bool, len(nodes))
	var result []domain.Cluster

	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}

		component := make(map[string]struct{})
		stack := []string{n.ID}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[id] {
				continue
			}
			visited[id] = true
			component[id] = struct{}{}
			for neighbor := range adjacency[id] {
				if !visited[neighbor] {
					stack = append(stack, neighbor)
				}
			}
		}

		if len(component) > 1 {
			ids := make([]string, 0, len(component))
			for id := range component {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			result = append(result, domain.Cluster{ClusterID: len(result) + 1, Nodes: ids})
		}
	}

	return result
}

// TreeThreatSummary is one tree's aggregated threat view for forest mapping.
type TreeThreatSummary struct {
	TreeName        string
	ThreatCount     int
	MaxSeverity     domain.Severity
	ThreatDensity   float64
	Recommendations []string
}

// ForestThreatMap is the result of mapping a stain set onto forest trees.
type ForestThreatMap struct {
	ByTree             map[string]TreeThreatSummary
	TotalAffectedTrees int
	Summary            string
}

// MapForestThreats groups stains by forest tree and summarizes severity and
// density per tree, plus a forest-wide headline.
func (e *Engine) MapForestThreats(totalTrees int, stains []domain.Stain) ForestThreatMap {
	byTree := make(map[string]TreeThreatSummary)

	for _, s := range stains {
		tree := s.Forest.Tree
		if tree == "" {
			tree = "unknown"
		}
		summary := byTree[tree]
		summary.TreeName = tree
		summary.ThreatCount++
		if severityRank(severityFromScore(s.ThreatScore)) > severityRank(summary.MaxSeverity) {
			summary.MaxSeverity = severityFromScore(s.ThreatScore)
		}
		byTree[tree] = summary
	}

	denom := totalTrees
	if denom == 0 {
		denom = 1
	}
	for tree, summary := range byTree {
		summary.ThreatDensity = float64(summary.ThreatCount) / float64(denom)
		summary.Recommendations = treeRecommendations(summary)
		byTree[tree] = summary
	}

	return ForestThreatMap{
		ByTree:             byTree,
		TotalAffectedTrees: len(byTree),
		Summary:            summarizeForest(len(byTree), totalTrees),
	}
}

func severityFromScore(score float64) domain.Severity {
	switch {
	case score >= 8.0:
		return domain.SeverityCritical
	case score >= 6.0:
		return domain.SeverityHigh
	case score >= 4.0:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func severityRank(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 4
	case domain.SeverityHigh:
		return 3
	case domain.SeverityMedium:
		return 2
	case domain.SeverityLow:
		return 1
	default:
		return 0
	}
}

func treeRecommendations(summary TreeThreatSummary) []string {
	var recs []string
	if summary.ThreatCount >= 3 {
		recs = append(recs, "Multiple threats detected - consider isolation")
	}
	if summary.MaxSeverity == domain.SeverityCritical {
		recs = append(recs, "Critical severity - immediate action required", "Deploy nanobots for containment")
	}
	if summary.ThreatCount > 0 {
		recs = append(recs, "Increase monitoring on affected branches")
	}
	return recs
}

func summarizeForest(affected, total int) string {
	if total == 0 {
		return "No forest data available"
	}
	pct := float64(affected) / float64(total) * 100

	switch {
	case pct >= 50:
		return fmt.Sprintf("CRITICAL: %.1f%% of forest affected", pct)
	case pct >= 25:
		return fmt.Sprintf("HIGH: %.1f%% of forest affected", pct)
	case pct >= 10:
		return fmt.Sprintf("MEDIUM: %.1f%% of forest affected", pct)
	default:
		return fmt.Sprintf("LOW: %.1f%% of forest affected", pct)
	}
}
