package correlation

import (
	"testing"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stainAt(tagID string, marker domain.MarkerType, ip string, at time.Time, score float64) domain.Stain {
	return domain.Stain{
		TagID:       tagID,
		MarkerType:  marker,
		Target:      domain.Target{IP: ip},
		FirstSeen:   at,
		ThreatScore: score,
	}
}

func TestLinkStainsGroupsBySameIPAndTimeProximity(t *testing.T) {
	e := New()
	now := time.Now()

	stains := []domain.Stain{
		stainAt("a", domain.MarkerCrow, "10.0.0.1", now, 5),
		stainAt("b", domain.MarkerCrow, "10.0.0.1", now.Add(time.Minute), 5),
		stainAt("c", domain.MarkerBat, "192.168.1.1", now.Add(48*time.Hour), 2),
	}

	groups := e.LinkStains(stains)
	require.Len(t, groups, 1)
	assert.Equal(t, "a", groups[0].PrimaryTagID)
	assert.Equal(t, []string{"b"}, groups[0].LinkedTagIDs)
}

func TestIdentifyAttackChainBreaksOnGapAndDropsShortChains(t *testing.T) {
	e := New()
	now := time.Now()

	stains := []domain.Stain{
		stainAt("s1", domain.MarkerCrow, "", now, 5),
		stainAt("s2", domain.MarkerMagpie, "", now.Add(30*time.Minute), 6),
		stainAt("s3", domain.MarkerSquirrel, "", now.Add(3*time.Hour), 4),
	}

	chains := e.IdentifyAttackChain(stains)
	require.Len(t, chains, 1, "the isolated SQUIRREL stain forms a chain of length 1 and is dropped")
	assert.Equal(t, []string{"s1", "s2"}, chains[0].StainIDs)
	assert.Equal(t, domain.PatternMalwareToExfiltration, chains[0].Pattern)
}

func TestIdentifyAttackChainRepeatedAttackPattern(t *testing.T) {
	e := New()
	now := time.Now()

	stains := []domain.Stain{
		stainAt("s1", domain.MarkerBat, "", now, 2),
		stainAt("s2", domain.MarkerBat, "", now.Add(time.Minute), 2),
	}

	chains := e.IdentifyAttackChain(stains)
	require.Len(t, chains, 1)
	assert.Equal(t, domain.PatternRepeatedAttack, chains[0].Pattern)
	assert.Equal(t, domain.SeverityMedium, chains[0].Severity)
}

func TestBuildThreatGraphFindsClusters(t *testing.T) {
	e := New()
	now := time.Now()

	stains := []domain.Stain{
		stainAt("a", domain.MarkerCrow, "10.0.0.1", now, 5),
		stainAt("b", domain.MarkerCrow, "10.0.0.1", now.Add(time.Minute), 5),
		stainAt("c", domain.MarkerBat, "172.16.0.1", now.Add(72*time.Hour), 1),
	}

	graph := e.BuildThreatGraph(stains)
	assert.Len(t, graph.Nodes, 3)
	require.Len(t, graph.Clusters, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, graph.Clusters[0].Nodes)
}

func TestMapForestThreatsGroupsByTreeAndSeverity(t *testing.T) {
	e := New()
	now := time.Now()

	s1 := stainAt("a", domain.MarkerCrow, "", now, 9.0)
	s1.Forest.Tree = "tree-1"
	s2 := stainAt("b", domain.MarkerBat, "", now, 1.0)
	s2.Forest.Tree = "tree-1"

	result := e.MapForestThreats(4, []domain.Stain{s1, s2})
	require.Contains(t, result.ByTree, "tree-1")
	tree := result.ByTree["tree-1"]
	assert.Equal(t, 2, tree.ThreatCount)
	assert.Equal(t, domain.SeverityCritical, tree.MaxSeverity)
	assert.Equal(t, 0.5, tree.ThreatDensity)
}
