package forest

import (
	"testing"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stainWithLocation(tree, branch string, score float64) domain.Stain {
	return domain.Stain{
		TagID:       "t-" + tree,
		ThreatScore: score,
		Forest:      domain.ForestLocation{Tree: tree, Branch: branch},
	}
}

func TestRegistryRecordTracksTreeAndBranch(t *testing.T) {
	r := New()
	r.Record(stainWithLocation("host-1", "nginx", 4.0))

	tree, ok := r.Get("host-1")
	require.True(t, ok)
	assert.Equal(t, 1, tree.ThreatCount)
	assert.Equal(t, 80.0, tree.HealthScore)

	branch, ok := r.Get("host-1/nginx")
	require.True(t, ok)
	assert.Equal(t, 1, branch.ThreatCount)
}

func TestRegistryStatusEscalatesWithHealthDecay(t *testing.T) {
	r := New()
	r.Record(stainWithLocation("host-1", "", 9.0))
	r.Record(stainWithLocation("host-1", "", 9.0))
	component, _ := r.Get("host-1")
	assert.Equal(t, StatusCompromised, component.Status, "two near-critical stains push health below the 30 compromised floor")

	r2 := New()
	r2.Record(stainWithLocation("host-2", "", 3.0))
	component2, _ := r2.Get("host-2")
	assert.Equal(t, StatusWarning, component2.Status)
}

func TestRegistryIgnoresStainsWithoutForestLocation(t *testing.T) {
	r := New()
	r.Record(domain.Stain{TagID: "t1", ThreatScore: 5})
	assert.Empty(t, r.All())
}

func TestRegistrySummaryAggregates(t *testing.T) {
	r := New()
	r.Record(stainWithLocation("host-1", "", 2.0))
	r.Record(stainWithLocation("host-2", "", 9.0))

	summary := r.Summary()
	assert.Equal(t, 2, summary.TotalComponents)
	assert.Equal(t, 2, summary.TotalThreats)
	assert.Equal(t, 2, summary.ThreatenedComponents)
}

func TestRegistryAllSortedByID(t *testing.T) {
	r := New()
	r.Record(stainWithLocation("host-b", "", 1.0))
	r.Record(stainWithLocation("host-a", "", 1.0))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "host-a", all[0].ID)
	assert.Equal(t, "host-b", all[1].ID)
}
