package stain

import (
	"testing"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStain(tagID string, evidence ...string) domain.Stain {
	now := time.Now()
	return domain.Stain{
		TagID:       tagID,
		MarkerType:  domain.MarkerMalware,
		Color:       domain.ColorBlack,
		FirstSeen:   now,
		LastSeen:    now,
		HitCount:    1,
		Target:      domain.Target{IP: "10.0.0.5", Hostname: "db-01"},
		ThreatScore: 8.5,
		Confidence:  0.7,
		Evidence:    evidence,
		Status:      domain.StatusActiveThreat,
	}
}

func TestUpsertNewStainStored(t *testing.T) {
	s := New()
	stored := s.Upsert(sampleStain("tag-1", "a"))
	assert.Equal(t, 1, stored.HitCount)

	got, ok := s.Get("tag-1")
	require.True(t, ok)
	assert.Equal(t, "tag-1", got.TagID)
}

func TestUpsertSameTagIncrementsHitCountAndMergesEvidence(t *testing.T) {
	s := New()
	s.Upsert(sampleStain("tag-x", "a"))
	stored := s.Upsert(sampleStain("tag-x", "b"))

	assert.Equal(t, 2, stored.HitCount)
	assert.Equal(t, []string{"a", "b"}, stored.Evidence)
}

func TestUpsertKeepsHigherConfidenceAndScore(t *testing.T) {
	s := New()
	first := sampleStain("tag-y")
	first.Confidence = 0.4
	first.ThreatScore = 3.0
	s.Upsert(first)

	second := sampleStain("tag-y")
	second.Confidence = 0.9
	second.ThreatScore = 9.5
	stored := s.Upsert(second)

	assert.Equal(t, 0.9, stored.Confidence)
	assert.Equal(t, 9.5, stored.ThreatScore)
}

func TestUpsertDoesNotDuplicateEvidence(t *testing.T) {
	s := New()
	s.Upsert(sampleStain("tag-z", "a", "b"))
	stored := s.Upsert(sampleStain("tag-z", "b", "c"))

	assert.Equal(t, []string{"a", "b", "c"}, stored.Evidence)
}

func TestQueryByTypeColorIPScoreRange(t *testing.T) {
	s := New()
	s.Upsert(sampleStain("tag-a"))
	other := sampleStain("tag-b")
	other.MarkerType = domain.MarkerSnake
	other.Color = domain.ColorOrange
	other.Target.IP = "192.168.1.1"
	other.ThreatScore = 1.0
	s.Upsert(other)

	assert.Len(t, s.QueryByType(domain.MarkerMalware), 1)
	assert.Len(t, s.QueryByColor(domain.ColorOrange), 1)
	assert.Len(t, s.QueryByIP("192.168.1.1"), 1)
	assert.Len(t, s.QueryByScoreRange(8.0, 10.0), 1)
	assert.Len(t, s.QueryByScoreRange(0.0, 2.0), 1)
}

func TestLinkIsSymmetric(t *testing.T) {
	s := New()
	s.Upsert(sampleStain("a"))
	s.Upsert(sampleStain("b"))
	s.Link("a", "b")

	linksA := s.Links("a")
	linksB := s.Links("b")
	assert.Contains(t, linksA, "b")
	assert.Contains(t, linksB, "a")

	stainA, _ := s.Get("a")
	stainB, _ := s.Get("b")
	assert.Contains(t, stainA.LinkedTags, "b")
	assert.Contains(t, stainB.LinkedTags, "a")
}

func TestLinkMissingTagIsNoOp(t *testing.T) {
	s := New()
	s.Upsert(sampleStain("a"))
	s.Link("a", "does-not-exist")

	assert.Empty(t, s.Links("a"))
}

func TestSearchMatchesAcrossFields(t *testing.T) {
	s := New()
	st := sampleStain("tag-search")
	st.Evidence = []string{"found-c2-beacon"}
	s.Upsert(st)

	assert.Len(t, s.Search("db-01"), 1)
	assert.Len(t, s.Search("C2-BEACON"), 1)
	assert.Len(t, s.Search("10.0.0.5"), 1)
	assert.Empty(t, s.Search("nonexistent"))
}

func TestStatsAggregates(t *testing.T) {
	s := New()
	s.Upsert(sampleStain("a"))
	high := sampleStain("b")
	high.ThreatScore = 9.0
	s.Upsert(high)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByType[domain.MarkerMalware])
	assert.Equal(t, 2, stats.HighThreatCount)
	assert.InDelta(t, 8.75, stats.AvgThreatScore, 0.01)
}

func TestConcurrentUpsertsSameTagSerialize(t *testing.T) {
	s := New()
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		go func() {
			s.Upsert(sampleStain("race-tag", "e"))
			done <- struct{}{}
		}()
	}
	for i := 0; i < 100; i++ {
		<-done
	}

	got, ok := s.Get("race-tag")
	require.True(t, ok)
	assert.Equal(t, 100, got.HitCount)
}
