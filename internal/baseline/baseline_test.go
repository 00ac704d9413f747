package baseline

import (
	"testing"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		LearningPeriod: 30 * 24 * time.Hour,
		MinSamples:     10,
		UpdateInterval: time.Hour,
	}
}

func TestNoBaselineBelowMinSamples(t *testing.T) {
	l := New(testConfig())
	now := time.Now()

	for i := 0; i < 5; i++ {
		l.Record("requests_per_min", 100, now)
	}

	_, ok := l.GetBaseline("requests_per_min")
	assert.False(t, ok)

	result := l.IsAnomalous("requests_per_min", 500, 2.0)
	assert.False(t, result.IsAnomalous)
	assert.Equal(t, "no_baseline", result.Reason)
}

func TestRecomputesAfterMinSamples(t *testing.T) {
	l := New(testConfig())
	now := time.Now()

	for i := 0; i < 10; i++ {
		l.Record("requests_per_min", 100, now)
	}

	b, ok := l.GetBaseline("requests_per_min")
	require.True(t, ok)
	assert.Equal(t, 100.0, b.Mean)
	assert.Equal(t, 10, b.SampleCount)
}

func TestDoesNotRecomputeBeforeUpdateInterval(t *testing.T) {
	l := New(testConfig())
	now := time.Now()

	for i := 0; i < 10; i++ {
		l.Record("m", 100, now)
	}
	for i := 0; i < 10; i++ {
		l.Record("m", 900, now.Add(time.Minute))
	}

	b, _ := l.GetBaseline("m")
	assert.Equal(t, 100.0, b.Mean, "mean should not have shifted before update_interval elapsed")
}

func TestRecomputesAfterUpdateIntervalElapses(t *testing.T) {
	l := New(testConfig())
	now := time.Now()

	for i := 0; i < 10; i++ {
		l.Record("m", 100, now)
	}
	for i := 0; i < 10; i++ {
		l.Record("m", 900, now.Add(2*time.Hour))
	}

	b, _ := l.GetBaseline("m")
	assert.InDelta(t, 500.0, b.Mean, 1.0)
	assert.Equal(t, 20, b.SampleCount)
}

func TestEvictsSamplesOlderThanLearningPeriod(t *testing.T) {
	cfg := Config{LearningPeriod: time.Hour, MinSamples: 5, UpdateInterval: time.Minute}
	l := New(cfg)
	now := time.Now()

	for i := 0; i < 5; i++ {
		l.Record("m", 100, now)
	}
	for i := 0; i < 5; i++ {
		l.Record("m", 900, now.Add(2*time.Hour))
	}

	b, ok := l.GetBaseline("m")
	require.True(t, ok)
	assert.Equal(t, 5, b.SampleCount, "samples from beyond the learning period must be evicted")
	assert.Equal(t, 900.0, b.Mean)
}

func TestIsAnomalousSeverityTiers(t *testing.T) {
	l := New(testConfig())
	now := time.Now()

	values := []float64{98, 99, 100, 101, 102, 98, 99, 100, 101, 102}
	for _, v := range values {
		l.Record("m", v, now)
	}

	b, ok := l.GetBaseline("m")
	require.True(t, ok)
	require.Greater(t, b.Stdev, 0.0)

	normal := l.IsAnomalous("m", b.Mean, 2.0)
	assert.Equal(t, domain.AnomalyNormal, normal.Severity)
	assert.False(t, normal.IsAnomalous)

	critical := l.IsAnomalous("m", b.Mean+b.Stdev*10, 2.0)
	assert.True(t, critical.IsAnomalous)
	assert.Equal(t, domain.AnomalyCritical, critical.Severity)
	assert.Equal(t, 0.95, critical.Confidence)
}

func TestIsAnomalousZeroStdevUsesEpsilonGuard(t *testing.T) {
	l := New(testConfig())
	now := time.Now()
	for i := 0; i < 10; i++ {
		l.Record("flat", 50, now)
	}

	result := l.IsAnomalous("flat", 50.0001, 2.0)
	assert.True(t, result.IsAnomalous, "any deviation from a zero-variance baseline should register as anomalous")
}

func TestExportImportRoundTripsGetBaseline(t *testing.T) {
	l := New(testConfig())
	now := time.Now()

	for i := 0; i < 10; i++ {
		l.Record("requests_per_min", 100, now)
	}
	for i := 0; i < 10; i++ {
		l.Record("error_rate", float64(i), now)
	}

	exported := l.Export()
	require.Len(t, exported, 2)

	fresh := New(testConfig())
	fresh.Import(exported)

	for _, name := range []string{"requests_per_min", "error_rate"} {
		want, ok := l.GetBaseline(name)
		require.True(t, ok)
		got, ok := fresh.GetBaseline(name)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestExportOmitsMetricsWithoutComputedStatistics(t *testing.T) {
	l := New(testConfig())
	l.Record("too_few_samples", 1, time.Now())

	exported := l.Export()
	assert.Empty(t, exported)
}

func TestPercentilesMatchSortedIndexFormula(t *testing.T) {
	cfg := testConfig()
	cfg.UpdateInterval = 0 // recompute on every record so the snapshot covers all 100 samples
	l := New(cfg)
	now := time.Now()
	for i := 1; i <= 100; i++ {
		l.Record("p", float64(i), now)
	}

	b, ok := l.GetBaseline("p")
	require.True(t, ok)
	// sorted[i] holds value i+1; index = int(n*fraction).
	assert.Equal(t, 26.0, b.P25)
	assert.Equal(t, 51.0, b.P50)
	assert.Equal(t, 76.0, b.P75)
	assert.Equal(t, 96.0, b.P95)
	assert.Equal(t, 100.0, b.P99)
}
