package nanobot

import (
	"testing"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreatHunterCanHandleIndicatorEvents(t *testing.T) {
	h := NewThreatHunter("hunter-1")
	ioc := domain.NewEvent("sensor", domain.EventThreatIndicator, nil)
	assert.True(t, h.CanHandle(ioc))

	pattern := domain.NewEvent("sensor", domain.EventNetFlow, map[string]any{"suspicious_pattern": true})
	assert.True(t, h.CanHandle(pattern))

	unrelated := domain.NewEvent("sensor", domain.EventAuthFail, nil)
	assert.False(t, h.CanHandle(unrelated))
}

func TestThreatHunterAssessScalesWithIOCCount(t *testing.T) {
	h := NewThreatHunter("hunter-1")
	event := domain.NewEvent("sensor", domain.EventThreatIndicator, map[string]any{
		"iocs": []string{"a", "b", "c", "d"},
	})
	confidence := h.Assess(event)
	assert.InDelta(t, 0.2+0.6, confidence, 0.001, "capped at 3 IOCs worth of credit")
}

func TestThreatHunterExecuteRecordsCaughtThreats(t *testing.T) {
	h := NewThreatHunter("hunter-1")
	event := domain.NewEvent("sensor", domain.EventThreatIndicator, map[string]any{
		"iocs":               []string{"ioc-1", "ioc-2"},
		"suspicious_pattern": true,
		"threat_type":        "malware",
	})

	result := h.Execute(event, 0.9)
	require.Equal(t, domain.ActionSuccess, result.Status)
	assert.Equal(t, 3, result.Detail["caught_count"])

	caught := h.GetCaughtThreats()
	assert.Len(t, caught, 3)
}

func TestThreatHunterExecuteRequiresIOCs(t *testing.T) {
	h := NewThreatHunter("hunter-1")
	event := domain.NewEvent("sensor", domain.EventThreatIndicator, nil)
	result := h.Execute(event, 0.9)
	assert.Equal(t, domain.ActionFailed, result.Status)
}

func TestThreatHunterCompleteHuntAndStatistics(t *testing.T) {
	h := NewThreatHunter("hunter-1")
	event := domain.NewEvent("sensor", domain.EventThreatIndicator, map[string]any{"iocs": []string{"ioc-1"}})
	result := h.Execute(event, 0.9)
	id := result.Detail["hunt_id"].(string)

	stats := h.GetHuntStatistics()
	assert.Equal(t, 1, stats.ActiveHunts)

	assert.True(t, h.CompleteHunt(id, map[string]any{"confirmed": true}))
	stats = h.GetHuntStatistics()
	assert.Equal(t, 1, stats.CompletedHunts)
	assert.Equal(t, 0, stats.ActiveHunts)
}
