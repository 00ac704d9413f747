package nanobot

import (
	"testing"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertNanobotCanHandleEverything(t *testing.T) {
	a := NewAlertNanobot("alert-1", domain.AlertInfo)
	assert.True(t, a.CanHandle(domain.NewEvent("sensor", domain.EventNetFlow, nil)))
}

func TestAlertNanobotAssessMapsThreatScoreToConfidenceTiers(t *testing.T) {
	a := NewAlertNanobot("alert-1", domain.AlertInfo)

	critical := domain.NewEvent("sensor", domain.EventNetFlow, nil)
	critical.ThreatScore = threatScorePtr(9.5)
	assert.Equal(t, 0.95, a.Assess(critical))

	warn := domain.NewEvent("sensor", domain.EventNetFlow, nil)
	warn.ThreatScore = threatScorePtr(4.0)
	assert.Equal(t, 0.50, a.Assess(warn))
}

func TestAlertNanobotExecuteRaisesAboveMinLevel(t *testing.T) {
	a := NewAlertNanobot("alert-1", domain.AlertWarning)

	event := domain.NewEvent("sensor", domain.EventNetFlow, nil)
	event.ThreatScore = threatScorePtr(8.0)

	result := a.Execute(event, 0.85)
	require.Equal(t, domain.ActionSuccess, result.Status)
	assert.Equal(t, string(domain.AlertElevated), result.Detail["level"])

	active := a.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, domain.AlertElevated, active[0].Level)
}

func TestAlertNanobotExecuteSkipsBelowMinLevel(t *testing.T) {
	a := NewAlertNanobot("alert-1", domain.AlertCritical)
	event := domain.NewEvent("sensor", domain.EventNetFlow, nil)

	result := a.Execute(event, 0.40)
	assert.Equal(t, domain.ActionSkipped, result.Status)
	assert.Empty(t, a.GetActiveAlerts())
}

func TestAlertNanobotAcknowledgeAndClearOldAlerts(t *testing.T) {
	a := NewAlertNanobot("alert-1", domain.AlertInfo)
	event := domain.NewEvent("sensor", domain.EventNetFlow, nil)
	result := a.Execute(event, 0.40)
	id := result.Detail["alert_id"].(string)

	assert.True(t, a.AcknowledgeAlert(id))
	assert.False(t, a.AcknowledgeAlert("missing"))

	removed := a.ClearOldAlerts(time.Now().Add(time.Hour))
	assert.Equal(t, 1, removed)
}

func TestAlertNanobotGetAlertStatistics(t *testing.T) {
	a := NewAlertNanobot("alert-1", domain.AlertInfo)
	event := domain.NewEvent("sensor", domain.EventNetFlow, nil)
	event.ThreatScore = threatScorePtr(9.5)
	a.Execute(event, a.Assess(event))

	stats := a.GetAlertStatistics()
	assert.Equal(t, 1, stats[domain.AlertBreach])
}
