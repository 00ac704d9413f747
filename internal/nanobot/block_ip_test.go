package nanobot

import (
	"testing"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threatScorePtr(v float64) *float64 { return &v }

func TestIPBlockerAssessCombinesSignals(t *testing.T) {
	b := NewIPBlocker("blocker-1", nil, 10)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip":           "10.0.0.5",
		"port_scan_detected":  true,
		"failed_auth_attempts": 5,
	})
	event.ThreatScore = threatScorePtr(8.5)

	confidence := b.Assess(event)
	assert.InDelta(t, 1.0, confidence, 0.001, "0.5 base + 0.2 scan + 0.15 failed + 0.2 score caps at 1.0")
}

func TestIPBlockerExecuteBlocksAndSkipsWhitelisted(t *testing.T) {
	b := NewIPBlocker("blocker-1", []string{"10.0.0.9"}, 2)

	whitelisted := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "10.0.0.9"})
	result := b.Execute(whitelisted, 0.9)
	assert.Equal(t, domain.ActionSkipped, result.Status)
	assert.Equal(t, "whitelisted", result.Detail["reason"])

	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "10.0.0.5"})
	result = b.Execute(event, 0.95)
	require.Equal(t, domain.ActionSuccess, result.Status)
	assert.Contains(t, b.BlockedIPs(), "10.0.0.5")

	again := b.Execute(event, 0.95)
	assert.Equal(t, domain.ActionSkipped, again.Status)
	assert.Equal(t, "already_blocked", again.Detail["reason"])
}

func TestIPBlockerExecuteRejectsInvalidIP(t *testing.T) {
	b := NewIPBlocker("blocker-1", nil, 10)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "not-an-ip"})
	result := b.Execute(event, 0.9)
	assert.Equal(t, domain.ActionFailed, result.Status)
}

func TestIPBlockerExecuteEnforcesMaxBlocks(t *testing.T) {
	b := NewIPBlocker("blocker-1", nil, 1)
	first := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "10.0.0.1"})
	second := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "10.0.0.2"})

	require.Equal(t, domain.ActionSuccess, b.Execute(first, 0.9).Status)
	result := b.Execute(second, 0.9)
	assert.Equal(t, domain.ActionFailed, result.Status)
}

func TestIPBlockerUnblockAndClearAllBlocks(t *testing.T) {
	b := NewIPBlocker("blocker-1", nil, 10)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "10.0.0.1"})
	b.Execute(event, 0.9)

	assert.True(t, b.Unblock("10.0.0.1"))
	assert.False(t, b.Unblock("10.0.0.1"))

	b.Execute(event, 0.9)
	assert.Equal(t, 1, b.ClearAllBlocks())
	assert.Empty(t, b.BlockedIPs())
}
