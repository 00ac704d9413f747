package nanobot

import (
	"testing"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManagerWithBlocker(t *testing.T) (*Manager, *IPBlocker) {
	t.Helper()
	m := NewManager()
	blocker := NewIPBlocker("blocker-1", nil, 10)
	agent := NewAgent(blocker, domain.ModeDefensive, 0.90, 0.70)
	m.Register(agent)
	return m, blocker
}

func TestManagerRegisterUnregisterGetByMode(t *testing.T) {
	m, _ := newTestManagerWithBlocker(t)
	assert.Len(t, m.GetByMode(domain.ModeDefensive), 1)
	assert.Empty(t, m.GetByMode(domain.ModeScout))

	assert.True(t, m.Unregister("blocker-1"))
	assert.False(t, m.Unregister("blocker-1"))
	assert.Empty(t, m.GetByMode(domain.ModeDefensive))
}

func TestManagerActivateAndProcessDispatchesToActiveAgents(t *testing.T) {
	m, blocker := newTestManagerWithBlocker(t)

	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip": "10.0.0.1", "known_malicious": true, "port_scan_detected": true,
	})

	results := m.Process(event)
	assert.Empty(t, results, "inactive agents produce no result")

	m.ActivateAll()
	results = m.Process(event)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ActionSuccess, results[0].Status)
	assert.Contains(t, blocker.BlockedIPs(), "10.0.0.1")
}

func TestManagerActivateModeAndDeactivateMode(t *testing.T) {
	m, _ := newTestManagerWithBlocker(t)
	m.ActivateMode(domain.ModeDefensive)
	assert.True(t, m.GetByMode(domain.ModeDefensive)[0].IsActive())

	m.DeactivateMode(domain.ModeDefensive)
	assert.False(t, m.GetByMode(domain.ModeDefensive)[0].IsActive())
}

func TestManagerSubmitAndBackgroundWorkerDrainsQueue(t *testing.T) {
	m, blocker := newTestManagerWithBlocker(t)
	m.ActivateAll()

	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip": "10.0.0.7", "known_malicious": true, "port_scan_detected": true,
	})
	m.Submit(event)

	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(blocker.BlockedIPs()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Contains(t, blocker.BlockedIPs(), "10.0.0.7")
}

func TestManagerStatsReflectsProcessing(t *testing.T) {
	m, _ := newTestManagerWithBlocker(t)
	m.ActivateAll()

	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip": "10.0.0.1", "known_malicious": true, "port_scan_detected": true,
	})
	m.Process(event)

	stats := m.Stats()
	assert.Equal(t, 1, stats.RegisteredAgents)
	assert.Equal(t, 1, stats.ActiveAgents)
	assert.Equal(t, 1, stats.EventsProcessed)
	assert.Equal(t, 1, stats.ActionsTaken)
}

func TestManagerRecentActionsAndClearHistory(t *testing.T) {
	m, _ := newTestManagerWithBlocker(t)
	m.ActivateAll()

	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip": "10.0.0.1", "known_malicious": true, "port_scan_detected": true,
	})
	m.Process(event)

	recent := m.RecentActions(10)
	require.Len(t, recent, 1)

	m.ClearHistory()
	assert.Empty(t, m.RecentActions(10))
}
