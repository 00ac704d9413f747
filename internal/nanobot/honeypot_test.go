package nanobot

import (
	"testing"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoneypotCanHandlePortScanAndRecon(t *testing.T) {
	h := NewHoneypot("honeypot-1", 3)
	scan := domain.NewEvent("sensor", domain.EventPortScan, nil)
	assert.True(t, h.CanHandle(scan))

	recon := domain.NewEvent("sensor", domain.EventNetFlow, map[string]any{"recon_activity": true})
	assert.True(t, h.CanHandle(recon))

	other := domain.NewEvent("sensor", domain.EventAuthFail, nil)
	assert.False(t, h.CanHandle(other))
}

func TestHoneypotExecuteDeploysDecoyWithNonStandardPort(t *testing.T) {
	h := NewHoneypot("honeypot-1", 3)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip":     "10.0.0.1",
		"ports_scanned": []int{22},
	})

	result := h.Execute(event, 0.8)
	require.Equal(t, domain.ActionSuccess, result.Status)
	assert.Equal(t, "ssh", result.Detail["service_type"])
	assert.Equal(t, 2222, result.Detail["decoy_port"])

	active := h.GetActiveHoneypots()
	require.Len(t, active, 1)
	assert.Equal(t, "10.0.0.1", active[0].SourceIP)
}

func TestHoneypotSelectsServiceTypeFromScannedPorts(t *testing.T) {
	h := NewHoneypot("honeypot-1", 3)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip":     "10.0.0.2",
		"ports_scanned": []any{float64(3306), float64(8081)},
	})

	result := h.Execute(event, 0.8)
	require.Equal(t, domain.ActionSuccess, result.Status)
	assert.Equal(t, "mysql", result.Detail["service_type"])
	assert.Equal(t, 3307, result.Detail["decoy_port"])
}

func TestHoneypotUnrecognizedPortsFallBackToSSH(t *testing.T) {
	h := NewHoneypot("honeypot-1", 3)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip":     "10.0.0.3",
		"ports_scanned": []int{8081, 9001},
	})

	result := h.Execute(event, 0.8)
	require.Equal(t, domain.ActionSuccess, result.Status)
	assert.Equal(t, "ssh", result.Detail["service_type"])
}

func TestHoneypotExecuteEnforcesMaxHoneypots(t *testing.T) {
	h := NewHoneypot("honeypot-1", 1)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "10.0.0.1"})

	require.Equal(t, domain.ActionSuccess, h.Execute(event, 0.8).Status)
	result := h.Execute(event, 0.8)
	assert.Equal(t, domain.ActionFailed, result.Status)
}

func TestHoneypotRecordInteractionAndDeactivate(t *testing.T) {
	h := NewHoneypot("honeypot-1", 3)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "10.0.0.1"})
	result := h.Execute(event, 0.8)
	id := result.Detail["honeypot_id"].(string)

	assert.True(t, h.RecordInteraction(id, map[string]any{"command": "ls"}))
	assert.Len(t, h.GetInteractions(id), 1)

	assert.True(t, h.DeactivateHoneypot(id))
	assert.Empty(t, h.GetActiveHoneypots())
	assert.False(t, h.RecordInteraction(id, map[string]any{"command": "ls"}))
}

func TestHoneypotClearAllHoneypots(t *testing.T) {
	h := NewHoneypot("honeypot-1", 3)
	event := domain.NewEvent("sensor", domain.EventPortScan, map[string]any{"source_ip": "10.0.0.1"})
	h.Execute(event, 0.8)

	assert.Equal(t, 1, h.ClearAllHoneypots())
	assert.Empty(t, h.GetActiveHoneypots())
}
