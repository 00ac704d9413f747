package ingress

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/iff-guardian/nanoguard/internal/nanobot"
	"github.com/iff-guardian/nanoguard/pkg/logger"
)

func TestWebhookRelayRecordsInteractionForKnownDeployment(t *testing.T) {
	honeypot := nanobot.NewHoneypot("honeypot-1", 10)
	result := honeypot.Execute(domain.NewEvent("sensor", domain.EventPortScan, map[string]any{
		"source_ip": "10.0.0.9",
		"port":      22,
	}), 0.8)
	require.Equal(t, domain.ActionSuccess, result.Status)
	deploymentID, ok := result.Detail["honeypot_id"].(string)
	require.True(t, ok, "deploy result must carry honeypot_id")

	relay := NewWebhookRelay(logger.NewNoop(), honeypot)
	router := mux.NewRouter()
	relay.Routes(router)

	body, _ := json.Marshal(map[string]any{
		"interaction": map[string]any{"command": "ls -la"},
	})
	req := httptest.NewRequest(http.MethodPost, "/webhook/honeypot/"+deploymentID, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhookRelayUnknownDeploymentReturnsNotFound(t *testing.T) {
	honeypot := nanobot.NewHoneypot("honeypot-1", 10)
	relay := NewWebhookRelay(logger.NewNoop(), honeypot)
	router := mux.NewRouter()
	relay.Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/webhook/honeypot/unknown-id", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
