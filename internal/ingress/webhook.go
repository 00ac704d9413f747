package ingress

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iff-guardian/nanoguard/internal/nanobot"
	"github.com/iff-guardian/nanoguard/pkg/logger"
)

// WebhookRelay receives third-party honeypot interaction callbacks on a
// plain mux router, distinct from the gin-based gateway, and forwards them
// to the honeypot agent.
type WebhookRelay struct {
	log      logger.Logger
	honeypot *nanobot.Honeypot
}

// NewWebhookRelay constructs a relay bound to honeypot.
func NewWebhookRelay(log logger.Logger, honeypot *nanobot.Honeypot) *WebhookRelay {
	return &WebhookRelay{log: log, honeypot: honeypot}
}

// Routes registers the relay's single endpoint on router.
func (w *WebhookRelay) Routes(router *mux.Router) {
	router.HandleFunc("/webhook/honeypot/{id}", w.handleInteraction).Methods(http.MethodPost)
}

type interactionPayload struct {
	Interaction map[string]any `json:"interaction"`
}

func (w *WebhookRelay) handleInteraction(resp http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	var payload interactionPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(resp, "invalid interaction payload", http.StatusBadRequest)
		return
	}

	if !w.honeypot.RecordInteraction(id, payload.Interaction) {
		w.log.Warn("honeypot interaction for unknown deployment", "deployment_id", id)
		http.Error(resp, "unknown honeypot deployment", http.StatusNotFound)
		return
	}

	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(resp).Encode(map[string]any{"deployment_id": id, "recorded": true})
}
