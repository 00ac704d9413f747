package nanobot

import (
	"fmt"
	"sync"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// honeypotPortMap maps a scanned port to the service a decoy should mimic.
var honeypotPortMap = map[int]string{
	22:   "ssh",
	80:   "http",
	443:  "http",
	21:   "ftp",
	3306: "mysql",
	25:   "smtp",
}

// honeypotPortPriority fixes the selection order so the match is
// deterministic regardless of the scanned-ports payload order: ssh beats
// http beats ftp beats mysql beats smtp, mirroring the original probe order.
var honeypotPortPriority = []int{22, 80, 443, 21, 3306, 25}

// decoyPorts maps a decoy service type to the non-standard port it listens
// on, so a probing scanner cannot distinguish it from an unrelated service.
var decoyPorts = map[string]int{
	"ssh":   2222,
	"http":  8080,
	"ftp":   2121,
	"mysql": 3307,
	"smtp":  2525,
}

const defaultDecoyPort = 9999

// Deployment is one active honeypot decoy.
type Deployment struct {
	ID           string
	SourceIP     string
	ServiceType  string
	DecoyPort    int
	DeployedAt   time.Time
	Interactions []map[string]any
	Active       bool
}

// Honeypot deploys decoy services in response to reconnaissance activity.
// Grounded on the honeypot-deployment nanobot.
type Honeypot struct {
	id           string
	maxHoneypots int
	nextID       int

	mu          sync.Mutex
	deployments map[string]*Deployment
}

// NewHoneypot constructs a Honeypot capped at maxHoneypots concurrent
// decoys.
func NewHoneypot(id string, maxHoneypots int) *Honeypot {
	return &Honeypot{
		id:           id,
		maxHoneypots: maxHoneypots,
		deployments:  make(map[string]*Deployment),
	}
}

func (h *Honeypot) ID() string { return h.id }

func (h *Honeypot) CanHandle(event domain.Event) bool {
	switch event.Kind {
	case domain.EventPortScan:
		return true
	}
	return event.Bool("recon_activity") || event.Bool("suspicious_probing") || event.Bool("honeypot_trigger")
}

func (h *Honeypot) Assess(event domain.Event) float64 {
	confidence := 0.3

	if event.Kind == domain.EventPortScan {
		confidence += 0.25
	}
	if event.Bool("recon_activity") {
		confidence += 0.20
	}
	if event.Bool("suspicious_probing") {
		confidence += 0.15
	}

	scanTypes := event.StringSlice("scan_types")
	if len(scanTypes) > 2 {
		confidence += 0.15
	}

	portsScanned := int(event.Float("ports_scanned"))
	if portsScanned > 10 {
		confidence += 0.10
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// selectServiceType picks the decoy service to mimic from the set of ports
// the source actually scanned, falling back to ssh when none are recognized.
func selectServiceType(event domain.Event) string {
	portsScanned := event.IntSlice("ports_scanned")
	scanned := make(map[int]struct{}, len(portsScanned))
	for _, p := range portsScanned {
		scanned[p] = struct{}{}
	}

	for _, p := range honeypotPortPriority {
		if _, ok := scanned[p]; ok {
			return honeypotPortMap[p]
		}
	}
	return "ssh"
}

func (h *Honeypot) Execute(event domain.Event, confidence float64) domain.ActionResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	active := 0
	for _, d := range h.deployments {
		if d.Active {
			active++
		}
	}
	if active >= h.maxHoneypots {
		return errorResult("DEPLOY_HONEYPOT", confidence, fmt.Sprintf("max honeypots limit reached (%d)", h.maxHoneypots))
	}

	serviceType := selectServiceType(event)
	decoyPort, ok := decoyPorts[serviceType]
	if !ok {
		decoyPort = defaultDecoyPort
	}

	h.nextID++
	id := fmt.Sprintf("honeypot-%d", h.nextID)
	deployment := &Deployment{
		ID:          id,
		SourceIP:    sourceIP(event),
		ServiceType: serviceType,
		DecoyPort:   decoyPort,
		DeployedAt:  Now(),
		Active:      true,
	}
	h.deployments[id] = deployment

	return domain.NewActionResult("DEPLOY_HONEYPOT", domain.ActionSuccess, confidence, map[string]any{
		"honeypot_id":  id,
		"service_type": serviceType,
		"decoy_port":   decoyPort,
		"source_ip":    deployment.SourceIP,
	})
}

// RecordInteraction appends an observed interaction to an active honeypot,
// reporting whether the honeypot was found and active.
func (h *Honeypot) RecordInteraction(id string, interaction map[string]any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.deployments[id]
	if !ok || !d.Active {
		return false
	}
	d.Interactions = append(d.Interactions, interaction)
	return true
}

// DeactivateHoneypot retires a deployed decoy, reporting whether it existed.
func (h *Honeypot) DeactivateHoneypot(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.deployments[id]
	if !ok {
		return false
	}
	d.Active = false
	return true
}

// GetActiveHoneypots returns every currently active deployment.
func (h *Honeypot) GetActiveHoneypots() []Deployment {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Deployment
	for _, d := range h.deployments {
		if d.Active {
			out = append(out, *d)
		}
	}
	return out
}

// GetInteractions returns the recorded interactions for id.
func (h *Honeypot) GetInteractions(id string) []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.deployments[id]
	if !ok {
		return nil
	}
	return append([]map[string]any(nil), d.Interactions...)
}

// ClearAllHoneypots removes every deployment and returns the count removed.
func (h *Honeypot) ClearAllHoneypots() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.deployments)
	h.deployments = make(map[string]*Deployment)
	return n
}
