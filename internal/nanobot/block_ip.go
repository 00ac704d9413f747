package nanobot

import (
	"fmt"
	"net"
	"sync"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// IPBlocker blocks suspicious source IPs, capped at maxBlocks concurrently
// blocked addresses. Grounded on the defensive-mode IP-blocking nanobot;
// this port only implements the simulation method — the original's
// iptables/pf subprocess paths have no analog inside this process and are
// left to the effector the core hands its decision to.
type IPBlocker struct {
	id        string
	whitelist map[string]struct{}
	maxBlocks int

	mu      sync.Mutex
	blocked map[string]struct{}
	order   []string
}

// NewIPBlocker constructs an IPBlocker with the given whitelist and cap.
func NewIPBlocker(id string, whitelist []string, maxBlocks int) *IPBlocker {
	set := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		set[ip] = struct{}{}
	}
	return &IPBlocker{
		id:        id,
		whitelist: set,
		maxBlocks: maxBlocks,
		blocked:   make(map[string]struct{}),
	}
}

func (b *IPBlocker) ID() string { return b.id }

func (b *IPBlocker) CanHandle(event domain.Event) bool {
	return event.Has("source_ip") || event.Has("ip")
}

func (b *IPBlocker) Assess(event domain.Event) float64 {
	confidence := confidenceOf(event, 0.5)
	threatScore := threatScoreOf(event)

	if event.Bool("port_scan_detected") {
		confidence += 0.2
	}
	if event.Bool("brute_force_attempt") {
		confidence += 0.25
	}

	failed := int(event.Float("failed_auth_attempts"))
	switch {
	case failed >= 5:
		confidence += 0.15
	case failed >= 3:
		confidence += 0.10
	}

	switch {
	case threatScore >= 8.0:
		confidence += 0.2
	case threatScore >= 6.0:
		confidence += 0.1
	}

	if event.Bool("known_malicious") {
		confidence += 0.3
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func sourceIP(event domain.Event) string {
	if ip := event.String("source_ip"); ip != "" {
		return ip
	}
	return event.String("ip")
}

func (b *IPBlocker) Execute(event domain.Event, confidence float64) domain.ActionResult {
	ip := sourceIP(event)
	if ip == "" {
		return errorResult("BLOCK_IP", confidence, "no IP address found in event")
	}
	if net.ParseIP(ip) == nil {
		return errorResult("BLOCK_IP", confidence, fmt.Sprintf("invalid IP address: %s", ip))
	}

	if _, whitelisted := b.whitelist[ip]; whitelisted {
		return domain.NewActionResult("BLOCK_IP", domain.ActionSkipped, confidence, map[string]any{
			"reason": "whitelisted", "ip": ip,
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, already := b.blocked[ip]; already {
		return domain.NewActionResult("BLOCK_IP", domain.ActionSkipped, confidence, map[string]any{
			"reason": "already_blocked", "ip": ip,
		})
	}
	if len(b.blocked) >= b.maxBlocks {
		return errorResult("BLOCK_IP", confidence, fmt.Sprintf("max blocks limit reached (%d)", b.maxBlocks))
	}

	b.blocked[ip] = struct{}{}
	b.order = append(b.order, ip)

	reason := event.String("reason")
	if reason == "" {
		reason = "threat_detected"
	}

	return domain.NewActionResult("BLOCK_IP", domain.ActionSuccess, confidence, map[string]any{
		"ip":            ip,
		"method":        "simulation",
		"reason":        reason,
		"threat_score":  threatScoreOf(event),
		"total_blocked": len(b.blocked),
	})
}

// Unblock removes ip from the blocked set, reporting whether it was blocked.
func (b *IPBlocker) Unblock(ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.blocked[ip]; !ok {
		return false
	}
	delete(b.blocked, ip)
	for i, o := range b.order {
		if o == ip {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// BlockedIPs returns a snapshot of the currently blocked addresses in
// insertion order.
func (b *IPBlocker) BlockedIPs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.order...)
}

// ClearAllBlocks unblocks every currently blocked IP and returns the count.
func (b *IPBlocker) ClearAllBlocks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := len(b.order)
	b.blocked = make(map[string]struct{})
	b.order = nil
	return count
}

func errorResult(actionType string, confidence float64, message string) domain.ActionResult {
	result := domain.NewActionResult(actionType, domain.ActionFailed, confidence, nil)
	result.Err = message
	return result
}
