package nanobot

import (
	"sync"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// Limit is one source's assigned rate-limit tier.
type Limit struct {
	Source            string
	RequestsPerMinute int
	Duration          time.Duration
	Tier              string
	AssignedAt        time.Time
	ExpiresAt         time.Time
}

// RateLimiter throttles sources whose observed request rate crosses
// configured tiers. Grounded on the adaptive rate-limiting nanobot.
type RateLimiter struct {
	id                string
	requestsPerMinute int
	burstThreshold    int
	timeWindow        time.Duration

	mu      sync.Mutex
	history map[string][]time.Time
	limits  map[string]Limit
}

// NewRateLimiter constructs a RateLimiter with the given baseline rate,
// burst threshold, and the sliding window over which requests are counted.
func NewRateLimiter(id string, requestsPerMinute, burstThreshold int, timeWindow time.Duration) *RateLimiter {
	return &RateLimiter{
		id:                id,
		requestsPerMinute: requestsPerMinute,
		burstThreshold:    burstThreshold,
		timeWindow:        timeWindow,
		history:           make(map[string][]time.Time),
		limits:            make(map[string]Limit),
	}
}

func (r *RateLimiter) ID() string { return r.id }

func (r *RateLimiter) CanHandle(event domain.Event) bool {
	return event.Has("source_ip") || event.Has("source")
}

func requestSource(event domain.Event) string {
	if s := event.String("source_ip"); s != "" {
		return s
	}
	return event.String("source")
}

// recordAndRate appends the current observation and returns the request
// count within timeWindow, evicting stale entries first. Only Execute calls
// this — assessment must never mutate history on its own.
func (r *RateLimiter) recordAndRate(source string, at time.Time) int {
	cutoff := at.Add(-r.timeWindow)
	times := r.history[source]

	pruned := times[:0:0]
	for _, t := range times {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	pruned = append(pruned, at)
	r.history[source] = pruned
	return len(pruned)
}

// observedRate reports the request count within timeWindow without
// recording anything, for read-only assessment.
func (r *RateLimiter) observedRate(source string, at time.Time) int {
	cutoff := at.Add(-r.timeWindow)
	count := 0
	for _, t := range r.history[source] {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

func (r *RateLimiter) Assess(event domain.Event) float64 {
	confidence := 0.4
	source := requestSource(event)

	r.mu.Lock()
	rate := r.observedRate(source, Now())
	_, alreadyLimited := r.limits[source]
	r.mu.Unlock()

	switch {
	case rate > r.burstThreshold:
		confidence += 0.3
	case rate > 2*r.requestsPerMinute:
		confidence += 0.2
	case rate > r.requestsPerMinute:
		confidence += 0.1
	}

	if r.recentBurst(source) {
		confidence += 0.2
	}
	if alreadyLimited {
		confidence += 0.15
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// recentBurst reports whether more than requestsPerMinute/6 requests
// landed in the last 10 seconds.
func (r *RateLimiter) recentBurst(source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := Now().Add(-10 * time.Second)
	count := 0
	for _, t := range r.history[source] {
		if t.After(cutoff) {
			count++
		}
	}
	return count > r.requestsPerMinute/6
}

func (r *RateLimiter) Execute(event domain.Event, confidence float64) domain.ActionResult {
	source := requestSource(event)
	if source == "" {
		return errorResult("RATE_LIMIT", confidence, "no source identified in event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rate := r.recordAndRate(source, Now())

	var tier string
	var rpm int
	var duration time.Duration
	switch {
	case rate > r.burstThreshold:
		tier, rpm, duration = "severe", 12, 15*time.Minute
	case rate > 2*r.requestsPerMinute:
		tier, rpm, duration = "moderate", 30, 10*time.Minute
	default:
		tier, rpm, duration = "light", r.requestsPerMinute, 5*time.Minute
	}

	now := Now()
	limit := Limit{
		Source:            source,
		RequestsPerMinute: rpm,
		Duration:          duration,
		Tier:              tier,
		AssignedAt:        now,
		ExpiresAt:         now.Add(duration),
	}
	r.limits[source] = limit

	return domain.NewActionResult("RATE_LIMIT", domain.ActionSuccess, confidence, map[string]any{
		"source":              source,
		"tier":                tier,
		"requests_per_minute": rpm,
		"duration_seconds":    duration.Seconds(),
		"observed_rate":       rate,
	})
}

// IsRateLimited reports whether source currently has an unexpired limit.
func (r *RateLimiter) IsRateLimited(source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit, ok := r.limits[source]
	if !ok {
		return false
	}
	return Now().Before(limit.ExpiresAt)
}

// GetRateLimit returns source's current limit, if any.
func (r *RateLimiter) GetRateLimit(source string) (Limit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	limit, ok := r.limits[source]
	return limit, ok
}

// RemoveRateLimit clears source's limit, reporting whether one existed.
func (r *RateLimiter) RemoveRateLimit(source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.limits[source]; !ok {
		return false
	}
	delete(r.limits, source)
	return true
}

// GetAllRateLimits returns a snapshot of every tracked limit.
func (r *RateLimiter) GetAllRateLimits() map[string]Limit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Limit, len(r.limits))
	for k, v := range r.limits {
		out[k] = v
	}
	return out
}

// ClearAllLimits removes every tracked limit and returns the count cleared.
func (r *RateLimiter) ClearAllLimits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.limits)
	r.limits = make(map[string]Limit)
	return n
}

// Now is the clock source used by the agents in this package (rate limiter,
// alert, honeypot, enumerator, threat hunter), overridable in tests.
var Now = time.Now
