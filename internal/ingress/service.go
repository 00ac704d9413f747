package ingress

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iff-guardian/nanoguard/internal/auth"
	"github.com/iff-guardian/nanoguard/internal/bus"
	"github.com/iff-guardian/nanoguard/internal/correlation"
	"github.com/iff-guardian/nanoguard/internal/decision"
	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/iff-guardian/nanoguard/internal/forest"
	"github.com/iff-guardian/nanoguard/internal/nanobot"
	"github.com/iff-guardian/nanoguard/internal/stain"
	"github.com/iff-guardian/nanoguard/pkg/logger"
)

// Service holds every component the ingress surface reads from or writes
// to. Nothing here owns domain logic; it only translates HTTP requests into
// calls against the bus, store, correlation engine, and swarm.
type Service struct {
	log         logger.Logger
	bus         *bus.Bus
	store       *stain.Store
	correlation *correlation.Engine
	swarm       *nanobot.Manager
	forest      *forest.Registry
	blocker     *nanobot.IPBlocker
	alerter     *nanobot.AlertNanobot
	decision    *decision.Engine
	rules       []domain.Rule
}

// New constructs the ingress service. blocker and alerter are the concrete
// agent instances backing the admin override endpoints; they are also
// registered with swarm under the usual tier gate for ordinary dispatch.
// decisionEngine and rules back the decision tier applied to every
// submitted event ahead of swarm dispatch.
func New(log logger.Logger, b *bus.Bus, store *stain.Store, corr *correlation.Engine,
	swarm *nanobot.Manager, forestRegistry *forest.Registry,
	blocker *nanobot.IPBlocker, alerter *nanobot.AlertNanobot,
	decisionEngine *decision.Engine, rules []domain.Rule) *Service {
	return &Service{
		log:         log,
		bus:         b,
		store:       store,
		correlation: corr,
		swarm:       swarm,
		forest:      forestRegistry,
		blocker:     blocker,
		alerter:     alerter,
		decision:    decisionEngine,
		rules:       rules,
	}
}

// RegisterRoutes wires the public sensor/query surface and, behind
// auth.RequireOperator, the admin override endpoints.
func (s *Service) RegisterRoutes(router gin.IRouter, tokens *auth.TokenManager) {
	v1 := router.Group("/v1")

	v1.POST("/events", s.submitEvent)
	v1.GET("/stains", s.listStains)
	v1.GET("/stains/:id", s.getStain)
	v1.GET("/chains", s.listChains)
	v1.GET("/graph", s.getGraph)
	v1.GET("/forest/status", s.forestStatus)

	admin := v1.Group("")
	admin.Use(auth.RequireOperator(tokens))
	admin.POST("/stains/:id/unblock", s.unblockStain)
	admin.POST("/alerts/:id/ack", s.ackAlert)
}

// eventRequest is the wire shape accepted by POST /v1/events.
type eventRequest struct {
	Source      string         `json:"source" binding:"required"`
	Kind        string         `json:"kind" binding:"required"`
	Payload     map[string]any `json:"payload"`
	Tags        []string       `json:"tags"`
	ThreatScore *float64       `json:"threat_score"`
	Confidence  *float64       `json:"confidence"`
}

func (s *Service) submitEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event: " + err.Error()})
		return
	}

	event := domain.NewEvent(req.Source, domain.EventKind(req.Kind), req.Payload, req.Tags...)
	event.ThreatScore = req.ThreatScore
	event.Confidence = req.Confidence

	dec := s.applyDecisionTier(&event)

	s.bus.Submit(event)
	s.swarm.Submit(event)

	c.JSON(http.StatusAccepted, gin.H{
		"id":                  event.ID,
		"timestamp":           event.Timestamp,
		"decision_mode":       dec.Mode,
		"adjusted_confidence": dec.AdjustedConfidence,
	})
}

// applyDecisionTier evaluates the configured rule set and the hybrid
// contextual policy against event, stamping the resulting adjusted
// confidence back onto it before bus/swarm dispatch. Every agent's own
// assess() reads event.Confidence as its starting point, so this is what
// carries the decision tier's verdict through to the tier gate.
func (s *Service) applyDecisionTier(event *domain.Event) decision.Decision {
	base := eventConfidence(*event, 0.5)

	_, adjusted, matched := s.decision.Recommend(s.rules, *event, base, event.Timestamp)
	if !matched {
		adjusted = base
	}

	dec := s.decision.HybridDecide(adjusted, s.decisionContext(*event))
	event.Confidence = &dec.AdjustedConfidence
	return dec
}

func (s *Service) decisionContext(event domain.Event) decision.Context {
	ip := eventSourceIP(event)
	return decision.Context{
		HistoricalThreatLevel: s.historicalThreatLevel(ip),
		RecentIncidents:       len(s.store.QueryByIP(ip)),
		IsOffHours:            isOffHours(event.Timestamp),
		SourceReputation:      sourceReputation(event),
	}
}

// historicalThreatLevel derives a coarse severity from the highest threat
// score already on record for ip: 8 and above is CRITICAL and 6 and above
// HIGH (the same cut-offs correlation uses for attack-chain severity), 3 and
// above MEDIUM, and any other positive score LOW.
func (s *Service) historicalThreatLevel(ip string) domain.Severity {
	if ip == "" {
		return domain.SeverityInfo
	}

	var max float64
	for _, st := range s.store.QueryByIP(ip) {
		if st.ThreatScore > max {
			max = st.ThreatScore
		}
	}

	switch {
	case max >= 8:
		return domain.SeverityCritical
	case max >= 6:
		return domain.SeverityHigh
	case max >= 3:
		return domain.SeverityMedium
	case max > 0:
		return domain.SeverityLow
	default:
		return domain.SeverityInfo
	}
}

// isOffHours treats 22:00-06:00 UTC as off-hours.
func isOffHours(t time.Time) bool {
	hour := t.UTC().Hour()
	return hour < 6 || hour >= 22
}

func sourceReputation(event domain.Event) string {
	switch {
	case event.Bool("known_malicious"):
		return "malicious"
	case event.Bool("trusted_source"):
		return "trusted"
	default:
		return ""
	}
}

func eventConfidence(event domain.Event, fallback float64) float64 {
	if event.Confidence != nil {
		return *event.Confidence
	}
	return fallback
}

func eventSourceIP(event domain.Event) string {
	if ip := event.String("source_ip"); ip != "" {
		return ip
	}
	return event.String("ip")
}

func (s *Service) listStains(c *gin.Context) {
	var stains []domain.Stain
	switch {
	case c.Query("type") != "":
		stains = s.store.QueryByType(domain.MarkerType(c.Query("type")))
	case c.Query("color") != "":
		stains = s.store.QueryByColor(domain.ColorTag(c.Query("color")))
	case c.Query("ip") != "":
		stains = s.store.QueryByIP(c.Query("ip"))
	case c.Query("q") != "":
		stains = s.store.Search(c.Query("q"))
	default:
		stains = s.store.All()
	}

	for _, st := range stains {
		s.forest.Record(st)
	}
	c.JSON(http.StatusOK, gin.H{"stains": stains, "count": len(stains)})
}

func (s *Service) getStain(c *gin.Context) {
	st, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "stain not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Service) listChains(c *gin.Context) {
	chains := s.correlation.IdentifyAttackChain(s.store.All())
	c.JSON(http.StatusOK, gin.H{"chains": chains, "count": len(chains)})
}

func (s *Service) getGraph(c *gin.Context) {
	graph := s.correlation.BuildThreatGraph(s.store.All())
	c.JSON(http.StatusOK, graph)
}

func (s *Service) forestStatus(c *gin.Context) {
	for _, st := range s.store.All() {
		s.forest.Record(st)
	}
	c.JSON(http.StatusOK, gin.H{
		"components": s.forest.All(),
		"summary":    s.forest.Summary(),
	})
}

func (s *Service) unblockStain(c *gin.Context) {
	ip := c.Param("id")
	if !s.blocker.Unblock(ip) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ip is not blocked"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ip": ip, "unblocked": true})
}

func (s *Service) ackAlert(c *gin.Context) {
	id := c.Param("id")
	if !s.alerter.AcknowledgeAlert(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert_id": id, "acknowledged": true, "acked_at": time.Now().UTC()})
}
