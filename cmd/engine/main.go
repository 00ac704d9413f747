// Command engine runs the detection and response core with no HTTP surface:
// the event bus, classifier, baseline learner, correlation engine, and
// nanobot swarm, intended for deployments where sensors submit events over
// the bus directly (an embedded caller, a message-queue adapter) rather
// than through the gateway's REST surface.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iff-guardian/nanoguard/internal/baseline"
	"github.com/iff-guardian/nanoguard/internal/bus"
	"github.com/iff-guardian/nanoguard/internal/classifier"
	"github.com/iff-guardian/nanoguard/internal/correlation"
	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/iff-guardian/nanoguard/internal/engine"
	"github.com/iff-guardian/nanoguard/internal/forest"
	"github.com/iff-guardian/nanoguard/internal/nanobot"
	"github.com/iff-guardian/nanoguard/internal/stain"
	"github.com/iff-guardian/nanoguard/pkg/config"
	"github.com/iff-guardian/nanoguard/pkg/logger"
)

func main() {
	cfg, err := config.Load("engine")
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.ServiceName)

	eventBus := bus.New(appLogger, cfg.Engine.QueueCapacity)
	stainStore := stain.New()
	correlationEngine := correlation.New()
	classifierEngine := classifier.New(domain.DefaultCategoryProfiles())
	baselineLearner := baseline.New(baseline.Config{
		LearningPeriod: cfg.Engine.LearningPeriod(),
		MinSamples:     cfg.Engine.MinSamples,
		UpdateInterval: cfg.Engine.UpdateInterval(),
	})
	eventBus.Subscribe(engine.New(classifierEngine, baselineLearner, stainStore, appLogger))

	forestRegistry := forest.New()

	swarm := nanobot.NewManager()
	swarm.Register(nanobot.NewAgent(
		nanobot.NewIPBlocker("ip-blocker", nil, cfg.Engine.MaxBlocks),
		domain.ModeDefensive, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(
		nanobot.NewRateLimiter("rate-limiter", cfg.Engine.RequestsPerMinute, cfg.Engine.BurstThreshold, cfg.Engine.TimeWindow()),
		domain.ModeDefensive, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(
		nanobot.NewHoneypot("honeypot", cfg.Engine.MaxHoneypots),
		domain.ModeScout, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(
		nanobot.NewAlertNanobot("alerter", domain.AlertWarning),
		domain.ModeDefensive, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(
		nanobot.NewEnumerator("enumerator", cfg.Engine.MaxConcurrentEnumerations),
		domain.ModeScout, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(
		nanobot.NewThreatHunter("threat-hunter"),
		domain.ModeAdaptive, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.ActivateAll()
	swarm.Start()
	defer swarm.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.RunDrainLoop(ctx, eventBus)

	reportCorrelation(ctx, correlationEngine, stainStore, appLogger)
	reportForestHealth(ctx, forestRegistry, stainStore, appLogger)

	appLogger.Info("engine started", "service", cfg.ServiceName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("engine stopped")
	_ = appLogger.Sync()
}

// reportForestHealth periodically records every stain's forest location
// into the read-only health registry and logs components that have
// dropped out of Healthy, giving this no-HTTP deployment the same
// visibility the gateway exposes over GET /v1/forest/status.
func reportForestHealth(ctx context.Context, registry *forest.Registry, store *stain.Store, log logger.Logger) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, st := range store.All() {
					registry.Record(st)
				}
				for _, component := range registry.All() {
					if component.Status != forest.StatusHealthy {
						log.Warn("forest component degraded",
							"component_id", component.ID,
							"status", component.Status,
							"health_score", component.HealthScore,
							"threat_count", component.ThreatCount)
					}
				}
			}
		}
	}()
}

// reportCorrelation periodically rebuilds attack chains over the current
// stain set and logs any newly identified chain. Correlation recomputes
// chains from the full stain slice on each call rather than updating
// incrementally, so this is a coarse polling loop rather than an
// event-driven one.
func reportCorrelation(ctx context.Context, corr *correlation.Engine, store *stain.Store, log logger.Logger) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		seen := map[string]struct{}{}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, chain := range corr.IdentifyAttackChain(store.All()) {
					if _, ok := seen[chain.ChainID]; ok {
						continue
					}
					seen[chain.ChainID] = struct{}{}
					log.Info("attack chain identified",
						"chain_id", chain.ChainID,
						"pattern", chain.Pattern,
						"severity", chain.Severity,
						"stains", len(chain.StainIDs))
				}
			}
		}
	}()
}
