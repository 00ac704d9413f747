package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iff-guardian/nanoguard/internal/auth"
	"github.com/iff-guardian/nanoguard/internal/baseline"
	"github.com/iff-guardian/nanoguard/internal/bus"
	"github.com/iff-guardian/nanoguard/internal/classifier"
	"github.com/iff-guardian/nanoguard/internal/correlation"
	"github.com/iff-guardian/nanoguard/internal/decision"
	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/iff-guardian/nanoguard/internal/engine"
	"github.com/iff-guardian/nanoguard/internal/forest"
	"github.com/iff-guardian/nanoguard/internal/ingress"
	"github.com/iff-guardian/nanoguard/internal/lock"
	"github.com/iff-guardian/nanoguard/internal/nanobot"
	"github.com/iff-guardian/nanoguard/internal/stain"
	"github.com/iff-guardian/nanoguard/pkg/config"
	"github.com/iff-guardian/nanoguard/pkg/database"
	"github.com/iff-guardian/nanoguard/pkg/health"
	"github.com/iff-guardian/nanoguard/pkg/logger"
	"github.com/iff-guardian/nanoguard/pkg/metrics"

	"github.com/iff-guardian/nanoguard/internal/audit"
	nanoredis "github.com/iff-guardian/nanoguard/pkg/redis"
)

func main() {
	cfg, err := config.Load("gateway")
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.ServiceName)
	metricsCollector := metrics.NewCollector("gateway")
	healthChecker := health.New()

	auditSink := newAuditSink(cfg, healthChecker, appLogger)
	distributedLock := newDistributedLock(cfg, healthChecker, appLogger) // without a redis client it degrades to purely local per-process striping

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

	blocker := nanobot.NewIPBlocker("ip-blocker", nil, cfg.Engine.MaxBlocks)
	limiter := nanobot.NewRateLimiter("rate-limiter", cfg.Engine.RequestsPerMinute,
		cfg.Engine.BurstThreshold, cfg.Engine.TimeWindow())
	honeypot := nanobot.NewHoneypot("honeypot", cfg.Engine.MaxHoneypots)
	alerter := nanobot.NewAlertNanobot("alerter", domain.AlertWarning)
	enumerator := nanobot.NewEnumerator("enumerator", cfg.Engine.MaxConcurrentEnumerations)
	hunter := nanobot.NewThreatHunter("threat-hunter")

	swarm := nanobot.NewManager()
	swarm.Register(nanobot.NewAgent(blocker, domain.ModeDefensive, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(limiter, domain.ModeDefensive, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(honeypot, domain.ModeScout, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(alerter, domain.ModeDefensive, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(enumerator, domain.ModeScout, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.Register(nanobot.NewAgent(hunter, domain.ModeAdaptive, cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold))
	swarm.ActivateAll()
	swarm.Start()
	defer swarm.Stop()

	busCtx, cancelBusLoop := context.WithCancel(context.Background())
	defer cancelBusLoop()
	go engine.RunDrainLoop(busCtx, eventBus)

	healthChecker.AddCheck("swarm", func(ctx context.Context) error {
		if !swarm.Stats().Running {
			return fmt.Errorf("swarm worker is not running")
		}
		return nil
	})

	tokens, err := auth.NewTokenManager(auth.JWTConfig{
		SecretKey:        cfg.Security.JWTSecret,
		RefreshSecretKey: cfg.Security.JWTRefreshSecret,
		Algorithm:        cfg.Security.JWTAlgorithm,
		AccessTokenTTL:   time.Duration(cfg.Security.TokenExpiry) * time.Second,
		RefreshTokenTTL:  time.Duration(cfg.Security.RefreshExpiry) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("failed to initialize token manager", "error", err)
	}

	_ = distributedLock // available to a multi-instance stain store; the in-process store keeps its own local striping
	go forwardActionsToAudit(busCtx, swarm, auditSink, metricsCollector, appLogger)

	decisionEngine := decision.New(cfg.Engine.AutoFireThreshold, cfg.Engine.ProposeThreshold)
	svc := ingress.New(appLogger, eventBus, stainStore, correlationEngine, swarm, forestRegistry, blocker, alerter,
		decisionEngine, decision.DefaultRules())

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := ingress.NewRouter(svc, tokens, healthChecker, metricsCollector, appLogger, 500)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		appLogger.Info("starting gateway service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down gateway service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
	}

	appLogger.Info("gateway service stopped")
	_ = appLogger.Sync()
}

// newAuditSink builds a PostgresSink (applying migrations) when a database
// URL is configured, falling back to the no-op sink otherwise. On success it
// also registers the connection's health on checker, so the audit trail's
// availability shows up in /readyz alongside the swarm worker.
func newAuditSink(cfg *config.Config, checker *health.Checker, log logger.Logger) audit.Sink {
	if cfg.Database.URL == "" {
		return audit.NoopSink{}
	}

	db, err := database.NewPostgres(cfg.Database.URL)
	if err != nil {
		log.Error("failed to connect to audit database, falling back to no-op sink", "error", err)
		return audit.NoopSink{}
	}

	if err := audit.Migrate(db, "migrations"); err != nil {
		log.Error("failed to apply audit migrations, falling back to no-op sink", "error", err)
		return audit.NoopSink{}
	}

	checker.AddCheck("audit_db", database.HealthCheck(db))
	return audit.NewPostgresSink(db)
}

// forwardActionsToAudit polls the swarm's recent action history and appends
// every action newer than the last poll to sink, giving every ActionResult
// the swarm produces an optional compliance trail independent of the stain
// store. Each action also increments the nanobot_actions_total counter,
// labelled by action type and outcome status, so nanobot action volume is
// visible on the same dashboards as HTTP traffic.
func forwardActionsToAudit(ctx context.Context, swarm *nanobot.Manager, sink audit.Sink, collector *metrics.Collector, log logger.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastSeen time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			actions := swarm.RecentActions(0)
			for i := len(actions) - 1; i >= 0; i-- {
				action := actions[i]
				if !action.Timestamp.After(lastSeen) {
					continue
				}
				collector.RecordNanobotAction("gateway", action.ActionType, string(action.Status))
				entry := audit.Entry{
					Action:   action.ActionType,
					Resource: fmt.Sprintf("%v", action.Detail),
					Success:  action.Status == domain.ActionSuccess,
					ErrorMsg: action.Err,
				}
				if err := sink.Record(ctx, entry); err != nil {
					log.Error("failed to record audit entry", "error", err)
				}
			}
			if len(actions) > 0 && actions[0].Timestamp.After(lastSeen) {
				lastSeen = actions[0].Timestamp
			}
		}
	}
}

// newDistributedLock builds the redis-backed distributed lock when a redis
// URL is configured, for multi-instance deployments sharing one external
// stain store. With no redis URL, or when redis is unreachable, it returns a
// lock over a nil client, which degrades every caller to purely local
// striping. On success it also registers redis reachability on checker.
func newDistributedLock(cfg *config.Config, checker *health.Checker, log logger.Logger) *lock.Distributed {
	if cfg.Redis.URL == "" {
		return lock.NewDistributed(nil)
	}
	client, err := nanoredis.NewClient(cfg.Redis.URL)
	if err != nil {
		log.Error("failed to connect to redis, distributed lock disabled", "error", err)
		return lock.NewDistributed(nil)
	}
	checker.AddCheck("redis", nanoredis.HealthCheck(client))
	return lock.NewDistributed(client)
}
