package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/iff-guardian/nanoguard/internal/ingress"
	"github.com/iff-guardian/nanoguard/internal/nanobot"
	"github.com/iff-guardian/nanoguard/pkg/config"
	"github.com/iff-guardian/nanoguard/pkg/health"
	"github.com/iff-guardian/nanoguard/pkg/logger"
)

func main() {
	cfg, err := config.Load("honeypot-relay")
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.ServiceName)
	healthChecker := health.New()

	honeypot := nanobot.NewHoneypot("honeypot", cfg.Engine.MaxHoneypots)
	relay := ingress.NewWebhookRelay(appLogger, honeypot)

	router := mux.NewRouter()
	relay.Routes(router)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthChecker.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if resp.Status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		appLogger.Info("starting honeypot relay", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down honeypot relay...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
	}

	appLogger.Info("honeypot relay stopped")
	_ = appLogger.Sync()
}
