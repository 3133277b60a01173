package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"model-artefact-registry/internal/adapters/primary/http/handlers"
	"model-artefact-registry/internal/bootstrap"
	"model-artefact-registry/internal/config"
	"model-artefact-registry/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)
	gin.SetMode(gin.ReleaseMode)

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters (Output Ports - Stores)
	stores, err := bootstrap.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("open stores: %v", err)
	}
	defer stores.Close()

	// Core Services (Application Layer)
	recordSvc := services.NewModelRecordService(stores.Records)
	artefactSvc := services.NewModelArtefactService(stores.Artefacts)

	gate := services.NewAccessGate(services.Credentials{
		Username:     cfg.Auth.Username,
		Password:     cfg.Auth.Password,
		PasswordHash: cfg.Auth.PasswordHash,
	})
	if !gate.Configured() {
		log.Warn("AUTH_PASSWORD and AUTH_PASSWORD_HASH are empty; every model request will be rejected")
	}

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(recordSvc, artefactSvc, map[string]handlers.Pinger{
		"records":   stores.Records,
		"artefacts": stores.Artefacts,
	})
	router := handlers.NewRouter(h, gate)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"record_store":   cfg.RecordStore,
			"artefact_store": cfg.ArtefactStore,
		}).Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
