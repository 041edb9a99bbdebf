// Kestrel - Criminal legal aid means assessment engine.
// Copyright (c) 2026 openjustice.uk
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openjustice-uk/kestrel/internal/api"
	"github.com/openjustice-uk/kestrel/internal/assess"
	"github.com/openjustice-uk/kestrel/internal/authz"
	"github.com/openjustice-uk/kestrel/internal/bus"
	"github.com/openjustice-uk/kestrel/internal/cache"
	"github.com/openjustice-uk/kestrel/internal/criteria"
	"github.com/openjustice-uk/kestrel/internal/domain"
	"github.com/openjustice-uk/kestrel/internal/policy"
	"github.com/openjustice-uk/kestrel/internal/repository"
	"github.com/openjustice-uk/kestrel/internal/validate"
	"github.com/openjustice-uk/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"collaborator", cfg.Collaborator.Mode,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize collaborators: remote case-management services for the
	// Pro tier, config-seeded static services for Community.
	var authzSvc domain.AuthorizationService
	var caseDataSvc domain.CaseDataService
	if cfg.Collaborator.Mode == "remote" {
		client := authz.NewClient(cfg.Collaborator)
		authzSvc = client
		caseDataSvc = client
	} else {
		authzSvc = authz.NewStaticAuthorizer(cfg.Collaborator)
		caseDataSvc = authz.NewRepositoryCaseData(repo)
	}
	slog.Info("collaborators initialized", "mode", cfg.Collaborator.Mode)

	// Initialize validation chain
	chain := validate.NewChain(authzSvc, caseDataSvc)
	slog.Info("validation chain initialized", "checks", chain.Checks())

	// Initialize Policy Guard
	guard, err := policy.NewGuard()
	if err != nil {
		slog.Error("failed to initialize policy guard", "error", err)
		os.Exit(1)
	}

	// Load policy rules from database (no hardcoded defaults - configure via API)
	if err := loadPoliciesFromDatabase(ctx, repo, guard); err != nil {
		slog.Error("failed to load policy rules", "error", err)
		os.Exit(1)
	}
	slog.Info("policy guard initialized", "rules_count", guard.RulesCount())

	// Initialize Criteria Resolver
	resolver := criteria.NewResolver(repo, cacheImpl)
	slog.Info("criteria resolver initialized")

	// Initialize Orchestrator
	orchestrator := assess.NewOrchestrator(chain, guard, resolver, repo, busImpl)
	slog.Info("orchestrator initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, orchestrator)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, orchestrator, resolver, guard, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadPoliciesFromDatabase loads policy rules from the database into the guard.
// All policy rules must be configured via POST /policies API - no hardcoded defaults.
func loadPoliciesFromDatabase(ctx context.Context, repo domain.Repository, guard *policy.Guard) error {
	rules, err := repo.ListPolicyRules(ctx)
	if err != nil {
		slog.Warn("failed to list policy rules from database", "error", err)
		return nil // Start with empty policy set - rules can be added via API
	}

	if len(rules) > 0 {
		slog.Info("loading policy rules from database", "count", len(rules))
		return guard.LoadRules(rules)
	}

	slog.Info("no policy rules in database - configure via POST /policies API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  KESTREL - Means Assessment Engine")
	fmt.Println("  Criminal legal aid financial eligibility.")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assessments          - Run a means assessment")
	fmt.Println("    GET  /assessments/{id}     - Get assessment by ID")
	fmt.Println("    GET  /criteria             - List threshold criteria")
	fmt.Println("    POST /criteria             - Create threshold criteria")
	fmt.Println("    POST /criteria/reload      - Drop the criteria snapshot")
	fmt.Println("    GET  /policies             - List policy rules")
	fmt.Println("    POST /policies             - Create a policy rule")
	fmt.Println("    POST /policies/reload      - Hot-reload policy rules")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
