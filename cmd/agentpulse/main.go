// Package main is the entry point for the AgentPulse engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agentpulse/engine/internal/agent"
	"github.com/agentpulse/engine/internal/api"
	"github.com/agentpulse/engine/internal/config"
	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/ecosystem"
	"github.com/agentpulse/engine/internal/gate"
	"github.com/agentpulse/engine/internal/ledger"
	"github.com/agentpulse/engine/internal/logging"
	"github.com/agentpulse/engine/internal/reasoning"
	"github.com/agentpulse/engine/internal/retry"
	"github.com/agentpulse/engine/internal/scheduler"
	"github.com/agentpulse/engine/internal/store"
	"github.com/agentpulse/engine/internal/strategy"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("agentpulse %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > AGENTPULSE_CONFIG env > auto-discover.
	path := *configPath
	if path == "" {
		path = os.Getenv("AGENTPULSE_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		fatal("no config found. Place config.json next to the exe, use --config <path>, or set AGENTPULSE_CONFIG.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Sprintf("load config: %v", err))
	}
	secrets := config.LoadSecrets()

	logger := logging.New(cfg.LogPath, *debug)

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		fatal(fmt.Sprintf("open database: %v", err))
	}
	defer db.Close()

	// Shared repos.
	actions := &store.ActionRepo{}
	evals := &store.EvaluationRepo{}

	// Wire the strategy store, seeding version 1 from config on first run.
	strat, err := strategy.NewStore(context.Background(), db, domain.StrategyParams{
		PostingTone:     cfg.Strategy.PostingTone,
		InsightFocus:    cfg.Strategy.InsightFocus,
		MinQualityScore: cfg.Strategy.MinQualityScore,
		MaxDailyActions: cfg.Strategy.MaxDailyActions,
		OptimalHour:     cfg.Strategy.OptimalHour,
	}, time.Now().Unix())
	if err != nil {
		fatal(fmt.Sprintf("init strategy: %v", err))
	}

	// Wire provider registry and the default reasoning client.
	registry := reasoning.NewRegistry()
	for name, pc := range cfg.Providers {
		if err := registry.Register(reasoning.ProviderSpec{
			Name:    name,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		}); err != nil {
			fatal(fmt.Sprintf("register provider %s: %v", name, err))
		}
	}
	providerName := cfg.DefaultProvider
	if providerName == "" {
		providerName = registry.List()[0]
	}
	spec, err := registry.Get(providerName)
	if err != nil {
		fatal(fmt.Sprintf("resolve provider: %v", err))
	}
	completer := reasoning.NewClient(spec, secrets.ReasoningKey)

	// Wire the ecosystem client. Rate-limit signals retry with a fixed
	// backoff before surfacing as failures.
	eco := ecosystem.NewClient(cfg.EcosystemBaseURL, secrets.EcosystemKey, retry.Policy{
		MaxAttempts: 3,
		Delay:       30 * time.Second,
		Retryable:   ecosystem.RateLimited,
	})

	// Wire the ledger, when enabled.
	var ledgerClient *ledger.Client
	var reconstructor *ledger.Reconstructor
	if cfg.Ledger.Enabled {
		ledgerClient = ledger.NewClient(cfg.Ledger.RPCURL, cfg.Ledger.WalletAddress)
		reconstructor = &ledger.Reconstructor{
			Client:     ledgerClient,
			Namespace:  cfg.Ledger.Namespace,
			ActionRepo: actions,
			DB:         db,
		}
	}

	adapter := &strategy.Engine{
		Store:     strat,
		Completer: completer,
		DB:        db,
		Actions:   actions,
		Evals:     evals,
		Logger:    logger,
	}

	ag := &agent.Agent{
		DB:       db,
		Actions:  actions,
		Evals:    evals,
		Strategy: strat,
		Adapter:  adapter,
		Gate:     gate.NewInsightGate(cfg.Gate.ChecklistPassCount),
		Scorer: &gate.ProjectScorer{
			Completer:       completer,
			ObjectiveWeight: cfg.Gate.ObjectiveWeight,
			ModelWeight:     cfg.Gate.ModelWeight,
			Logger:          logger,
		},
		Governor:  &gate.ActionGovernor{DB: db, Actions: actions},
		Eco:       eco,
		Completer: completer,
		Config: agent.Config{
			Namespace:     cfg.Ledger.Namespace,
			NoveltyCutoff: cfg.Gate.NoveltyCutoff,
			MinPostGapSec: cfg.Gate.MinPostGapSec,
		},
		Logger: logger,
	}
	if ledgerClient != nil {
		ag.Ledger = ledgerClient
	}

	sched := scheduler.New(logger,
		scheduler.Loop{Name: "refresh", Interval: seconds(cfg.Intervals.RefreshSec), Run: ag.RefreshData},
		scheduler.Loop{Name: "insight", Interval: seconds(cfg.Intervals.InsightSec), Run: ag.RunInsightCycle},
		scheduler.Loop{Name: "vote", Interval: seconds(cfg.Intervals.VoteSec), Run: ag.RunVoteCycle},
		scheduler.Loop{Name: "adaptation", Interval: seconds(cfg.Intervals.AdaptationSec), Run: ag.RunAdaptation},
		scheduler.Loop{Name: "snapshot", Interval: seconds(cfg.Intervals.SnapshotSec), Run: ag.RunSnapshot},
	)

	handler := &api.Handler{
		DB:        db,
		Actions:   actions,
		Strategy:  strat,
		Scheduler: sched,
		Proofs:    reconstructor,
	}
	srv := api.NewServer(handler, cfg.ListenAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	// Graceful shutdown on interrupt: in-flight iterations finish, then
	// the HTTP server drains.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	logger.Info("agentpulse engine listening", "addr", cfg.ListenAddr, "strategy_version", strat.Version())

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		fatal(fmt.Sprintf("server error: %v", err))
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// discoverConfig looks for config.json next to the executable, then in the cwd.
func discoverConfig() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	os.Exit(1)
}
