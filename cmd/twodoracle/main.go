package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/twodoracle/internal/config"
	"github.com/rewired-gh/twodoracle/internal/logger"
	"github.com/rewired-gh/twodoracle/internal/metrics"
	"github.com/rewired-gh/twodoracle/internal/schedule"
	"github.com/rewired-gh/twodoracle/internal/server"
	"github.com/rewired-gh/twodoracle/internal/storage"
	"github.com/rewired-gh/twodoracle/internal/telegram"
	"github.com/rewired-gh/twodoracle/internal/thaistock"
	"github.com/rewired-gh/twodoracle/internal/tracker"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.New(cfg.Storage.MaxDays, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	metrics.Init(store)

	// Initialize feed client
	feed := thaistock.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout, thaistock.ClientConfig{
		MaxRetries:     cfg.Feed.MaxRetries,
		RetryDelayBase: cfg.Feed.RetryDelayBase,
	})

	// Initialize Telegram client
	var notifier tracker.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	sessions, err := cfg.Analysis.SessionSlots()
	if err != nil {
		logger.Fatal("Invalid analysis sessions: %v", err)
	}

	policy := schedule.NewPolicy(cfg.Feed.Location(), cfg.Feed.FastPollInterval, cfg.Feed.NormalPollInterval)
	trk := tracker.New(feed, store, notifier, policy, tracker.Config{
		Sessions:         sessions,
		FilteringWindow:  cfg.Analysis.FilteringWindow,
		EvaluationWindow: cfg.Analysis.EvaluationWindow,
		CacheEnabled:     cfg.Analysis.CacheEnabled,
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	// Start HTTP API
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, trk, store)
		go func() {
			logger.Info("HTTP API listening on %s", cfg.Server.Addr)
			if err := srv.Start(); err != nil {
				logger.Error("HTTP server error: %v", err)
			}
		}()
		defer func() {
			if err := srv.Shutdown(); err != nil {
				logger.Error("Failed to shut down HTTP server: %v", err)
			}
		}()
	}

	logger.Info("Starting monitoring service (fast: %v, normal: %v, timezone: %s, sessions: %v, windows: %d/%d)",
		cfg.Feed.FastPollInterval,
		cfg.Feed.NormalPollInterval,
		cfg.Feed.Timezone,
		cfg.Analysis.Sessions,
		cfg.Analysis.FilteringWindow,
		cfg.Analysis.EvaluationWindow,
	)

	// Run initial cycle immediately so the API has a reading and an analysis
	runCycle(ctx, trk.RunCycle, store, time.Now())

	timer := time.NewTimer(nextDelay(policy, time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case tickTime := <-timer.C:
			runCycle(ctx, trk.RunScheduledCycle, store, tickTime)
			timer.Reset(nextDelay(policy, time.Now()))
		}
	}
}

func runCycle(ctx context.Context, run func(context.Context, time.Time) (*tracker.CycleResult, error), store *storage.Storage, now time.Time) {
	result, err := run(ctx, now)
	if err != nil {
		// Failures are logged and reported by the tracker
		return
	}
	if result.Recorded != "" {
		logger.Info("Cycle %s recorded the %s result in %v", result.ID, result.Recorded, result.Duration)
		if err := store.RotateResults(ctx); err != nil {
			logger.Warn("Failed to rotate results: %v", err)
		}
	}
}

// nextDelay returns the wait before the next cycle: the policy interval while
// the market is open, otherwise the time until the next opening.
func nextDelay(policy *schedule.Policy, now time.Time) time.Duration {
	if interval, ok := policy.Interval(now); ok {
		return interval
	}
	wake := policy.NextWake(now)
	logger.Info("Market closed, sleeping until %s", wake.Format(time.RFC3339))
	return wake.Sub(now)
}
