// Command import-history loads historical 2D results into storage, either from
// the feed's /2d_result endpoint or from a saved copy of that document.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/rewired-gh/twodoracle/internal/config"
	"github.com/rewired-gh/twodoracle/internal/logger"
	"github.com/rewired-gh/twodoracle/internal/models"
	"github.com/rewired-gh/twodoracle/internal/storage"
	"github.com/rewired-gh/twodoracle/internal/thaistock"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	filePath   = flag.String("file", "", "Import from a saved /2d_result JSON document instead of the feed")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	days, err := loadDays(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to load history: %v", err)
	}
	logger.Info("Loaded %d days", len(days))

	store, err := storage.New(cfg.Storage.MaxDays, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	imported := 0
	for i := range days {
		if _, err := store.UpsertDailyResult(ctx, &days[i]); err != nil {
			logger.Warn("Skipping %s: %v", days[i].Date, err)
			continue
		}
		imported++
	}

	if err := store.RotateResults(ctx); err != nil {
		logger.Warn("Failed to rotate results: %v", err)
	}
	logger.Info("Imported %d of %d days into %s", imported, len(days), cfg.Storage.DBPath)
}

func loadDays(ctx context.Context, cfg *config.Config) ([]models.DailyResult, error) {
	if *filePath != "" {
		body, err := os.ReadFile(*filePath)
		if err != nil {
			return nil, err
		}
		return thaistock.DecodeDailyResults(body)
	}

	client := thaistock.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout, thaistock.ClientConfig{
		MaxRetries:     cfg.Feed.MaxRetries,
		RetryDelayBase: cfg.Feed.RetryDelayBase,
	})
	return client.FetchDailyResults(ctx)
}
