// Command analyze runs the pattern analysis once over the stored history and
// prints the result as JSON or as a text report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rewired-gh/twodoracle/internal/analysis"
	"github.com/rewired-gh/twodoracle/internal/config"
	"github.com/rewired-gh/twodoracle/internal/logger"
	"github.com/rewired-gh/twodoracle/internal/models"
	"github.com/rewired-gh/twodoracle/internal/storage"
	"github.com/rewired-gh/twodoracle/internal/thaistock"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	format     = flag.String("format", "text", "Output format: text or json")
	liveIndex  = flag.String("index", "", "SET index to use instead of fetching the live reading")
	offline    = flag.Bool("offline", false, "Do not contact the feed; analyze without a live index unless -index is set")
)

func main() {
	flag.Parse()

	if *format != "text" && *format != "json" {
		log.Fatalf("Unknown format %q (want text or json)", *format)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	sessions, err := cfg.Analysis.SessionSlots()
	if err != nil {
		logger.Fatal("Invalid analysis sessions: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := storage.New(cfg.Storage.MaxDays, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	in, err := buildInput(ctx, cfg, store, sessions)
	if err != nil {
		logger.Fatal("Failed to build analysis input: %v", err)
	}
	if len(in.PreviousAndRecent) == 0 {
		logger.Warn("No stored history; run import-history first for meaningful results")
	}

	out := analysis.Analyze(in)

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logger.Fatal("Failed to encode analysis: %v", err)
		}
	default:
		fmt.Print(analysis.FormatReport(out))
	}
}

func buildInput(ctx context.Context, cfg *config.Config, store *storage.Storage, sessions []models.Session) (analysis.Input, error) {
	var in analysis.Input

	filtering, err := store.RecentNumbers(ctx, sessions, cfg.Analysis.FilteringWindow)
	if err != nil {
		return in, err
	}
	evaluation, err := store.RecentNumbers(ctx, sessions, cfg.Analysis.EvaluationWindow)
	if err != nil {
		return in, err
	}
	in.PreviousAndRecent = filtering
	in.EvaluationWindow = evaluation

	switch {
	case *liveIndex != "":
		in.LiveIndex = *liveIndex
	case !*offline:
		client := thaistock.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout, thaistock.ClientConfig{
			MaxRetries:     cfg.Feed.MaxRetries,
			RetryDelayBase: cfg.Feed.RetryDelayBase,
		})
		reading, err := client.FetchLive(ctx)
		if err != nil {
			logger.Warn("Live reading unavailable, analyzing without index: %v", err)
			break
		}
		in.LiveIndex = reading.SetIndex
	}
	return in, nil
}
