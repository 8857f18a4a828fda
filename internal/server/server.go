// Package server exposes the read-only HTTP API: the live reading, the daily
// results table, the latest analysis as JSON or a downloadable text report,
// health and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewired-gh/twodoracle/internal/analysis"
	"github.com/rewired-gh/twodoracle/internal/config"
	"github.com/rewired-gh/twodoracle/internal/models"
	"github.com/rewired-gh/twodoracle/internal/tracker"
)

const (
	defaultResultDays = 7
	maxResultDays     = 90
)

// Source provides the tracker state served by the API
type Source interface {
	LastReading() *models.LiveReading
	LatestAnalysis() *tracker.AnalysisRecord
	Analyze(ctx context.Context, live *models.LiveReading) (*tracker.AnalysisRecord, error)
	Status() tracker.Status
}

// ResultStore lists stored daily results
type ResultStore interface {
	ListDailyResults(ctx context.Context, limit int) ([]models.DailyResult, error)
}

// Server wraps the Fiber app and configuration.
type Server struct {
	App *fiber.App
	Cfg config.ServerConfig

	source Source
	store  ResultStore
}

// New creates a new server with middleware and routes configured.
func New(cfg config.ServerConfig, source Source, store ResultStore) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
			}
			return jsonError(c, code, message)
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 100
	}
	app.Use(limiter.New(limiter.Config{
		Max:        rateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return jsonError(c, fiber.StatusTooManyRequests, "rate limit exceeded, please try again later")
		},
	}))

	s := &Server{
		App:    app,
		Cfg:    cfg,
		source: source,
		store:  store,
	}

	app.Get("/healthz", s.getHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/live", s.getLive)
	api.Get("/results", s.getResults)
	api.Get("/analysis", s.getAnalysis)
	api.Get("/analysis/report", s.getReport)

	return s
}

// Start listens on the configured address. It blocks until Shutdown.
func (s *Server) Start() error {
	return s.App.Listen(s.Cfg.Addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}

func (s *Server) getHealth(c fiber.Ctx) error {
	status := s.source.Status()
	state := "healthy"
	if status.ConsecutiveFailures > 0 {
		state = "degraded"
	}
	return jsonSuccess(c, fiber.Map{
		"state":   state,
		"monitor": status,
	})
}

func (s *Server) getLive(c fiber.Ctx) error {
	reading := s.source.LastReading()
	if reading == nil {
		return jsonError(c, fiber.StatusNotFound, "no live reading yet")
	}
	return jsonSuccess(c, reading)
}

func (s *Server) getResults(c fiber.Ctx) error {
	days := defaultResultDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxResultDays {
			return jsonError(c, fiber.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", maxResultDays))
		}
		days = n
	}

	results, err := s.store.ListDailyResults(c.Context(), days)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to load results")
	}
	return jsonSuccess(c, results)
}

func (s *Server) getAnalysis(c fiber.Ctx) error {
	rec, err := s.latestAnalysis(c)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to run analysis")
	}
	return jsonSuccess(c, rec)
}

func (s *Server) getReport(c fiber.Ctx) error {
	rec, err := s.latestAnalysis(c)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to run analysis")
	}
	c.Attachment(fmt.Sprintf("2d-analysis-%s.txt", rec.CreatedAt.Format("20060102-150405")))
	return c.SendString(analysis.FormatReport(rec.Output))
}

// latestAnalysis returns the tracker's latest analysis, running one on demand
// before the first monitoring cycle has produced it.
func (s *Server) latestAnalysis(c fiber.Ctx) (*tracker.AnalysisRecord, error) {
	if rec := s.source.LatestAnalysis(); rec != nil {
		return rec, nil
	}
	return s.source.Analyze(c.Context(), s.source.LastReading())
}
