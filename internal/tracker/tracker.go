// Package tracker runs the monitoring cycle: it reads the live SET feed,
// records a session result when a result time has just passed, re-runs the
// pattern analysis over the stored history and sends notifications.
//
// Analyses are cached by a content hash of their input. The analysis core is a
// pure function, so an identical input always yields an identical record.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/twodoracle/internal/analysis"
	"github.com/rewired-gh/twodoracle/internal/logger"
	"github.com/rewired-gh/twodoracle/internal/metrics"
	"github.com/rewired-gh/twodoracle/internal/models"
	"github.com/rewired-gh/twodoracle/internal/schedule"
	"github.com/rewired-gh/twodoracle/internal/storage"
	"github.com/rewired-gh/twodoracle/internal/thaistock"
)

// Feed provides live SET readings
type Feed interface {
	FetchLive(ctx context.Context) (*models.LiveReading, error)
}

// Store persists results and cached analyses
type Store interface {
	GetDailyResult(ctx context.Context, date string) (*models.DailyResult, error)
	UpsertDailyResult(ctx context.Context, r *models.DailyResult) (*models.DailyResult, error)
	RecentNumbers(ctx context.Context, sessions []models.Session, n int) ([]models.TwoD, error)
	GetAnalysis(ctx context.Context, key string) ([]byte, error)
	PutAnalysis(ctx context.Context, key string, payload []byte) error
}

// Notifier delivers notifications. A nil Notifier disables them.
type Notifier interface {
	SendResult(ctx context.Context, date string, session models.Session, r *models.SessionResult) error
	SendAnalysis(ctx context.Context, out *analysis.Output) error
	SendError(ctx context.Context, cause error) error
	SendRecovery(ctx context.Context, failedCycles int, downtime time.Duration) error
}

// Config holds the analysis settings used by the tracker
type Config struct {
	Sessions         []models.Session
	FilteringWindow  int
	EvaluationWindow int
	CacheEnabled     bool
}

// AnalysisRecord is one analysis run together with the input it was computed from
type AnalysisRecord struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Input     analysis.Input  `json:"input"`
	Output    analysis.Output `json:"output"`
	Cached    bool            `json:"cached"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CycleResult summarizes one monitoring cycle
type CycleResult struct {
	ID       string
	Idle     bool // market closed, nothing was fetched
	Reading  *models.LiveReading
	Recorded models.Session // empty when no result was recorded
	Analysis *AnalysisRecord
	Duration time.Duration
}

// Status reports the health of the monitoring loop
type Status struct {
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	FailingSince        time.Time `json:"failingSince,omitzero"`
	LastCycleAt         time.Time `json:"lastCycleAt,omitzero"`
}

// Tracker coordinates feed, storage, analysis and notifications
type Tracker struct {
	feed     Feed
	store    Store
	notifier Notifier
	policy   *schedule.Policy
	cfg      Config

	mu     sync.RWMutex
	live   *models.LiveReading
	latest *AnalysisRecord
	status Status
}

// New creates a new Tracker. notifier may be nil.
func New(feed Feed, store Store, notifier Notifier, policy *schedule.Policy, cfg Config) *Tracker {
	return &Tracker{
		feed:     feed,
		store:    store,
		notifier: notifier,
		policy:   policy,
		cfg:      cfg,
	}
}

// RunCycle runs one monitoring cycle at now and updates failure tracking.
// The first failure after a success sends an error notice, the first success
// after failures sends a recovery notice.
func (t *Tracker) RunCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	result, err := t.runCycle(ctx, now)
	t.handleCycleResult(ctx, err, now)

	switch {
	case err != nil:
		metrics.RecordCycle(metrics.OutcomeFailed)
	case result.Recorded != "":
		metrics.RecordCycle(metrics.OutcomeRecorded)
	default:
		metrics.RecordCycle(metrics.OutcomeOK)
	}
	return result, err
}

// RunScheduledCycle runs a cycle only while the market is open. Outside market
// hours it returns an idle result without contacting the feed.
func (t *Tracker) RunScheduledCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	if _, open := t.policy.Interval(now); !open {
		logger.Debug("Market closed, skipping cycle")
		metrics.RecordCycle(metrics.OutcomeIdle)
		return &CycleResult{ID: uuid.NewString(), Idle: true}, nil
	}
	return t.RunCycle(ctx, now)
}

func (t *Tracker) runCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	startTime := time.Now()
	result := &CycleResult{ID: uuid.NewString()}
	logger.Debug("Starting monitoring cycle %s", result.ID)

	reading, err := t.feed.FetchLive(ctx)
	if err != nil {
		metrics.RecordFeedFailure()
		return nil, fmt.Errorf("failed to fetch live reading: %w", err)
	}
	result.Reading = reading
	t.setLive(reading)

	if set, _, err := thaistock.ParseReading(reading.SetIndex, reading.Value); err == nil {
		metrics.SetIndex(set.InexactFloat64())
	} else {
		logger.Warn("Failed to parse live reading: %v", err)
	}
	logger.Debug("Live reading: SET %s, value %s, 2D %s", reading.SetIndex, reading.Value, reading.TwoD)

	session, recorded, err := t.recordSettled(ctx, reading, now)
	if err != nil {
		return nil, err
	}
	if recorded {
		result.Recorded = session
	}

	if recorded || t.analysisStale(reading) {
		rec, err := t.Analyze(ctx, reading)
		if err != nil {
			return nil, fmt.Errorf("failed to analyze: %w", err)
		}
		result.Analysis = rec

		if recorded && t.notifier != nil {
			if err := t.notifier.SendAnalysis(ctx, &rec.Output); err != nil {
				logger.Error("Failed to send analysis notification: %v", err)
			}
		}
	}

	result.Duration = time.Since(startTime)
	logger.Debug("Monitoring cycle %s completed in %v", result.ID, result.Duration)
	return result, nil
}

// recordSettled stores the live reading as the result of a session whose
// result time just passed, unless that session is already stored.
func (t *Tracker) recordSettled(ctx context.Context, reading *models.LiveReading, now time.Time) (models.Session, bool, error) {
	session, ok := t.policy.SettledSession(now)
	if !ok {
		return "", false, nil
	}
	date := t.policy.Date(now)

	// A frozen feed (holiday, stalled upstream) keeps serving an older
	// reading; only a reading published inside the settle window is a result.
	published, err := t.policy.PublishedAt(now, reading.UpdatedAt)
	if err != nil {
		logger.Warn("Not recording %s %s result: %v", date, session, err)
		return "", false, nil
	}
	at := t.policy.SessionTime(now, session)
	if published.Before(at) || !published.Before(at.Add(schedule.SettleWindow)) {
		logger.Warn("Not recording %s %s result: live reading published at %q is outside the settle window",
			date, session, reading.UpdatedAt)
		return "", false, nil
	}

	existing, err := t.store.GetDailyResult(ctx, date)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", false, fmt.Errorf("failed to load daily result: %w", err)
	}
	if existing != nil && existing.Result(session) != nil {
		return "", false, nil
	}

	day := &models.DailyResult{Date: date, UpdatedAt: now}
	day.SetResult(session, reading.SessionResult())
	if _, err := t.store.UpsertDailyResult(ctx, day); err != nil {
		return "", false, fmt.Errorf("failed to record %s result: %w", session, err)
	}

	metrics.RecordResult(string(session))
	logger.Info("Recorded %s %s result: %s", date, session, reading.TwoD)

	if t.notifier != nil {
		if err := t.notifier.SendResult(ctx, date, session, reading.SessionResult()); err != nil {
			logger.Error("Failed to send result notification: %v", err)
		}
	}
	return session, true, nil
}

// Analyze runs the pattern analysis for the given live reading over the
// stored history. A nil reading analyzes without a live index.
func (t *Tracker) Analyze(ctx context.Context, live *models.LiveReading) (*AnalysisRecord, error) {
	filtering, err := t.store.RecentNumbers(ctx, t.cfg.Sessions, t.cfg.FilteringWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load filtering window: %w", err)
	}
	evaluation, err := t.store.RecentNumbers(ctx, t.cfg.Sessions, t.cfg.EvaluationWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation window: %w", err)
	}

	in := analysis.Input{PreviousAndRecent: filtering, EvaluationWindow: evaluation}
	if live != nil {
		in.LiveIndex = live.SetIndex
	}

	key, err := analysis.Fingerprint(in)
	if err != nil {
		return nil, err
	}

	rec := &AnalysisRecord{
		ID:        uuid.NewString(),
		Key:       key,
		Input:     in,
		CreatedAt: time.Now(),
	}

	if out, ok := t.cachedOutput(ctx, key); ok {
		rec.Output = out
		rec.Cached = true
	} else {
		rec.Output = analysis.Analyze(in)
		t.cacheOutput(ctx, key, &rec.Output)
	}

	metrics.RecordAnalysis(rec.Cached)
	if len(rec.Output.TopCandidates) > 0 {
		metrics.SetTopConfidence(rec.Output.TopCandidates[0].Confidence)
	} else {
		metrics.SetTopConfidence(0)
	}
	logger.Info("Analysis %s: %d top candidates (cached: %v, filtering: %d, evaluation: %d)",
		rec.ID, len(rec.Output.TopCandidates), rec.Cached, len(filtering), len(evaluation))

	t.mu.Lock()
	t.latest = rec
	t.mu.Unlock()
	return rec, nil
}

// analysisStale reports whether the latest analysis was computed for a
// different live index than reading, or does not exist yet.
func (t *Tracker) analysisStale(reading *models.LiveReading) bool {
	latest := t.LatestAnalysis()
	return latest == nil || latest.Input.LiveIndex != reading.SetIndex
}

func (t *Tracker) cachedOutput(ctx context.Context, key string) (analysis.Output, bool) {
	var out analysis.Output
	if !t.cfg.CacheEnabled {
		return out, false
	}
	payload, err := t.store.GetAnalysis(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("Failed to read cached analysis: %v", err)
		}
		return out, false
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		logger.Warn("Discarding undecodable cached analysis %s: %v", key, err)
		return analysis.Output{}, false
	}
	return out, true
}

func (t *Tracker) cacheOutput(ctx context.Context, key string, out *analysis.Output) {
	if !t.cfg.CacheEnabled {
		return
	}
	payload, err := json.Marshal(out)
	if err != nil {
		logger.Warn("Failed to encode analysis: %v", err)
		return
	}
	if err := t.store.PutAnalysis(ctx, key, payload); err != nil {
		logger.Warn("Failed to cache analysis: %v", err)
	}
}

func (t *Tracker) handleCycleResult(ctx context.Context, err error, now time.Time) {
	t.mu.Lock()
	t.status.LastCycleAt = now
	failures := t.status.ConsecutiveFailures
	since := t.status.FailingSince
	if err != nil {
		t.status.ConsecutiveFailures++
		if failures == 0 {
			t.status.FailingSince = now
		}
	} else {
		t.status.ConsecutiveFailures = 0
		t.status.FailingSince = time.Time{}
	}
	t.mu.Unlock()

	if err != nil {
		logger.Error("Monitoring cycle failed: %v", err)
		if failures == 0 && t.notifier != nil {
			if sendErr := t.notifier.SendError(ctx, err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		return
	}

	if failures > 0 {
		logger.Info("Monitoring recovered after %d failed cycles", failures)
		if t.notifier != nil {
			if sendErr := t.notifier.SendRecovery(ctx, failures, now.Sub(since)); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
	}
}

func (t *Tracker) setLive(r *models.LiveReading) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = r
}

// LastReading returns the most recent live reading, or nil before the first
// successful cycle.
func (t *Tracker) LastReading() *models.LiveReading {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// LatestAnalysis returns the most recent analysis record, or nil.
func (t *Tracker) LatestAnalysis() *AnalysisRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// Status returns the current failure tracking state
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
