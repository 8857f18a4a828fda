// Package storage persists daily 2D results and cached analysis records in an
// embedded SQLite database.
//
// Daily results are keyed by trading date and upserted session by session, so
// a result recorded live at 12:01 and a later bulk import of the same day merge
// into one row. Old days are rotated out to keep the history bounded.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/twodoracle/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Storage provides thread-safe SQLite-backed persistence
type Storage struct {
	db *sql.DB
	mu sync.RWMutex

	// Configuration
	maxDays int
}

// New opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for a throwaway database.
func New(maxDays int, dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; an in-memory database also only exists
	// on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db, maxDays: maxDays}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertDailyResult merges r into the stored day, creating it if needed.
// The 15:00 session is forced to a copy of 12:01. Returns the merged day.
func (s *Storage) UpsertDailyResult(ctx context.Context, r *models.DailyResult) (*models.DailyResult, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daily result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	merged := models.DailyResult{Date: r.Date}
	existing, err := scanDailyResult(tx.QueryRowContext(ctx,
		`SELECT payload FROM daily_results WHERE date = ?`, r.Date))
	switch {
	case err == nil:
		merged = *existing
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	merged.Merge(r)
	merged.ApplyAfternoonCopy()
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = time.Now()
	}

	payload, err := json.Marshal(&merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal daily result: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily_results (date, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		merged.Date, string(payload), merged.UpdatedAt.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to upsert daily result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit daily result: %w", err)
	}
	return &merged, nil
}

// GetDailyResult retrieves the results of one trading day
func (s *Storage) GetDailyResult(ctx context.Context, date string) (*models.DailyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanDailyResult(s.db.QueryRowContext(ctx,
		`SELECT payload FROM daily_results WHERE date = ?`, date))
	if err != nil {
		return nil, fmt.Errorf("daily result %s: %w", date, err)
	}
	return r, nil
}

// ListDailyResults returns up to limit days, newest first. A limit of zero or
// less returns every stored day.
func (s *Storage) ListDailyResults(ctx context.Context, limit int) ([]models.DailyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM daily_results ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily results: %w", err)
	}
	defer rows.Close()

	results := make([]models.DailyResult, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan daily result: %w", err)
		}
		var r models.DailyResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("failed to decode daily result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily results: %w", err)
	}
	return results, nil
}

// CountDailyResults returns the number of stored trading days
func (s *Storage) CountDailyResults(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count daily results: %w", err)
	}
	return n, nil
}

// RecentNumbers returns up to n drawn 2D numbers of the given sessions, most
// recent first. Within a day the later session comes first.
func (s *Storage) RecentNumbers(ctx context.Context, sessions []models.Session, n int) ([]models.TwoD, error) {
	if n <= 0 {
		return []models.TwoD{}, nil
	}

	days, err := s.ListDailyResults(ctx, 0)
	if err != nil {
		return nil, err
	}

	numbers := make([]models.TwoD, 0, n)
	for i := range days {
		for _, num := range days[i].Numbers(sessions) {
			numbers = append(numbers, num)
			if len(numbers) == n {
				return numbers, nil
			}
		}
	}
	return numbers, nil
}

// GetAnalysis returns the cached analysis payload stored under key
func (s *Storage) GetAnalysis(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_cache WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached analysis: %w", err)
	}
	return payload, nil
}

// PutAnalysis stores an analysis payload under key, replacing any previous one
func (s *Storage) PutAnalysis(ctx context.Context, key string, payload []byte) error {
	if key == "" {
		return errors.New("cache key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (key, payload, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, payload, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}
	return nil
}

// RotateResults removes days beyond the newest maxDays and drops cached
// analyses created before the newest stored result, whose inputs can no
// longer recur.
func (s *Storage) RotateResults(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM daily_results WHERE date NOT IN (
			SELECT date FROM daily_results ORDER BY date DESC LIMIT ?
		)`, s.maxDays); err != nil {
		return fmt.Errorf("failed to rotate daily results: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM analysis_cache
		WHERE created_at < (SELECT COALESCE(MAX(updated_at), 0) FROM daily_results)`); err != nil {
		return fmt.Errorf("failed to rotate analysis cache: %w", err)
	}
	return nil
}

func scanDailyResult(row *sql.Row) (*models.DailyResult, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read daily result: %w", err)
	}
	var r models.DailyResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to decode daily result: %w", err)
	}
	return &r, nil
}
