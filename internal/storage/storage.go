// Package storage persists estimation runs in SQLite: run metadata, the
// case series each run was computed from, and its per-day Rt estimates.
//
// Old runs are rotated out so the database stays bounded. Use ":memory:" as
// the path for an ephemeral store.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/rtestimate/internal/models"
)

// ErrNotFound is returned when a requested run does not exist
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	region      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	first_date  TEXT NOT NULL,
	last_date   TEXT NOT NULL,
	days        INTEGER NOT NULL,
	latest_ml   REAL NOT NULL,
	latest_low  REAL NOT NULL,
	latest_high REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_region_created ON runs (region, created_at);
CREATE TABLE IF NOT EXISTS cases (
	run_id   TEXT NOT NULL,
	date     TEXT NOT NULL,
	original REAL NOT NULL,
	smoothed REAL NOT NULL,
	PRIMARY KEY (run_id, date)
);
CREATE TABLE IF NOT EXISTS estimates (
	run_id TEXT NOT NULL,
	date   TEXT NOT NULL,
	ml     REAL NOT NULL,
	low    REAL NOT NULL,
	high   REAL NOT NULL,
	PRIMARY KEY (run_id, date)
);
`

// Storage is a SQLite-backed run store
type Storage struct {
	db      *sql.DB
	maxRuns int
}

// New opens (or creates) the database at dbPath
func New(dbPath string, maxRuns int) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: every :memory: connection would be a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Storage{db: db, maxRuns: maxRuns}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun stores a run with its case series and estimates in one transaction
func (s *Storage) SaveRun(run *models.Run, original, smoothed models.CaseSeries, estimates []models.Estimate) (err error) {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if len(original) != len(smoothed) {
		return fmt.Errorf("original has %d days but smoothed has %d", len(original), len(smoothed))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`INSERT INTO runs
		(id, region, created_at, first_date, last_date, days, latest_ml, latest_low, latest_high)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Region, run.CreatedAt.UnixNano(),
		formatDate(run.FirstDate), formatDate(run.LastDate), run.Days,
		run.Latest.MostLikely, run.Latest.Low, run.Latest.High,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	caseStmt, err := tx.Prepare(`INSERT INTO cases (run_id, date, original, smoothed) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cases insert: %w", err)
	}
	defer caseStmt.Close()
	for i := range smoothed {
		if _, err = caseStmt.Exec(run.ID, formatDate(smoothed[i].Date), original[i].Count, smoothed[i].Count); err != nil {
			return fmt.Errorf("failed to insert case row: %w", err)
		}
	}

	estStmt, err := tx.Prepare(`INSERT INTO estimates (run_id, date, ml, low, high) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare estimates insert: %w", err)
	}
	defer estStmt.Close()
	for _, e := range estimates {
		if err = e.Validate(); err != nil {
			return fmt.Errorf("invalid estimate for %s: %w", formatDate(e.Date), err)
		}
		if _, err = estStmt.Exec(run.ID, formatDate(e.Date), e.MostLikely, e.Low, e.High); err != nil {
			return fmt.Errorf("failed to insert estimate row: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, region, created_at, first_date, last_date, days, latest_ml, latest_low, latest_high`

// GetRun retrieves a run by ID
func (s *Storage) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// LatestRun retrieves the most recent run for region
func (s *Storage) LatestRun(region string) (*models.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE region = ?
		ORDER BY created_at DESC LIMIT 1`, region)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*models.Run, error) {
	var (
		r                   models.Run
		createdAt           int64
		firstDate, lastDate string
	)
	err := row.Scan(&r.ID, &r.Region, &createdAt, &firstDate, &lastDate, &r.Days,
		&r.Latest.MostLikely, &r.Latest.Low, &r.Latest.High)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	r.CreatedAt = time.Unix(0, createdAt)
	if r.FirstDate, err = parseDate(firstDate); err != nil {
		return nil, err
	}
	if r.LastDate, err = parseDate(lastDate); err != nil {
		return nil, err
	}
	r.Latest.Date = r.LastDate
	return &r, nil
}

// GetEstimates returns the estimates of a run in date order
func (s *Storage) GetEstimates(runID string) ([]models.Estimate, error) {
	rows, err := s.db.Query(`SELECT date, ml, low, high FROM estimates WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	var estimates []models.Estimate
	for rows.Next() {
		var (
			e    models.Estimate
			date string
		)
		if err := rows.Scan(&date, &e.MostLikely, &e.Low, &e.High); err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		if e.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		estimates = append(estimates, e)
	}
	return estimates, rows.Err()
}

// GetCases returns the original and smoothed series a run was computed from
func (s *Storage) GetCases(runID string) (original, smoothed models.CaseSeries, err error) {
	rows, err := s.db.Query(`SELECT date, original, smoothed FROM cases WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date   string
			o, sm  float64
			parsed time.Time
		)
		if err := rows.Scan(&date, &o, &sm); err != nil {
			return nil, nil, fmt.Errorf("failed to scan case row: %w", err)
		}
		if parsed, err = parseDate(date); err != nil {
			return nil, nil, err
		}
		original = append(original, models.Observation{Date: parsed, Count: o})
		smoothed = append(smoothed, models.Observation{Date: parsed, Count: sm})
	}
	return original, smoothed, rows.Err()
}

// CountRuns returns the number of stored runs
func (s *Storage) CountRuns() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// RotateRuns removes the oldest runs exceeding the max limit
func (s *Storage) RotateRuns() (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Keep only the most recent runs
	const stale = `SELECT id FROM runs ORDER BY created_at DESC LIMIT -1 OFFSET ?`
	for _, table := range []string{"cases", "estimates"} {
		if _, err = tx.Exec(`DELETE FROM `+table+` WHERE run_id IN (`+stale+`)`, s.maxRuns); err != nil {
			return fmt.Errorf("failed to rotate %s: %w", table, err)
		}
	}
	if _, err = tx.Exec(`DELETE FROM runs WHERE id IN (`+stale+`)`, s.maxRuns); err != nil {
		return fmt.Errorf("failed to rotate runs: %w", err)
	}
	return tx.Commit()
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t, nil
}
