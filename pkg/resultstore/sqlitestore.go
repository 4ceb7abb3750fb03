// Package resultstore persists per-run complex calls and differential calls
// in SQLite, so runs over the same dataset can be compared later.
package resultstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/complexome/prophet/pkg/models"
)

// Run summarizes one pipeline invocation.
type Run struct {
	ID         string    `json:"id"`
	Dataset    string    `json:"dataset"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
}

// SQLiteStore provides SQLite-based persistence for runs and their results.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the result database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by SQLite anyway, keep the pool small.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// In-memory databases report "delete" or "memory" mode, which is fine
	// for tests.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}
	if journalMode != "wal" && journalMode != "delete" && journalMode != "memory" {
		return nil, fmt.Errorf("unexpected journal mode: got %s", journalMode)
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		dataset TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS complex_calls (
		run_id TEXT NOT NULL,
		complex_id TEXT NOT NULL,
		condition TEXT NOT NULL,
		cohesion REAL NOT NULL,
		confidence TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (run_id, condition, complex_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_complex_calls_run_id ON complex_calls(run_id);

	CREATE TABLE IF NOT EXISTS differential_calls (
		run_id TEXT NOT NULL,
		complex_id TEXT NOT NULL,
		condition_a TEXT NOT NULL,
		condition_b TEXT NOT NULL,
		direction TEXT NOT NULL,
		adj_p_value REAL NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (run_id, condition_a, condition_b, complex_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_differential_calls_run_id ON differential_calls(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or updates a run record.
func (s *SQLiteStore) SaveRun(run *Run) error {
	query := `
		INSERT OR REPLACE INTO runs (id, dataset, started_at, finished_at, status)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, run.ID, run.Dataset, run.StartedAt, run.FinishedAt, run.Status)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	var run Run
	query := `SELECT id, dataset, started_at, finished_at, status FROM runs WHERE id = ?`

	err := s.db.QueryRow(query, id).Scan(&run.ID, &run.Dataset, &run.StartedAt, &run.FinishedAt, &run.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns lists all runs, most recent first.
func (s *SQLiteStore) ListRuns() ([]*Run, error) {
	query := `SELECT id, dataset, started_at, finished_at, status FROM runs ORDER BY started_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Dataset, &run.StartedAt, &run.FinishedAt, &run.Status); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

// SaveComplexCalls stores the complex candidates of one run in a single
// transaction.
func (s *SQLiteStore) SaveComplexCalls(runID string, candidates []*models.ComplexCandidate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT OR REPLACE INTO complex_calls (run_id, complex_id, condition, cohesion, confidence, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, c := range candidates {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal candidate %s: %w", c.ID, err)
		}
		if _, err := tx.Exec(query, runID, c.ID, c.Condition, c.Cohesion, string(c.Confidence), string(data)); err != nil {
			return fmt.Errorf("failed to save candidate %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListComplexCalls retrieves the complex candidates of a run, ordered by
// condition then complex ID.
func (s *SQLiteStore) ListComplexCalls(runID string) ([]*models.ComplexCandidate, error) {
	query := `SELECT data FROM complex_calls WHERE run_id = ? ORDER BY condition, complex_id`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list complex calls: %w", err)
	}
	defer rows.Close()

	candidates := make([]*models.ComplexCandidate, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var c models.ComplexCandidate
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			continue
		}
		candidates = append(candidates, &c)
	}
	return candidates, nil
}

// SaveDifferentialCalls stores the differential calls of one run in a
// single transaction.
func (s *SQLiteStore) SaveDifferentialCalls(runID string, calls []*models.DifferentialCall) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT OR REPLACE INTO differential_calls (run_id, complex_id, condition_a, condition_b, direction, adj_p_value, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, call := range calls {
		data, err := json.Marshal(call)
		if err != nil {
			return fmt.Errorf("failed to marshal call %s: %w", call.ComplexID, err)
		}
		if _, err := tx.Exec(query, runID, call.ComplexID, call.ConditionA, call.ConditionB,
			string(call.Direction), call.AdjPValue, string(data)); err != nil {
			return fmt.Errorf("failed to save call %s: %w", call.ComplexID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListDifferentialCalls retrieves the differential calls of a run, ordered
// by complex ID.
func (s *SQLiteStore) ListDifferentialCalls(runID string) ([]*models.DifferentialCall, error) {
	query := `SELECT data FROM differential_calls WHERE run_id = ? ORDER BY complex_id`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list differential calls: %w", err)
	}
	defer rows.Close()

	calls := make([]*models.DifferentialCall, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var call models.DifferentialCall
		if err := json.Unmarshal([]byte(data), &call); err != nil {
			continue
		}
		calls = append(calls, &call)
	}
	return calls, nil
}
