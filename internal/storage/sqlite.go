package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"cubelife/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, runID string, doc model.StateDocument) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeState(doc)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO states (run_id, version, generation, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			version = excluded.version,
			generation = excluded.generation,
			payload = excluded.payload
	`, runID, doc.Version, doc.Generation, payload)
	return err
}

func (s *SQLiteStore) GetState(ctx context.Context, runID string) (model.StateDocument, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.StateDocument{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM states WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StateDocument{}, false, nil
		}
		return model.StateDocument{}, false, err
	}

	doc, err := DecodeState(payload)
	if err != nil {
		return model.StateDocument{}, false, fmt.Errorf("decode state %s: %w", runID, err)
	}
	return doc, true, nil
}

func (s *SQLiteStore) SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO diagnostics (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM diagnostics WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	diagnostics, err := DecodeGenerationDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

// SaveRun upserts the run index row. An empty CreatedAtUTC keeps the
// original creation time.
func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at_utc, updated_at_utc, generation, champion, champion_fitness, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			created_at_utc = CASE WHEN excluded.created_at_utc = '' THEN runs.created_at_utc ELSE excluded.created_at_utc END,
			updated_at_utc = excluded.updated_at_utc,
			generation = excluded.generation,
			champion = excluded.champion,
			champion_fitness = excluded.champion_fitness,
			mode = excluded.mode
	`, run.RunID, run.CreatedAtUTC, run.UpdatedAtUTC, run.Generation, run.Champion, run.ChampionFitness, run.Mode)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT run_id, created_at_utc, updated_at_utc, generation, champion, champion_fitness, mode
		FROM runs WHERE run_id = ?
	`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, created_at_utc, updated_at_utc, generation, champion, champion_fitness, mode
		FROM runs ORDER BY updated_at_utc DESC, run_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]model.RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, table := range []string{"states", "diagnostics", "runs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete %s for %s: %w", table, runID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.RunRecord, error) {
	var run model.RunRecord
	err := row.Scan(&run.RunID, &run.CreatedAtUTC, &run.UpdatedAtUTC, &run.Generation, &run.Champion, &run.ChampionFitness, &run.Mode)
	return run, err
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS states (
			run_id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			generation INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS diagnostics (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			updated_at_utc TEXT NOT NULL,
			generation INTEGER NOT NULL,
			champion TEXT NOT NULL,
			champion_fitness REAL NOT NULL,
			mode TEXT NOT NULL
		);
	`)
	return err
}
