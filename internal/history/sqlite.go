package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lockbyte/internal/history/migrations"
	"lockbyte/internal/lockbyte"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements lockbyte.HistoryStore on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger lockbyte.Logger
}

// NewSQLiteStore opens the database at path, migrating it to the latest
// schema. path can be a file path or ":memory:".
func NewSQLiteStore(path string, logger lockbyte.Logger) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	if logger == nil {
		logger = lockbyte.NewNopLogger()
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// connParams are applied by the driver to every pooled connection.
const connParams = "_foreign_keys=on&_busy_timeout=5000"

// OpenConnection opens and configures a SQLite connection. An in-memory
// database is limited to a single connection, since each connection would
// otherwise see its own empty database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *lockbyte.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, operation, target, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Operation.String(), run.Target, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	s.logger.Debug("run recorded", "run_id", run.ID, "operation", run.Operation.String())
	return nil
}

func (s *SQLiteStore) RecordFile(ctx context.Context, rec *lockbyte.FileRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_files (run_id, path, output, outcome, error_kind, error, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, path) DO UPDATE SET
		   output = excluded.output,
		   outcome = excluded.outcome,
		   error_kind = excluded.error_kind,
		   error = excluded.error,
		   finished_at = excluded.finished_at`,
		rec.RunID, rec.Path, rec.Output, rec.Outcome.String(), rec.ErrorKind, rec.Error, rec.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording %s for run %s: %w", rec.Path, rec.RunID, err)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *lockbyte.RunRecord) error {
	if run.FinishedAt == nil {
		return fmt.Errorf("finishing run %s: no finish time", run.ID)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, failed = ?, cancelled = ? WHERE id = ?`,
		run.FinishedAt.UTC(), run.Succeeded, run.Failed, run.Cancelled, run.ID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*lockbyte.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, target, started_at, finished_at, succeeded, failed, cancelled
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*lockbyte.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*lockbyte.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, operation, target, started_at, finished_at, succeeded, failed, cancelled
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context, runID string) ([]*lockbyte.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, path, output, outcome, error_kind, error, finished_at
		 FROM run_files WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing files for run %s: %w", runID, err)
	}
	defer rows.Close()

	var files []*lockbyte.FileRecord
	for rows.Next() {
		var rec lockbyte.FileRecord
		var outcome string
		if err := rows.Scan(&rec.RunID, &rec.Path, &rec.Output, &outcome, &rec.ErrorKind, &rec.Error, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning file record: %w", err)
		}
		if rec.Outcome, err = lockbyte.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		files = append(files, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing files for run %s: %w", runID, err)
	}
	return files, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*lockbyte.RunRecord, error) {
	var run lockbyte.RunRecord
	var op string
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &op, &run.Target, &run.StartedAt, &finished, &run.Succeeded, &run.Failed, &run.Cancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	var err error
	if run.Operation, err = lockbyte.ParseOperation(op); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// Compile-time check
var _ lockbyte.HistoryStore = (*SQLiteStore)(nil)
