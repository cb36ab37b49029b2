package lockbyte

import (
	"context"
	"time"
)

// RunRecord is the persisted summary of one batch run.
type RunRecord struct {
	ID         string
	Operation  Operation
	Target     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Succeeded  int
	Failed     int
	Cancelled  int
}

// FileRecord is the persisted outcome of one Job.
type FileRecord struct {
	RunID      string
	Path       string
	Output     string
	Outcome    Outcome
	ErrorKind  string
	Error      string
	FinishedAt time.Time
}

// HistoryStore records batch runs and their per-file outcomes.
type HistoryStore interface {
	// CreateRun stores a new, unfinished run.
	CreateRun(ctx context.Context, run *RunRecord) error

	// RecordFile stores the terminal outcome of one file in a run.
	RecordFile(ctx context.Context, rec *FileRecord) error

	// FinishRun marks a run finished and stores its final counts.
	FinishRun(ctx context.Context, run *RunRecord) error

	// ListRuns returns up to limit runs, most recent first.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// GetRun returns a run by id, or nil if it does not exist.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListFiles returns the file outcomes of a run ordered by path.
	ListFiles(ctx context.Context, runID string) ([]*FileRecord, error)

	// Close releases any resources held by the store.
	Close() error
}
