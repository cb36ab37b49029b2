// Package history records batch runs and their per-file outcomes.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"lockbyte/internal/config"
	"lockbyte/internal/lockbyte"
)

// DBFileName is the name of the SQLite database inside the history data dir.
const DBFileName = "history.db"

// ErrRunNotFound is returned when finishing a run that was never created.
var ErrRunNotFound = errors.New("run not found")

// NewStoreFromConfig creates a HistoryStore based on the history config type.
func NewStoreFromConfig(cfg config.HistoryConfig, logger lockbyte.Logger) (lockbyte.HistoryStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite history")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, DBFileName), logger)
	case "memory":
		return NewSQLiteStore(":memory:", logger)
	case "none":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}

// NopStore discards everything and remembers no runs.
type NopStore struct{}

func (NopStore) CreateRun(context.Context, *lockbyte.RunRecord) error   { return nil }
func (NopStore) RecordFile(context.Context, *lockbyte.FileRecord) error { return nil }
func (NopStore) FinishRun(context.Context, *lockbyte.RunRecord) error   { return nil }
func (NopStore) Close() error                                          { return nil }

func (NopStore) ListRuns(context.Context, int) ([]*lockbyte.RunRecord, error) {
	return nil, nil
}

func (NopStore) GetRun(context.Context, string) (*lockbyte.RunRecord, error) {
	return nil, nil
}

func (NopStore) ListFiles(context.Context, string) ([]*lockbyte.FileRecord, error) {
	return nil, nil
}

var _ lockbyte.HistoryStore = NopStore{}
