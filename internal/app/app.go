package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"lockbyte/internal/batch"
	"lockbyte/internal/config"
	"lockbyte/internal/fs"
	"lockbyte/internal/history"
	"lockbyte/internal/kdf"
	"lockbyte/internal/lockbyte"
)

// Options controls where the app reports while it runs.
type Options struct {
	// Journal receives the batch progress lines. Nil discards them.
	Journal io.Writer
	// Stderr receives diagnostics at StderrLevel or above. Nil keeps them
	// in the log file only.
	Stderr      io.Writer
	StderrLevel slog.Level
}

// LockByteApp is the application layer between the CLI and the batch engine.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and releases the history store and log file
// on Close.
type LockByteApp struct {
	cfg     *config.Config
	logger  lockbyte.Logger
	fsmgr   lockbyte.FilesystemManager
	history lockbyte.HistoryStore
	engine  *batch.Engine
	logFile *os.File
}

// NewLockByteApp creates a fully wired LockByteApp from the given config.
// The caller must call Close when done.
func NewLockByteApp(cfg *config.Config, opts Options) (*LockByteApp, error) {
	return newLockByteApp(cfg, opts, kdf.New())
}

func newLockByteApp(cfg *config.Config, opts Options, chain *kdf.Chain) (*LockByteApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l, logFile, err := newLogger(cfg.LogDir, opts.Stderr, opts.StderrLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	store, err := history.NewStoreFromConfig(cfg.History, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore, logger)
	cipher := lockbyte.NewFileCipher(chain, fsmgr, logger)
	engine := batch.NewEngine(cipher, fsmgr, logger, batch.Options{
		Workers:            cfg.Batch.Workers,
		PollInterval:       cfg.Batch.PollInterval.Duration,
		JournalLockTimeout: cfg.Batch.JournalLockTimeout.Duration,
		Clock:              lockbyte.RealClock{},
		IDGen:              lockbyte.UUIDGenerator{},
		Journal:            opts.Journal,
		History:            store,
	})

	return &LockByteApp{
		cfg:     cfg,
		logger:  logger,
		fsmgr:   fsmgr,
		history: store,
		engine:  engine,
		logFile: logFile,
	}, nil
}

// Config returns the effective configuration.
func (a *LockByteApp) Config() *config.Config { return a.cfg }

// Submit starts a batch for paths. keep leaves originals in place on top of
// the configured keep_originals setting.
func (a *LockByteApp) Submit(ctx context.Context, op lockbyte.Operation, paths []string, password string, keep bool) (*batch.Run, error) {
	run, err := a.engine.Submit(ctx, batch.Request{
		Paths:         paths,
		Operation:     op,
		Password:      password,
		KeepOriginals: keep || a.cfg.Batch.KeepOriginals,
	})
	if err != nil {
		a.logger.Warn("batch rejected", "operation", op.String(), "error", err)
		return nil, err
	}
	return run, nil
}

// Encrypt starts an encryption batch for paths.
func (a *LockByteApp) Encrypt(ctx context.Context, paths []string, password string, keep bool) (*batch.Run, error) {
	return a.Submit(ctx, lockbyte.OpEncrypt, paths, password, keep)
}

// Decrypt starts a decryption batch for paths.
func (a *LockByteApp) Decrypt(ctx context.Context, paths []string, password string) (*batch.Run, error) {
	return a.Submit(ctx, lockbyte.OpDecrypt, paths, password, false)
}

// Open decrypts path if it names a container and encrypts it otherwise.
func (a *LockByteApp) Open(ctx context.Context, path, password string, keep bool) (*batch.Run, error) {
	return a.Submit(ctx, OperationFor(path), []string{path}, password, keep)
}

// GetHistory returns the most recent runs, newest first.
func (a *LockByteApp) GetHistory(ctx context.Context, limit int) ([]*lockbyte.RunRecord, error) {
	runs, err := a.history.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run and its per-file outcomes.
func (a *LockByteApp) GetRun(ctx context.Context, id string) (*lockbyte.RunRecord, []*lockbyte.FileRecord, error) {
	run, err := a.history.GetRun(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading run: %w", err)
	}
	if run == nil {
		return nil, nil, fmt.Errorf("%w: %s", history.ErrRunNotFound, id)
	}
	files, err := a.history.ListFiles(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing files of run %s: %w", id, err)
	}
	return run, files, nil
}

// Close releases the history store and the log file.
func (a *LockByteApp) Close() error {
	var firstErr error
	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing history: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
