package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"

	"lockbyte/internal/lockbyte"
)

// Defaults for zero-valued Options fields.
const (
	DefaultWorkers            = 2
	DefaultPollInterval       = 200 * time.Millisecond
	DefaultJournalLockTimeout = 500 * time.Millisecond
)

// Cipher runs the single-file operations a batch is made of.
type Cipher interface {
	Encrypt(ctx context.Context, password, source string, opts lockbyte.Options) (string, error)
	Decrypt(ctx context.Context, password, source string, opts lockbyte.Options) (string, error)
}

// Options configures an Engine.
type Options struct {
	Workers            int
	PollInterval       time.Duration
	JournalLockTimeout time.Duration
	Clock              lockbyte.Clock
	IDGen              lockbyte.IDGenerator
	Journal            io.Writer
	History            lockbyte.HistoryStore
}

// Request describes one user action.
type Request struct {
	Paths         []string
	Operation     lockbyte.Operation
	Password      string
	KeepOriginals bool
}

// Engine turns Requests into Runs. It holds no per-run state, so several
// Runs may be in flight at once.
type Engine struct {
	cipher Cipher
	fsmgr  lockbyte.FilesystemManager
	logger lockbyte.Logger
	opts   Options
}

// NewEngine creates an Engine with the provided dependencies.
func NewEngine(cipher Cipher, fsmgr lockbyte.FilesystemManager, logger lockbyte.Logger, opts Options) *Engine {
	if logger == nil {
		logger = lockbyte.NewNopLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.JournalLockTimeout <= 0 {
		opts.JournalLockTimeout = DefaultJournalLockTimeout
	}
	if opts.Clock == nil {
		opts.Clock = lockbyte.RealClock{}
	}
	if opts.IDGen == nil {
		opts.IDGen = lockbyte.UUIDGenerator{}
	}
	return &Engine{
		cipher: cipher,
		fsmgr:  fsmgr,
		logger: logger,
		opts:   opts,
	}
}

// Submit validates req, enumerates its targets and starts a Run. Errors
// returned here happen before any Job exists: an invalid password, a target
// that cannot be resolved or walked, or EmptyTarget.
func (e *Engine) Submit(ctx context.Context, req Request) (*Run, error) {
	if req.Operation != lockbyte.OpEncrypt && req.Operation != lockbyte.OpDecrypt {
		return nil, lockbyte.NewError(lockbyte.KindUnexpected, "", fmt.Errorf("unsupported operation %v", req.Operation))
	}
	password, err := lockbyte.CheckPassword(req.Password)
	if err != nil {
		return nil, err
	}
	if len(req.Paths) == 0 {
		return nil, lockbyte.NewError(lockbyte.KindEmptyTarget, "", errors.New("no paths given"))
	}

	target := strings.Join(req.Paths, ", ")
	e.logger.Debug("batch state", "state", StateEnumerating.String(), "target", target)
	jobs, err := e.enumerate(req)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(e.opts.Workers, ants.WithPanicHandler(func(p any) {
		e.logger.Error("worker panic", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	run := newRun(ctx, e, req.Operation, password, req.KeepOriginals, target, jobs, pool)

	var total int64
	for _, j := range jobs {
		total += j.size
	}
	run.journal.Printf("Found %d file(s), %s", len(jobs), humanize.IBytes(uint64(total)))
	e.logger.Info("batch submitted", "run_id", run.id, "operation", req.Operation.String(), "files", len(jobs), "bytes", total)

	run.start()
	return run, nil
}

// job is one enumerated file.
type job struct {
	path string
	size int64
}

// enumerate expands req.Paths into Jobs. A single file is always a Job;
// directories are walked and, for decryption, filtered to containers.
func (e *Engine) enumerate(req Request) ([]job, error) {
	seen := make(map[string]bool)
	var jobs []job
	add := func(p *lockbyte.Path) {
		if seen[p.String()] {
			return
		}
		seen[p.String()] = true
		jobs = append(jobs, job{path: p.String(), size: p.Size()})
	}

	for _, raw := range req.Paths {
		p, err := e.fsmgr.Resolve(raw)
		if err != nil {
			return nil, lockbyte.NewError(lockbyte.KindIOFailure, raw, err)
		}
		if !p.IsDir() {
			add(p)
			continue
		}

		files, err := e.fsmgr.FindFiles(p)
		if err != nil {
			return nil, lockbyte.NewError(lockbyte.KindIOFailure, raw, err)
		}
		for _, f := range files {
			if req.Operation == lockbyte.OpDecrypt && !lockbyte.IsContainerName(f.String()) {
				continue
			}
			add(f)
		}
	}

	if len(jobs) == 0 {
		return nil, lockbyte.NewError(lockbyte.KindEmptyTarget, strings.Join(req.Paths, ", "), fmt.Errorf("no files to %s", req.Operation))
	}
	return jobs, nil
}
