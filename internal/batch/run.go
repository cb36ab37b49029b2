package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"lockbyte/internal/lockbyte"
)

// Run is the handle to one submitted batch. Jobs run on the Run's own worker
// pool; a monitor polls their completion and finalizes the Run once every Job
// is terminal. All methods are safe for concurrent use.
type Run struct {
	id        string
	op        lockbyte.Operation
	password  string
	keep      bool
	target    string
	startedAt time.Time

	engine  *Engine
	logger  lockbyte.Logger
	journal *Journal
	history lockbyte.HistoryStore

	ctx    context.Context
	cancel context.CancelFunc
	pool   *ants.Pool

	jobs    []job
	results []Result // each slot is written only by the worker that owns the job

	state    atomic.Int32
	pending  atomic.Int64
	running  atomic.Int64
	finished atomic.Int64

	cancelOnce sync.Once
	dispatched chan struct{}
	done       chan struct{}
	summary    *Summary
}

func newRun(parent context.Context, e *Engine, op lockbyte.Operation, password string, keep bool, target string, jobs []job, pool *ants.Pool) *Run {
	ctx, cancel := context.WithCancel(parent)
	r := &Run{
		id:         e.opts.IDGen.New(),
		op:         op,
		password:   password,
		keep:       keep,
		target:     target,
		startedAt:  e.opts.Clock.Now(),
		engine:     e,
		history:    e.opts.History,
		ctx:        ctx,
		cancel:     cancel,
		pool:       pool,
		jobs:       jobs,
		results:    make([]Result, len(jobs)),
		dispatched: make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.logger = &runLogger{Logger: e.logger, runID: r.id}
	r.journal = NewJournal(e.opts.Journal, e.opts.Clock, e.opts.JournalLockTimeout, r.logger)
	for i, j := range jobs {
		r.results[i] = Result{Path: j.path, Outcome: lockbyte.OutcomePending}
	}
	r.pending.Store(int64(len(jobs)))
	r.state.Store(int32(StateRunning))
	return r
}

// ID returns the run's unique id.
func (r *Run) ID() string { return r.id }

// Operation returns what the run does to each file.
func (r *Run) Operation() lockbyte.Operation { return r.op }

// Total returns the number of Jobs in the run.
func (r *Run) Total() int { return len(r.jobs) }

// Poll returns the current progress without blocking.
func (r *Run) Poll() Status {
	return Status{
		State:   State(r.state.Load()),
		Pending: int(r.pending.Load()),
		Running: int(r.running.Load()),
		Done:    int(r.finished.Load()),
		Total:   len(r.jobs),
	}
}

// Cancel requests cooperative cancellation. Queued Jobs are dropped, in-flight
// Jobs stop at their checkpoint, and a decryption whose output was already
// written is rolled back. Cancel after the run has finished is a no-op.
func (r *Run) Cancel() {
	select {
	case <-r.done:
		return
	default:
	}
	r.cancel()
	r.markCancelling()
}

// Done is closed once every Job is terminal and the Summary is available.
func (r *Run) Done() <-chan struct{} { return r.done }

// Drain waits for the run to finish and returns its Summary.
func (r *Run) Drain(ctx context.Context) (*Summary, error) {
	select {
	case <-r.done:
		return r.summary, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Run) start() {
	r.recordStart()
	go r.dispatch()
	go r.monitor()
}

// markCancelling journals the cancellation once and moves a running or
// draining batch to Cancelling. It is also reached when the parent context is
// cancelled.
func (r *Run) markCancelling() {
	r.cancelOnce.Do(func() {
		if !r.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling)) {
			r.state.CompareAndSwap(int32(StateDraining), int32(StateCancelling))
		}
		r.logger.Info("batch cancellation requested", "done", r.finished.Load(), "total", len(r.jobs))
		r.journal.Printf("Aborting..")
		if r.op == lockbyte.OpDecrypt {
			r.journal.Printf("Rolling back changes..")
		}
	})
}

// dispatch hands Jobs to the pool in enumeration order. Submit blocks while
// every worker is busy; once the run is cancelled the remaining Jobs are
// marked Cancelled without ever reaching a worker.
func (r *Run) dispatch() {
	defer close(r.dispatched)

	for i := range r.jobs {
		if r.ctx.Err() != nil {
			r.dropFrom(i)
			return
		}
		idx := i
		if err := r.pool.Submit(func() { r.runJob(idx) }); err != nil {
			r.pending.Add(-1)
			r.complete(idx, Result{
				Path:    r.jobs[idx].path,
				Outcome: lockbyte.OutcomeFailed,
				Err:     lockbyte.NewError(lockbyte.KindUnexpected, r.jobs[idx].path, fmt.Errorf("submitting job: %w", err)),
			})
		}
	}
}

func (r *Run) dropFrom(start int) {
	dropped := len(r.jobs) - start
	for i := start; i < len(r.jobs); i++ {
		r.pending.Add(-1)
		r.complete(i, cancelledResult(r.jobs[i].path, r.ctx.Err()))
	}
	r.logger.Debug("queued jobs dropped", "count", dropped)
}

func cancelledResult(path string, cause error) Result {
	return Result{
		Path:    path,
		Outcome: lockbyte.OutcomeCancelled,
		Err:     lockbyte.NewError(lockbyte.KindCancelled, path, cause),
	}
}

// runJob executes one Job on a worker. Any failure, including a panic, is
// recorded in the Job's own slot and never reaches sibling Jobs.
func (r *Run) runJob(i int) {
	path := r.jobs[i].path
	r.pending.Add(-1)
	r.running.Add(1)

	var res Result
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("job panicked", "path", path, "panic", p, "stack", string(debug.Stack()))
			res = Result{
				Path:    path,
				Outcome: lockbyte.OutcomeFailed,
				Err:     lockbyte.NewError(lockbyte.KindUnexpected, path, fmt.Errorf("panic: %v", p)),
			}
		}
		r.running.Add(-1)
		r.complete(i, res)
	}()

	if err := r.ctx.Err(); err != nil {
		res = cancelledResult(path, err)
		return
	}

	r.journal.Printf("Reading File: %s", path)
	opts := lockbyte.Options{
		KeepOriginal: r.keep,
		Progress: func(s lockbyte.Stage) {
			if line := stageLine(s, path); line != "" {
				r.journal.Printf("%s", line)
			}
		},
	}

	cipher := r.engine.cipher
	var out string
	var err error
	if r.op == lockbyte.OpEncrypt {
		out, err = cipher.Encrypt(r.ctx, r.password, path, opts)
	} else {
		out, err = cipher.Decrypt(r.ctx, r.password, path, opts)
	}
	res = resultFor(path, out, err)
}

func resultFor(path, out string, err error) Result {
	if err == nil {
		return Result{Path: path, Output: out, Outcome: lockbyte.OutcomeSucceeded}
	}
	e := lockbyte.Classify(path, err)
	outcome := lockbyte.OutcomeFailed
	if e.Kind == lockbyte.KindCancelled {
		outcome = lockbyte.OutcomeCancelled
	}
	return Result{Path: path, Output: out, Outcome: outcome, Err: e}
}

// complete stores a Job's terminal Result, journals it and counts it done.
func (r *Run) complete(i int, res Result) {
	r.results[i] = res
	if res.Err != nil {
		r.logger.Warn("job failed", "path", res.Path, "outcome", res.Outcome.String(), "kind", res.Err.Kind.String(), "error", res.Err)
	}
	r.journal.Printf("%s", resultLine(r.op, res))
	r.recordFile(res)
	r.finished.Add(1)
}

// monitor polls Job completion on an interval and finalizes the run once
// everything is terminal.
func (r *Run) monitor() {
	ticker := time.NewTicker(r.engine.opts.PollInterval)
	defer ticker.Stop()

	ctxDone := r.ctx.Done()
	for {
		select {
		case <-ctxDone:
			r.markCancelling()
			ctxDone = nil
		case <-ticker.C:
		}

		select {
		case <-r.dispatched:
			r.toDraining()
		default:
		}

		if r.finished.Load() == int64(len(r.jobs)) {
			<-r.dispatched
			r.finalize()
			return
		}
	}
}

// toDraining moves the run to Draining once every Job has been handed out.
// A cancelled run stays Cancelling until no Job is in flight.
func (r *Run) toDraining() {
	from := StateRunning
	if State(r.state.Load()) == StateCancelling {
		if r.running.Load() > 0 {
			return
		}
		from = StateCancelling
	}
	if r.state.CompareAndSwap(int32(from), int32(StateDraining)) {
		r.logger.Debug("batch state", "state", StateDraining.String())
	}
}

func (r *Run) finalize() {
	r.pool.Release()
	r.summary = newSummary(r, r.engine.opts.Clock.Now())
	r.recordFinish()

	s := r.summary
	r.journal.Printf("Succeeded: %d, Failed: %d, Cancelled: %d", s.Succeeded, s.Failed, s.Cancelled)
	r.journal.Printf("Done.")
	r.logger.Info("batch finished", "succeeded", s.Succeeded, "failed", s.Failed, "cancelled", s.Cancelled, "duration", s.Duration())

	r.state.Store(int32(StateIdle))
	r.cancel()
	close(r.done)
}
