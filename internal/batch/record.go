package batch

import (
	"context"

	"lockbyte/internal/lockbyte"
)

// runLogger tags every record with the run id.
type runLogger struct {
	lockbyte.Logger
	runID string
}

func (l *runLogger) Debug(msg string, args ...any) { l.Logger.Debug(msg, l.with(args)...) }
func (l *runLogger) Info(msg string, args ...any)  { l.Logger.Info(msg, l.with(args)...) }
func (l *runLogger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, l.with(args)...) }
func (l *runLogger) Error(msg string, args ...any) { l.Logger.Error(msg, l.with(args)...) }

func (l *runLogger) with(args []any) []any {
	return append([]any{"run_id", l.runID}, args...)
}

// History writes are best effort: a failing store is logged and never
// changes a Job's outcome.

func (r *Run) historyCtx() context.Context {
	return context.WithoutCancel(r.ctx)
}

func (r *Run) recordStart() {
	if r.history == nil {
		return
	}
	rec := &lockbyte.RunRecord{
		ID:        r.id,
		Operation: r.op,
		Target:    r.target,
		StartedAt: r.startedAt,
	}
	if err := r.history.CreateRun(r.historyCtx(), rec); err != nil {
		r.logger.Warn("recording run start", "error", err)
	}
}

func (r *Run) recordFile(res Result) {
	if r.history == nil {
		return
	}
	rec := &lockbyte.FileRecord{
		RunID:      r.id,
		Path:       res.Path,
		Output:     res.Output,
		Outcome:    res.Outcome,
		FinishedAt: r.engine.opts.Clock.Now(),
	}
	if res.Err != nil {
		rec.ErrorKind = res.Err.Kind.String()
		rec.Error = res.Err.Error()
	}
	if err := r.history.RecordFile(r.historyCtx(), rec); err != nil {
		r.logger.Warn("recording file outcome", "path", res.Path, "error", err)
	}
}

func (r *Run) recordFinish() {
	if r.history == nil {
		return
	}
	s := r.summary
	finished := s.FinishedAt
	rec := &lockbyte.RunRecord{
		ID:         r.id,
		Operation:  r.op,
		Target:     r.target,
		StartedAt:  r.startedAt,
		FinishedAt: &finished,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Cancelled:  s.Cancelled,
	}
	if err := r.history.FinishRun(r.historyCtx(), rec); err != nil {
		r.logger.Warn("recording run finish", "error", err)
	}
}
