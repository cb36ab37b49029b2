// Package batch runs one encrypt or decrypt operation over many files on a
// bounded worker pool and exposes the run as a pollable handle.
package batch

import (
	"fmt"
	"time"

	"lockbyte/internal/lockbyte"
)

// State is the lifecycle position of a Run.
type State int32

const (
	StateIdle State = iota
	StateEnumerating
	StateRunning
	StateCancelling
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnumerating:
		return "enumerating"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Status is a point-in-time view of a Run's progress.
type Status struct {
	State   State
	Pending int
	Running int
	Done    int
	Total   int
}

// Result is the terminal outcome of one file.
type Result struct {
	Path    string
	Output  string
	Outcome lockbyte.Outcome
	Err     *lockbyte.Error
}

// Summary aggregates every Result of a finished Run.
type Summary struct {
	RunID      string
	Operation  lockbyte.Operation
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
	Succeeded  int
	Failed     int
	Cancelled  int
}

func newSummary(r *Run, finished time.Time) *Summary {
	s := &Summary{
		RunID:      r.id,
		Operation:  r.op,
		StartedAt:  r.startedAt,
		FinishedAt: finished,
		Results:    append([]Result(nil), r.results...),
	}
	for _, res := range s.Results {
		switch res.Outcome {
		case lockbyte.OutcomeSucceeded:
			s.Succeeded++
		case lockbyte.OutcomeCancelled:
			s.Cancelled++
		default:
			s.Failed++
		}
	}
	return s
}

// Total is the number of files in the run.
func (s *Summary) Total() int { return len(s.Results) }

// OK reports whether every file succeeded.
func (s *Summary) OK() bool { return s.Succeeded == len(s.Results) }

// Duration is the wall time between start and finish.
func (s *Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

// ByKind counts failed and cancelled files per error kind.
func (s *Summary) ByKind() map[lockbyte.ErrorKind]int {
	counts := make(map[lockbyte.ErrorKind]int)
	for _, res := range s.Results {
		if res.Err != nil {
			counts[res.Err.Kind]++
		}
	}
	return counts
}

// Failures returns the results that did not succeed, in run order.
func (s *Summary) Failures() []Result {
	var out []Result
	for _, res := range s.Results {
		if res.Outcome != lockbyte.OutcomeSucceeded {
			out = append(out, res)
		}
	}
	return out
}
