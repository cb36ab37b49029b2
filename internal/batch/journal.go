package batch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"lockbyte/internal/lockbyte"
)

// JournalTimeFormat is the timestamp prefix of every journal line.
const JournalTimeFormat = "2006-01-02 15:04:05"

// Journal is the human-readable progress stream of a run. Appends are
// serialized by a lock with a bounded wait: a writer that cannot get the lock
// within the timeout writes anyway, so a stuck writer can interleave a line
// but never hang the run.
type Journal struct {
	w       io.Writer
	clock   lockbyte.Clock
	timeout time.Duration
	logger  lockbyte.Logger
	sem     chan struct{}
}

// NewJournal creates a Journal writing to w. A nil w discards output.
func NewJournal(w io.Writer, clock lockbyte.Clock, timeout time.Duration, logger lockbyte.Logger) *Journal {
	if w == nil {
		w = io.Discard
	}
	if clock == nil {
		clock = lockbyte.RealClock{}
	}
	if logger == nil {
		logger = lockbyte.NewNopLogger()
	}
	return &Journal{
		w:       w,
		clock:   clock,
		timeout: timeout,
		logger:  logger,
		sem:     make(chan struct{}, 1),
	}
}

// Printf appends one timestamped line.
func (j *Journal) Printf(format string, args ...any) {
	line := fmt.Sprintf("%s -- %s\n", j.clock.Now().Format(JournalTimeFormat), fmt.Sprintf(format, args...))

	if j.acquire() {
		defer j.release()
	} else {
		j.logger.Warn("journal lock wait timed out, writing unlocked", "timeout", j.timeout)
	}
	if _, err := io.WriteString(j.w, line); err != nil {
		j.logger.Warn("journal write failed", "error", err)
	}
}

func (j *Journal) acquire() bool {
	select {
	case j.sem <- struct{}{}:
		return true
	default:
	}
	timer := time.NewTimer(j.timeout)
	defer timer.Stop()
	select {
	case j.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (j *Journal) release() {
	<-j.sem
}

// stageLine returns the journal line for a stage change, or "" if the stage
// is not journaled.
func stageLine(s lockbyte.Stage, path string) string {
	switch s {
	case lockbyte.StageEncrypting:
		return "Encrypting.."
	case lockbyte.StageDecrypting:
		return "Decrypting.."
	case lockbyte.StageRollingBack:
		return "Rolling back: " + path
	default:
		return ""
	}
}

// resultLine returns the journal line for a finished file.
func resultLine(op lockbyte.Operation, res Result) string {
	if res.Outcome == lockbyte.OutcomeSucceeded {
		if op == lockbyte.OpEncrypt {
			return "Encrypted: " + res.Path
		}
		return "Decrypted: " + res.Path
	}

	e := res.Err
	if e == nil {
		return "Unexpected error: " + res.Path
	}
	switch e.Kind {
	case lockbyte.KindCancelled:
		return "Cancelled: " + res.Path
	case lockbyte.KindAuthenticationFailed:
		return "Authentication error: Password entered is incorrect: " + res.Path
	case lockbyte.KindNotAContainer, lockbyte.KindInvalidHashFormat, lockbyte.KindCorruptPadding:
		return "File error: File chosen is corrupt or of incorrect type: " + res.Path
	case lockbyte.KindResourceExhausted:
		return "Memory error: Not enough memory available: " + res.Path
	case lockbyte.KindIOFailure:
		if errors.Is(e, fs.ErrNotExist) {
			return fmt.Sprintf("File error: %s not found", res.Path)
		}
		return fmt.Sprintf("I/O error: %v", e.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", e)
	}
}
