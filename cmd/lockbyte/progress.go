package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"lockbyte/internal/batch"
	"lockbyte/internal/lockbyte"
)

// watch polls run until it is done, rendering a progress bar when show is
// set. Cancelling ctx cancels the run; watch keeps polling until the
// cancelled run has drained.
func watch(ctx context.Context, run *batch.Run, interval time.Duration, w io.Writer, show bool) *batch.Summary {
	bar := progressbar.NewOptions(run.Total(),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(show),
		progressbar.OptionSetDescription(run.Operation().String()+"ing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	interrupted := ctx.Done()
	for {
		select {
		case <-run.Done():
			bar.Set(run.Total())
			bar.Finish()
			s, _ := run.Drain(context.Background())
			return s
		case <-interrupted:
			interrupted = nil
			run.Cancel()
			bar.Describe("cancelling")
		case <-ticker.C:
			st := run.Poll()
			bar.Set(st.Done)
			if st.State == batch.StateCancelling || st.State == batch.StateDraining {
				bar.Describe(st.State.String())
			}
		}
	}
}

// printSummary writes the outcome of a run: one line of totals and one line
// per file that did not succeed.
func printSummary(w io.Writer, s *batch.Summary) {
	verb := "Encrypted"
	if s.Operation == lockbyte.OpDecrypt {
		verb = "Decrypted"
	}
	fmt.Fprintf(w, "%s %d of %s in %s", verb, s.Succeeded,
		pluralFiles(s.Total()), s.Duration().Round(time.Millisecond))
	if s.Failed > 0 || s.Cancelled > 0 {
		fmt.Fprintf(w, " (%d failed, %d cancelled)", s.Failed, s.Cancelled)
	}
	fmt.Fprintln(w)

	for _, r := range s.Failures() {
		reason := r.Outcome.String()
		if r.Err != nil {
			reason = r.Err.Kind.String()
		}
		fmt.Fprintf(w, "  %-22s %s\n", reason, r.Path)
	}
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return humanize.Comma(int64(n)) + " files"
}
