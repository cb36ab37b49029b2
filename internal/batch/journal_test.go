package batch

import (
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"lockbyte/internal/lockbyte"
	"lockbyte/internal/testutil"
)

var journalLine = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} -- .+$`)

func TestJournal_Printf(t *testing.T) {
	var buf syncBuffer
	j := NewJournal(&buf, testutil.FixedClock(), time.Second, nil)

	j.Printf("Reading File: %s", "/tmp/a.txt")

	want := "2026-03-02 09:00:00 -- Reading File: /tmp/a.txt\n"
	if got := buf.String(); got != want {
		t.Errorf("journal = %q, want %q", got, want)
	}
}

func TestJournal_ConcurrentLinesDoNotInterleave(t *testing.T) {
	var buf syncBuffer
	j := NewJournal(&buf, testutil.FixedClock(), time.Second, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				j.Printf("worker %d line %d", w, i)
			}
		}(w)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("got %d lines, want 400", len(lines))
	}
	for _, line := range lines {
		if !journalLine.MatchString(line) {
			t.Fatalf("malformed journal line %q", line)
		}
	}
}

func TestJournal_LockTimeoutWritesAnyway(t *testing.T) {
	var buf syncBuffer
	j := NewJournal(&buf, testutil.FixedClock(), 20*time.Millisecond, nil)

	j.sem <- struct{}{} // a writer that never releases

	done := make(chan struct{})
	go func() {
		j.Printf("still written")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Printf blocked past the lock timeout")
	}
	if !strings.Contains(buf.String(), "still written") {
		t.Errorf("journal = %q, want the line written after timeout", buf.String())
	}
}

func TestJournal_NilWriter(t *testing.T) {
	j := NewJournal(nil, nil, time.Millisecond, nil)
	j.Printf("discarded")
}

func TestResultLine(t *testing.T) {
	tests := []struct {
		name string
		op   lockbyte.Operation
		res  Result
		want string
	}{
		{
			name: "encrypted",
			op:   lockbyte.OpEncrypt,
			res:  Result{Path: "/a", Outcome: lockbyte.OutcomeSucceeded},
			want: "Encrypted: /a",
		},
		{
			name: "decrypted",
			op:   lockbyte.OpDecrypt,
			res:  Result{Path: "/a.lockbyte", Outcome: lockbyte.OutcomeSucceeded},
			want: "Decrypted: /a.lockbyte",
		},
		{
			name: "wrong password",
			op:   lockbyte.OpDecrypt,
			res:  Result{Path: "/a", Outcome: lockbyte.OutcomeFailed, Err: lockbyte.NewError(lockbyte.KindAuthenticationFailed, "/a", nil)},
			want: "Authentication error: Password entered is incorrect: /a",
		},
		{
			name: "corrupt",
			op:   lockbyte.OpDecrypt,
			res:  Result{Path: "/a", Outcome: lockbyte.OutcomeFailed, Err: lockbyte.NewError(lockbyte.KindCorruptPadding, "/a", nil)},
			want: "File error: File chosen is corrupt or of incorrect type: /a",
		},
		{
			name: "memory",
			op:   lockbyte.OpEncrypt,
			res:  Result{Path: "/a", Outcome: lockbyte.OutcomeFailed, Err: lockbyte.NewError(lockbyte.KindResourceExhausted, "/a", nil)},
			want: "Memory error: Not enough memory available: /a",
		},
		{
			name: "not found",
			op:   lockbyte.OpEncrypt,
			res:  Result{Path: "/a", Outcome: lockbyte.OutcomeFailed, Err: lockbyte.NewError(lockbyte.KindIOFailure, "/a", fs.ErrNotExist)},
			want: "File error: /a not found",
		},
		{
			name: "io",
			op:   lockbyte.OpEncrypt,
			res:  Result{Path: "/a", Outcome: lockbyte.OutcomeFailed, Err: lockbyte.NewError(lockbyte.KindIOFailure, "/a", errors.New("disk full"))},
			want: "I/O error: disk full",
		},
		{
			name: "cancelled",
			op:   lockbyte.OpEncrypt,
			res:  Result{Path: "/a", Outcome: lockbyte.OutcomeCancelled, Err: lockbyte.NewError(lockbyte.KindCancelled, "/a", nil)},
			want: "Cancelled: /a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resultLine(tt.op, tt.res); got != tt.want {
				t.Errorf("resultLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_JournalLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/notes.md", []byte("# notes"))

	run, err := env.engine(Options{}).Submit(t.Context(), Request{
		Paths:     []string{"/notes.md"},
		Operation: lockbyte.OpEncrypt,
		Password:  testPassword,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	drain(t, run)

	lines := strings.Split(strings.TrimSuffix(env.journal.String(), "\n"), "\n")
	want := []string{
		"Found 1 file(s), 7 B",
		"Reading File: /notes.md",
		"Encrypting..",
		"Encrypted: /notes.md",
		"Succeeded: 1, Failed: 0, Cancelled: 0",
		"Done.",
	}
	if len(lines) != len(want) {
		t.Fatalf("journal has %d lines, want %d:\n%s", len(lines), len(want), env.journal.String())
	}
	for i, line := range lines {
		if !journalLine.MatchString(line) {
			t.Errorf("line %d malformed: %q", i, line)
		}
		if !strings.HasSuffix(line, "-- "+want[i]) {
			t.Errorf("line %d = %q, want suffix %q", i, line, want[i])
		}
	}
}
