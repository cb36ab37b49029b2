package lockbyte

import (
	"fmt"
	"strings"
)

// Operation is the kind of work a batch applies to each file.
type Operation int

const (
	OpEncrypt Operation = iota
	OpDecrypt
)

func (o Operation) String() string {
	switch o {
	case OpEncrypt:
		return "encrypt"
	case OpDecrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// ParseOperation parses the names produced by Operation.String.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "encrypt":
		return OpEncrypt, nil
	case "decrypt":
		return OpDecrypt, nil
	default:
		return 0, fmt.Errorf("unknown operation: %q", s)
	}
}

// Outcome is the state of a single Job's result slot.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Terminal reports whether o is a final outcome.
func (o Outcome) Terminal() bool {
	return o != OutcomePending
}

// MinPasswordLength is the shortest password accepted for a batch.
const MinPasswordLength = 6

// CheckPassword trims surrounding whitespace from password and enforces the
// minimum length. It returns the trimmed password.
func CheckPassword(password string) (string, error) {
	trimmed := strings.TrimSpace(password)
	if len([]rune(trimmed)) < MinPasswordLength {
		return "", NewError(KindInvalidPassword, "", fmt.Errorf("password must be at least %d characters", MinPasswordLength))
	}
	return trimmed, nil
}

// ParseOutcome parses the names produced by Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{OutcomePending, OutcomeSucceeded, OutcomeFailed, OutcomeCancelled} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome: %q", s)
}
