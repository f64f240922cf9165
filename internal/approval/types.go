package approval

import (
	"strings"
	"time"

	"github.com/MEKXH/glyphx/internal/policy"
)

// Verdict is a human decision on an operation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
)

// ParseVerdict maps free-form answers to a verdict. Anything that is not an
// explicit allow is a deny.
func ParseVerdict(raw string) Verdict {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "allow", "approve", "approved", "yes", "y":
		return VerdictAllow
	default:
		return VerdictDeny
	}
}

// Decision is a memorised verdict for one operation fingerprint.
type Decision struct {
	Fingerprint string
	Verdict     Verdict
	DecidedAt   time.Time
}

// Prompt describes an operation awaiting confirmation.
type Prompt struct {
	ID          string
	Kind        string
	Summary     string
	Reason      string
	Fingerprint string
	Mode        policy.Mode
	RequestedAt time.Time
}

// Answer is the provider's response to a Prompt.
type Answer struct {
	Verdict  Verdict
	Remember bool
	Note     string
}

// Allowed reports whether the answer grants execution.
func (a Answer) Allowed() bool {
	return a.Verdict == VerdictAllow
}
