package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	auditFileMode = 0644
	auditDirMode  = 0755

	// TargetPreviewBytes caps command and path previews stored in events.
	TargetPreviewBytes = 256
)

// Event types.
const (
	TypeValidation   = "validation"
	TypeCacheHit     = "approval_cache"
	TypeConfirmation = "confirmation"
	TypeExecution    = "execution"
	TypePolicyWarn   = "policy_warning"
)

// Event is one audit record written as a single JSON line.
// Write contents never appear in an event; only kinds, targets and verdicts.
type Event struct {
	Time        time.Time `json:"time"`
	Type        string    `json:"type"`
	Session     string    `json:"session,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Verdict     string    `json:"verdict,omitempty"`
	Target      string    `json:"target,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Result      string    `json:"result,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
}

// Recorder receives audit events.
type Recorder interface {
	Append(event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Append(Event) error { return nil }

// Preview caps s at TargetPreviewBytes without splitting a UTF-8 sequence.
func Preview(s string) string {
	if len(s) <= TargetPreviewBytes {
		return s
	}
	cut := TargetPreviewBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Writer appends audit events to <stateDir>/audit.jsonl.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter creates an append-only audit writer in stateDir.
func NewWriter(stateDir string) *Writer {
	return &Writer{
		path: filepath.Join(stateDir, "audit.jsonl"),
	}
}

// Path returns the audit file location.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one event as one JSONL line.
func (w *Writer) Append(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(w.path), auditDirMode); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, auditFileMode)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	encoded = append(encoded, '\n')

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit file: %w", err)
	}
	return nil
}
