package tools

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies a failed Result.
type ErrorKind string

const (
	ErrorPolicy       ErrorKind = "policy_denial"
	ErrorConfirmation ErrorKind = "confirmation_denied"
	ErrorTimeout      ErrorKind = "timeout"
	ErrorIO           ErrorKind = "io_failure"
)

// Result is what the bridge hands back for every operation.
type Result struct {
	Output       string    `json:"output"`
	Truncated    bool      `json:"truncated"`
	OriginalSize int       `json:"original_size"`
	Error        string    `json:"error,omitempty"`
	Kind         ErrorKind `json:"error_kind,omitempty"`
}

// Success reports whether the operation ran without error.
func (r Result) Success() bool {
	return r.Error == ""
}

// JSON renders the result as a tool message payload.
func (r Result) JSON() string {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"output":"","truncated":false,"original_size":0,"error":%q}`, err.Error())
	}
	return string(raw)
}

func failure(kind ErrorKind, format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...), Kind: kind}
}

func blocked(reason string) Result {
	return failure(ErrorPolicy, "blocked by safety policy: %s", reason)
}
