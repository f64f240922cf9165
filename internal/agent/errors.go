package agent

import "errors"

// Terminal conversation failures. Tool-level failures never end up here;
// they are returned to the model as tool results.
var (
	ErrNetwork         = errors.New("model request failed")
	ErrModelRejected   = errors.New("model request rejected")
	ErrProtocol        = errors.New("malformed model response")
	ErrBudgetExhausted = errors.New("step budget exhausted")
	ErrCancelled       = errors.New("conversation cancelled")
)
