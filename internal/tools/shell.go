package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/MEKXH/glyphx/internal/policy"
)

const (
	DefaultShellTimeout = 60 * time.Second
	MinShellTimeout     = time.Second
	MaxShellTimeout     = time.Hour

	// pipeWaitDelay bounds how long Wait keeps draining pipes held open by
	// orphaned grandchildren.
	pipeWaitDelay = 500 * time.Millisecond

	// unlimitedCapture caps in-memory output when no output limit is set.
	unlimitedCapture = 16 << 20
)

// cappedBuffer keeps the first limit bytes and counts the rest.
type cappedBuffer struct {
	limit int
	buf   bytes.Buffer
	total int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.total += len(p)
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *Bridge) clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		d = b.opts.DefaultShellTimeout
	}
	if d < b.opts.MinShellTimeout {
		return b.opts.MinShellTimeout
	}
	if d > b.opts.MaxShellTimeout {
		return b.opts.MaxShellTimeout
	}
	return d
}

func (b *Bridge) runShell(ctx context.Context, _ permit, op ShellCommand, dir string, v *policy.Validator) Result {
	timeout := b.clampTimeout(op.Timeout)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(runCtx, op.Command)
	cmd.Dir = dir
	cmd.WaitDelay = pipeWaitDelay

	limit := v.MaxOutputBytes()
	if limit <= 0 {
		limit = unlimitedCapture
	}
	// One buffer for both streams keeps their interleaving.
	out := &cappedBuffer{limit: limit + 4}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	_ = killProcessGroup(cmd)

	output, truncated := policy.TruncateCaptured(out.buf.String(), out.total, v.MaxOutputBytes())
	res := Result{Output: output, Truncated: truncated, OriginalSize: out.total}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Error = fmt.Sprintf("command timed out after %s", timeout)
		res.Kind = ErrorTimeout
	case ctx.Err() != nil:
		res.Error = fmt.Sprintf("command cancelled: %v", ctx.Err())
		res.Kind = ErrorIO
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Error = fmt.Sprintf("command exited with status %d", exitErr.ExitCode())
		} else {
			res.Error = strings.TrimSpace(err.Error())
		}
		res.Kind = ErrorIO
	}
	return res
}
