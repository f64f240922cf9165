package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MEKXH/glyphx/internal/approval"
	"github.com/MEKXH/glyphx/internal/audit"
	"github.com/MEKXH/glyphx/internal/metrics"
	"github.com/MEKXH/glyphx/internal/policy"
)

// permit is proof that an operation may run. Executors require one and it
// is only minted in Execute, after the validator, the approval cache or the
// operator said yes.
type permit struct {
	source string
}

const (
	permitPolicy   = "policy"
	permitCache    = "cache"
	permitOperator = "operator"
)

// Options tunes a Bridge. Zero values select defaults.
type Options struct {
	Mode    policy.Mode
	Session string

	DefaultShellTimeout time.Duration
	MinShellTimeout     time.Duration
	MaxShellTimeout     time.Duration

	Logger  *slog.Logger
	Audit   audit.Recorder
	Metrics *metrics.RuntimeMetrics
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = policy.ModeChat
	}
	if o.DefaultShellTimeout <= 0 {
		o.DefaultShellTimeout = DefaultShellTimeout
	}
	if o.MinShellTimeout <= 0 {
		o.MinShellTimeout = MinShellTimeout
	}
	if o.MaxShellTimeout <= 0 {
		o.MaxShellTimeout = MaxShellTimeout
	}
	if o.MaxShellTimeout < o.MinShellTimeout {
		o.MaxShellTimeout = o.MinShellTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Audit == nil {
		o.Audit = audit.Nop{}
	}
	return o
}

// Bridge mediates every tool operation for one session: validate, consult
// the approval cache, ask the operator, execute, truncate.
type Bridge struct {
	opts  Options
	gate  *approval.Gate
	cache *approval.Cache
	now   func() time.Time

	mu        sync.RWMutex
	validator *policy.Validator
	mode      policy.Mode
}

// NewBridge creates a session bridge. A nil gate means nothing can ever be
// confirmed and every rejected operation fails closed.
func NewBridge(v *policy.Validator, gate *approval.Gate, opts Options) *Bridge {
	opts = opts.withDefaults()
	return &Bridge{
		opts:      opts,
		gate:      gate,
		cache:     approval.NewCache(),
		now:       time.Now,
		validator: v,
		mode:      opts.Mode,
	}
}

// Mode returns the current execution mode.
func (b *Bridge) Mode() policy.Mode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mode
}

// SetMode switches the execution mode. Remembered decisions are kept.
func (b *Bridge) SetMode(mode policy.Mode) {
	b.mu.Lock()
	b.mode = mode
	b.mu.Unlock()
	b.opts.Logger.Info("execution mode changed", "session", b.opts.Session, "mode", mode)
}

// Validator returns the active policy snapshot.
func (b *Bridge) Validator() *policy.Validator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.validator
}

// Reload swaps in a new policy and forgets every remembered decision.
func (b *Bridge) Reload(cfg policy.Config) error {
	v, err := policy.Compile(cfg)
	if err != nil {
		return fmt.Errorf("reload policy: %w", err)
	}
	b.mu.Lock()
	b.validator = v
	b.mu.Unlock()
	b.cache.Reset()
	b.opts.Logger.Info("policy reloaded", "session", b.opts.Session)
	return nil
}

// ResetApprovals forgets every remembered decision.
func (b *Bridge) ResetApprovals() {
	b.cache.Reset()
}

// Approvals returns the number of remembered decisions.
func (b *Bridge) Approvals() int {
	return b.cache.Len()
}

// invocation carries the per-call state through Execute.
type invocation struct {
	op          Operation
	v           *policy.Validator
	mode        policy.Mode
	fingerprint string
	target      string
	start       time.Time
	prompted    bool
}

// Execute runs op if policy or the operator allows it. It always returns a
// Result; failures are reported in Result.Error.
func (b *Bridge) Execute(ctx context.Context, op Operation) (res Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	if op == nil {
		return failure(ErrorIO, "no operation")
	}
	b.mu.RLock()
	inv := &invocation{op: op, v: b.validator, mode: b.mode, start: b.now()}
	b.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			b.opts.Logger.Error("tool executor panicked", "kind", op.Kind(), "panic", r)
			res = failure(ErrorIO, "internal error: %v", r)
		}
		res = b.finish(inv, res)
	}()

	if inv.v == nil {
		return blocked("no policy loaded")
	}
	inv.fingerprint = op.fingerprint(inv.v.Resolve)

	decision, target := b.validate(inv.v, op)
	inv.target = target
	b.record(inv, audit.TypeValidation, verdictOf(decision.Allowed), decision.Reason)

	if decision.Allowed {
		return b.run(ctx, permit{source: permitPolicy}, inv)
	}

	if verdict, ok := b.cache.Lookup(inv.fingerprint); ok {
		b.record(inv, audit.TypeCacheHit, string(verdict), decision.Reason)
		if verdict == approval.VerdictAllow {
			return b.run(ctx, permit{source: permitCache}, inv)
		}
		return blocked(decision.Reason)
	}

	if b.gate == nil || !inv.v.Config().MayPrompt(inv.mode) {
		return blocked(decision.Reason)
	}

	inv.prompted = true
	answer, err := b.gate.Request(ctx, approval.Prompt{
		Kind:        string(op.Kind()),
		Summary:     op.Summary(),
		Reason:      decision.Reason,
		Fingerprint: inv.fingerprint,
		Mode:        inv.mode,
	})
	if err != nil {
		b.opts.Logger.Warn("confirmation failed closed", "kind", op.Kind(), "error", err)
	}
	if err == nil && answer.Remember {
		b.cache.Record(inv.fingerprint, answer.Verdict)
	}
	b.record(inv, audit.TypeConfirmation, string(answer.Verdict), confirmationNote(answer, err))

	if !answer.Allowed() {
		if errors.Is(err, approval.ErrTimeout) || errors.Is(err, approval.ErrUnattended) {
			return failure(ErrorConfirmation, "blocked: confirmation not received (%v); %s", err, decision.Reason)
		}
		return failure(ErrorConfirmation, "blocked: operator declined; %s", decision.Reason)
	}
	return b.run(ctx, permit{source: permitOperator}, inv)
}

// validate judges op and returns the decision plus the resolved target the
// executor must use.
func (b *Bridge) validate(v *policy.Validator, op Operation) (policy.Decision, string) {
	switch op := op.(type) {
	case ShellCommand:
		decision := v.ValidateShellCommand(op.Command)
		dir := v.JailRoot()
		if op.Dir != "" {
			resolved, err := v.Resolve(op.Dir)
			if err != nil {
				return policy.Decision{Reason: fmt.Sprintf("invalid working directory: %v", err)}, ""
			}
			dir = resolved
			if decision.Allowed {
				if d := v.ValidateFilePath(op.Dir, false); !d.Allowed {
					return policy.Decision{Reason: "working directory rejected: " + d.Reason}, dir
				}
			}
		}
		return decision, dir
	case FileRead:
		return validatePathOp(v, op.Path, false)
	case FileWrite:
		return validatePathOp(v, op.Path, true)
	case ListFiles:
		return validatePathOp(v, op.Path, false)
	default:
		return policy.Decision{Reason: fmt.Sprintf("unsupported operation %T", op)}, ""
	}
}

func validatePathOp(v *policy.Validator, path string, write bool) (policy.Decision, string) {
	decision := v.ValidateFilePath(path, write)
	resolved, err := v.Resolve(path)
	if err != nil {
		if decision.Allowed {
			decision = policy.Decision{Reason: fmt.Sprintf("invalid path: %v", err)}
		}
		return decision, ""
	}
	return decision, resolved
}

func (b *Bridge) run(ctx context.Context, p permit, inv *invocation) Result {
	if err := ctx.Err(); err != nil {
		return failure(ErrorIO, "cancelled before execution: %v", err)
	}
	b.opts.Logger.Debug("executing operation",
		"kind", inv.op.Kind(),
		"permit", p.source,
		"fingerprint", shortFingerprint(inv.fingerprint),
	)

	switch op := inv.op.(type) {
	case ShellCommand:
		return b.runShell(ctx, p, op, inv.target, inv.v)
	case FileRead:
		return b.readFile(p, inv.target, inv.v)
	case FileWrite:
		return b.writeFile(p, inv.target, op.Content, inv.v)
	case ListFiles:
		return b.listFiles(p, inv.target, inv.v)
	default:
		return failure(ErrorIO, "unsupported operation %T", op)
	}
}

// finish applies the output cap and reports the outcome.
func (b *Bridge) finish(inv *invocation, res Result) Result {
	if inv.v != nil {
		var truncated bool
		res.Output, truncated = policy.TruncateOutput(res.Output, inv.v.MaxOutputBytes())
		res.Truncated = res.Truncated || truncated
	}

	duration := b.now().Sub(inv.start)
	outcome := outcomeOf(res)
	logger := b.opts.Logger.With(
		"session", b.opts.Session,
		"kind", inv.op.Kind(),
		"mode", inv.mode,
		"fingerprint", shortFingerprint(inv.fingerprint),
		"duration_ms", duration.Milliseconds(),
	)
	switch outcome {
	case metrics.OutcomeExecuted:
		logger.Info("operation executed", "truncated", res.Truncated, "original_size", res.OriginalSize)
	case metrics.OutcomeDenied, metrics.OutcomeRejected:
		logger.Warn("operation denied", "reason", res.Error)
	default:
		logger.Warn("operation failed", "error_kind", res.Kind, "error", res.Error)
	}

	result := string(outcome)
	if res.Error != "" {
		result += ": " + res.Error
	}
	b.append(audit.Event{
		Type:        audit.TypeExecution,
		Session:     b.opts.Session,
		Kind:        string(inv.op.Kind()),
		Fingerprint: inv.fingerprint,
		Mode:        string(inv.mode),
		Target:      audit.Preview(targetOf(inv)),
		Result:      audit.Preview(result),
		DurationMs:  duration.Milliseconds(),
	})

	if _, err := b.opts.Metrics.RecordTool(duration, outcome, res.Truncated, inv.prompted); err != nil {
		b.opts.Logger.Debug("persist runtime metrics failed", "error", err)
	}
	return res
}

func (b *Bridge) record(inv *invocation, eventType, verdict, reason string) {
	b.append(audit.Event{
		Type:        eventType,
		Session:     b.opts.Session,
		Kind:        string(inv.op.Kind()),
		Fingerprint: inv.fingerprint,
		Mode:        string(inv.mode),
		Verdict:     verdict,
		Target:      audit.Preview(targetOf(inv)),
		Reason:      reason,
	})
}

func (b *Bridge) append(event audit.Event) {
	if event.Time.IsZero() {
		event.Time = b.now().UTC()
	}
	if err := b.opts.Audit.Append(event); err != nil {
		b.opts.Logger.Warn("audit append failed", "type", event.Type, "error", err)
	}
}

// targetOf names what an operation touches. Write content is never included.
func targetOf(inv *invocation) string {
	switch op := inv.op.(type) {
	case ShellCommand:
		return op.Command
	default:
		if inv.target != "" {
			return inv.target
		}
		return op.Summary()
	}
}

func outcomeOf(res Result) metrics.Outcome {
	switch res.Kind {
	case "":
		if res.Error == "" {
			return metrics.OutcomeExecuted
		}
		return metrics.OutcomeFailed
	case ErrorPolicy:
		return metrics.OutcomeDenied
	case ErrorConfirmation:
		return metrics.OutcomeRejected
	case ErrorTimeout:
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeFailed
	}
}

func verdictOf(allowed bool) string {
	if allowed {
		return string(approval.VerdictAllow)
	}
	return string(approval.VerdictDeny)
}

func confirmationNote(answer approval.Answer, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case answer.Remember:
		return "remembered for session"
	default:
		return answer.Note
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
