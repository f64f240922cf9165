package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MEKXH/glyphx/internal/metrics"
	"github.com/MEKXH/glyphx/internal/policy"
	"github.com/MEKXH/glyphx/internal/tools"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// State is the position of a conversation in its lifecycle.
type State string

const (
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTools State = "executing_tools"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

const (
	DefaultMaxSteps        = 6
	DefaultContextMaxBytes = 16000
)

// Toolset decodes model tool calls and describes the tools to the model.
type Toolset interface {
	Decode(name, args string) (tools.Operation, error)
	Infos() []*schema.ToolInfo
}

// Executor runs decoded operations. *tools.Bridge implements it.
type Executor interface {
	Execute(ctx context.Context, op tools.Operation) tools.Result
}

// Options tunes a Loop. Zero values select defaults.
type Options struct {
	// MaxSteps bounds the number of model calls per Run.
	MaxSteps int
	Retry    RetryPolicy
	// ContextMaxBytes caps each tool output appended to the conversation.
	ContextMaxBytes int
	// RateLimitPerMinute caps model attempts; 0 disables the limit.
	RateLimitPerMinute int

	Logger  *slog.Logger
	Metrics *metrics.RuntimeMetrics

	OnToolStart  func(call schema.ToolCall)
	OnToolFinish func(call schema.ToolCall, result tools.Result)
}

// Outcome is the result of one Run.
type Outcome struct {
	State State
	// Message is the final assistant message when State is StateDone.
	Message *schema.Message
	// Messages is the transcript including the input messages.
	Messages []*schema.Message
	Steps    int
	Err      error
}

// Loop drives model/tool cycles for one conversation.
type Loop struct {
	model   model.BaseChatModel
	tools   Toolset
	exec    Executor
	opts    Options
	limiter *rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// NewLoop creates a conversation loop.
func NewLoop(chatModel model.BaseChatModel, toolset Toolset, exec Executor, opts Options) *Loop {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.ContextMaxBytes <= 0 {
		opts.ContextMaxBytes = DefaultContextMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Retry = opts.Retry.withDefaults()

	var limiter *rate.Limiter
	if opts.RateLimitPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RateLimitPerMinute)/60), opts.RateLimitPerMinute)
	}
	return &Loop{
		model:   chatModel,
		tools:   toolset,
		exec:    exec,
		opts:    opts,
		limiter: limiter,
		sleep:   sleepContext,
		newID:   uuid.NewString,
	}
}

// modelCall performs one attempt against the model.
type modelCall func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)

// emitFunc publishes a progress event. It returns false when nobody is
// listening anymore.
type emitFunc func(Event) bool

// Run drives the conversation until the model answers without tool calls,
// a terminal failure occurs, or the step budget runs out. The returned
// Outcome is never nil; error is non-nil exactly when the state is failed.
func (l *Loop) Run(ctx context.Context, messages []*schema.Message) (*Outcome, error) {
	out := l.run(ctx, messages, l.model.Generate, func(Event) bool { return true })
	return out, out.Err
}

func (l *Loop) run(ctx context.Context, input []*schema.Message, call modelCall, emit emitFunc) *Outcome {
	out := &Outcome{
		State:    StateAwaitingModel,
		Messages: append([]*schema.Message(nil), input...),
	}
	fail := func(err error) *Outcome {
		out.State = StateFailed
		out.Err = err
		l.opts.Logger.Warn("conversation failed", "steps", out.Steps, "error", err)
		return out
	}

	var modelOpts []model.Option
	if l.tools != nil {
		modelOpts = append(modelOpts, model.WithTools(l.tools.Infos()))
	}

	for {
		if out.Steps >= l.opts.MaxSteps {
			return fail(fmt.Errorf("%w after %d model calls", ErrBudgetExhausted, out.Steps))
		}
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("%w: %v", ErrCancelled, err))
		}

		out.State = StateAwaitingModel
		out.Steps++
		resp, err := l.callWithRetry(ctx, out.Messages, call, modelOpts, emit)
		if err != nil {
			return fail(err)
		}
		if resp == nil {
			return fail(fmt.Errorf("%w: empty response", ErrProtocol))
		}
		if resp.Role == "" {
			resp.Role = schema.Assistant
		}
		out.Messages = append(out.Messages, resp)

		if len(resp.ToolCalls) == 0 {
			out.State = StateDone
			out.Message = resp
			l.opts.Logger.Info("conversation finished", "steps", out.Steps)
			return out
		}

		out.State = StateExecutingTools
		ops, err := l.decodeCalls(resp)
		if err != nil {
			return fail(err)
		}
		for i, tc := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return fail(fmt.Errorf("%w: %v", ErrCancelled, err))
			}
			msg, ok := l.executeCall(ctx, tc, ops[i], emit)
			if !ok {
				return fail(fmt.Errorf("%w: stream consumer went away", ErrCancelled))
			}
			out.Messages = append(out.Messages, msg)
		}
	}
}

// decodeCalls turns every tool call of resp into an operation before any of
// them runs, so a malformed batch executes nothing.
func (l *Loop) decodeCalls(resp *schema.Message) ([]tools.Operation, error) {
	if l.tools == nil {
		return nil, fmt.Errorf("%w: tool call without tools", ErrProtocol)
	}
	ops := make([]tools.Operation, len(resp.ToolCalls))
	for i := range resp.ToolCalls {
		tc := &resp.ToolCalls[i]
		if tc.ID == "" {
			tc.ID = l.newID()
		}
		op, err := l.tools.Decode(tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		ops[i] = op
	}
	return ops, nil
}

func (l *Loop) executeCall(ctx context.Context, tc schema.ToolCall, op tools.Operation, emit emitFunc) (*schema.Message, bool) {
	call := tc
	if !emit(Event{Kind: EventToolCall, Call: &call}) {
		return nil, false
	}
	if l.opts.OnToolStart != nil {
		l.opts.OnToolStart(tc)
	}

	start := time.Now()
	res := l.exec.Execute(ctx, op)
	l.opts.Logger.Info("tool call finished",
		"tool", tc.Function.Name,
		"call_id", tc.ID,
		"success", res.Success(),
		"error_kind", res.Kind,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if l.opts.OnToolFinish != nil {
		l.opts.OnToolFinish(tc, res)
	}
	if !emit(Event{Kind: EventToolResult, Call: &call, Result: &res}) {
		return nil, false
	}
	return &schema.Message{
		Role:       schema.Tool,
		Content:    l.toolContent(res),
		ToolCallID: tc.ID,
	}, true
}

// toolContent renders a result for the conversation, capped at ContextMaxBytes.
func (l *Loop) toolContent(res tools.Result) string {
	output, truncated := policy.TruncateOutput(res.Output, l.opts.ContextMaxBytes)
	payload := struct {
		Output       string `json:"output"`
		Truncated    bool   `json:"truncated"`
		OriginalSize int    `json:"original_size"`
		Error        string `json:"error,omitempty"`
	}{
		Output:       output,
		Truncated:    res.Truncated || truncated,
		OriginalSize: res.OriginalSize,
		Error:        res.Error,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return res.JSON()
	}
	return string(raw)
}

// callWithRetry performs one step's model call, retrying failures with
// capped exponential backoff. Client errors that cannot succeed on repeat
// end the step at once.
func (l *Loop) callWithRetry(ctx context.Context, msgs []*schema.Message, call modelCall, opts []model.Option, emit emitFunc) (*schema.Message, error) {
	retry := l.opts.Retry
	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := retry.Backoff(attempt - 1)
			l.opts.Logger.Warn("retrying model call", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr)
			if !emit(Event{Kind: EventRetry, Attempt: attempt, Err: lastErr}) {
				return nil, fmt.Errorf("%w: stream consumer went away", ErrCancelled)
			}
			if err := l.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
			}
		}
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: rate limit wait: %v", ErrCancelled, err)
			}
		}

		resp, err := call(ctx, msgs, opts...)
		if _, metricErr := l.opts.Metrics.RecordModelCall(attempt > 1, err); metricErr != nil {
			l.opts.Logger.Debug("persist runtime metrics failed", "error", metricErr)
		}
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, errConsumerGone) {
			return nil, fmt.Errorf("%w: stream consumer went away", ErrCancelled)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctxErr)
		}
		if !retryable(err) {
			return nil, fmt.Errorf("%w (status %d): %v", ErrModelRejected, statusCode(err), err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrNetwork, retry.MaxAttempts, lastErr)
}
