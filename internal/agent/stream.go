package agent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MEKXH/glyphx/internal/tools"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EventKind names a streamed progress event.
type EventKind string

const (
	// EventText carries a fragment of assistant text.
	EventText EventKind = "text"
	// EventRetry tells the consumer that text emitted since the last step
	// started belongs to a failed attempt and will be produced again.
	EventRetry      EventKind = "retry"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventDone       EventKind = "done"
	EventFailed     EventKind = "failed"
)

// Event is one item of a streamed conversation.
type Event struct {
	Kind    EventKind
	Text    string
	Call    *schema.ToolCall
	Result  *tools.Result
	Attempt int
	Outcome *Outcome
	Err     error
}

// streamBuffer keeps the producer at most a few events ahead of the reader.
const streamBuffer = 4

var errConsumerGone = errors.New("stream consumer closed")

// Stream runs the conversation like Run but reports progress as it happens.
// The last event is always EventDone or EventFailed carrying the Outcome.
// The producer blocks while the reader is not receiving; callers must read
// to io.EOF or Close the reader.
func (l *Loop) Stream(ctx context.Context, messages []*schema.Message) *schema.StreamReader[Event] {
	sr, sw := schema.Pipe[Event](streamBuffer)

	go func() {
		defer sw.Close()

		emit := func(e Event) bool {
			return !sw.Send(e, nil)
		}
		call := func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
			return l.streamModel(ctx, input, emit, opts...)
		}

		out := l.run(ctx, messages, call, emit)
		final := Event{Kind: EventDone, Outcome: out}
		if out.State == StateFailed {
			final = Event{Kind: EventFailed, Outcome: out, Err: out.Err}
		}
		sw.Send(final, nil)
	}()

	return sr
}

// streamModel consumes one model stream, forwarding text as it arrives and
// merging tool call fragments into complete calls once the stream ends.
func (l *Loop) streamModel(ctx context.Context, input []*schema.Message, emit emitFunc, opts ...model.Option) (*schema.Message, error) {
	sr, err := l.model.Stream(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	if sr == nil {
		return nil, fmt.Errorf("model returned no stream")
	}
	defer sr.Close()

	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" && !emit(Event{Kind: EventText, Text: chunk.Content}) {
			return nil, errConsumerGone
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("model stream ended without content")
	}
	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("merge stream chunks: %w", err)
	}
	return msg, nil
}
