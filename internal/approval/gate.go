package approval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTimeout is returned when no answer arrived in time.
	ErrTimeout = errors.New("confirmation timed out")
	// ErrUnattended is returned when no presenter picked the prompt up.
	ErrUnattended = errors.New("no confirmation presenter attached")
)

const (
	DefaultGateBuffer  = 1
	DefaultGateTimeout = 2 * time.Minute
)

// Pending is a prompt handed to the presentation goroutine. Exactly one
// answer is accepted; later ones, and answers after expiry, are dropped.
type Pending struct {
	Prompt Prompt

	reply chan Answer
	done  chan struct{}
	once  sync.Once
}

// Respond delivers the operator's answer. It reports whether the answer
// was accepted.
func (p *Pending) Respond(answer Answer) bool {
	accepted := false
	p.once.Do(func() {
		p.reply <- answer
		close(p.done)
		accepted = true
	})
	return accepted
}

// Done is closed once the prompt is answered or abandoned.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

func (p *Pending) abandon() {
	p.once.Do(func() { close(p.done) })
}

// Gate connects the worker that needs a decision with the goroutine that
// owns the terminal. The worker blocks in Request; the presenter ranges
// over Requests and answers each Pending.
type Gate struct {
	requests chan *Pending
	timeout  time.Duration
	now      func() time.Time
}

// NewGate creates a gate. A non-positive timeout selects DefaultGateTimeout.
func NewGate(buffer int, timeout time.Duration) *Gate {
	if buffer < 0 {
		buffer = 0
	}
	if timeout <= 0 {
		timeout = DefaultGateTimeout
	}
	return &Gate{
		requests: make(chan *Pending, buffer),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Requests is the stream the presentation goroutine consumes.
func (g *Gate) Requests() <-chan *Pending {
	return g.requests
}

// Timeout returns the time a Request waits for an answer.
func (g *Gate) Timeout() time.Duration {
	return g.timeout
}

// Request submits prompt and waits for the answer. Every failure path
// yields a deny answer together with the reason as error.
func (g *Gate) Request(ctx context.Context, prompt Prompt) (Answer, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if prompt.ID == "" {
		prompt.ID = uuid.NewString()
	}
	if prompt.RequestedAt.IsZero() {
		prompt.RequestedAt = g.now().UTC()
	}

	p := &Pending{
		Prompt: prompt,
		reply:  make(chan Answer, 1),
		done:   make(chan struct{}),
	}
	denied := Answer{Verdict: VerdictDeny}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.requests <- p:
	case <-timer.C:
		p.abandon()
		return denied, ErrUnattended
	case <-ctx.Done():
		p.abandon()
		return denied, ctx.Err()
	}

	select {
	case answer := <-p.reply:
		if answer.Verdict != VerdictAllow {
			answer.Verdict = VerdictDeny
		}
		return answer, nil
	case <-timer.C:
		p.abandon()
		return denied, ErrTimeout
	case <-ctx.Done():
		p.abandon()
		return denied, ctx.Err()
	}
}

// Serve answers prompts with provider until ctx is done. It is meant to run
// on the goroutine that owns the operator's terminal.
func Serve(ctx context.Context, gate *Gate, provider Provider) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-gate.Requests():
			answer, err := confirmPending(ctx, provider, p)
			if err != nil {
				answer = Answer{Verdict: VerdictDeny, Note: err.Error()}
			}
			p.Respond(answer)
		}
	}
}

func confirmPending(ctx context.Context, provider Provider, p *Pending) (Answer, error) {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.Done():
			cancel()
		case <-pctx.Done():
		}
	}()
	return provider.Confirm(pctx, p.Prompt)
}
