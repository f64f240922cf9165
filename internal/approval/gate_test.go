package approval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGate_AnswerDelivered(t *testing.T) {
	gate := NewGate(0, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		p := <-gate.Requests()
		if p.Prompt.ID == "" {
			t.Error("expected prompt id to be assigned")
		}
		p.Respond(Answer{Verdict: VerdictAllow, Remember: true})
	}()

	answer, err := gate.Request(ctx, Prompt{Kind: "shell", Summary: "make build"})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if !answer.Allowed() || !answer.Remember {
		t.Fatalf("unexpected answer: %+v", answer)
	}
}

func TestGate_NoPresenterDenies(t *testing.T) {
	gate := NewGate(0, 50*time.Millisecond)

	answer, err := gate.Request(context.Background(), Prompt{Kind: "shell"})
	if !errors.Is(err, ErrUnattended) {
		t.Fatalf("expected ErrUnattended, got %v", err)
	}
	if answer.Allowed() {
		t.Fatal("expected deny when nobody is listening")
	}
}

func TestGate_TimeoutDeniesAndDropsLateAnswer(t *testing.T) {
	gate := NewGate(1, 50*time.Millisecond)

	answer, err := gate.Request(context.Background(), Prompt{Kind: "file_write"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if answer.Allowed() {
		t.Fatal("expected deny on timeout")
	}

	p := <-gate.Requests()
	select {
	case <-p.Done():
	default:
		t.Fatal("expected abandoned prompt to be done")
	}
	if p.Respond(Answer{Verdict: VerdictAllow}) {
		t.Fatal("expected late answer to be rejected")
	}
}

func TestGate_CancelledContextDenies(t *testing.T) {
	gate := NewGate(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := gate.Request(ctx, Prompt{Kind: "shell"})
		done <- err
	}()
	<-gate.Requests()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Request did not return after cancellation")
	}
}

func TestGate_UnknownVerdictTreatedAsDeny(t *testing.T) {
	gate := NewGate(1, time.Second)
	go func() {
		p := <-gate.Requests()
		p.Respond(Answer{Verdict: Verdict("maybe")})
	}()

	answer, err := gate.Request(context.Background(), Prompt{Kind: "shell"})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if answer.Verdict != VerdictDeny {
		t.Fatalf("expected deny, got %q", answer.Verdict)
	}
}

func TestServe_UsesProvider(t *testing.T) {
	gate := NewGate(0, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	provider := ProviderFunc(func(ctx context.Context, p Prompt) (Answer, error) {
		seen = append(seen, p.Summary)
		if strings.HasPrefix(p.Summary, "ls") {
			return Answer{Verdict: VerdictAllow}, nil
		}
		return Answer{}, errors.New("presenter broke")
	})
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, gate, provider) }()

	if a, err := gate.Request(ctx, Prompt{Summary: "ls -la"}); err != nil || !a.Allowed() {
		t.Fatalf("expected allow, got %+v %v", a, err)
	}
	a, err := gate.Request(ctx, Prompt{Summary: "whoami"})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if a.Allowed() || !strings.Contains(a.Note, "presenter broke") {
		t.Fatalf("expected provider error to become deny, got %+v", a)
	}

	cancel()
	if err := <-served; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Serve to stop with cancellation, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected two prompts served, got %v", seen)
	}
}

func TestAutoProvider(t *testing.T) {
	ctx := context.Background()
	a, _ := AutoProvider{Verdict: VerdictAllow}.Confirm(ctx, Prompt{})
	if !a.Allowed() {
		t.Fatal("expected allow")
	}
	a, _ = AutoProvider{}.Confirm(ctx, Prompt{})
	if a.Allowed() {
		t.Fatal("expected zero value to deny")
	}
}
