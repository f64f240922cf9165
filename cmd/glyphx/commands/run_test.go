package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MEKXH/glyphx/internal/agent"
	"github.com/MEKXH/glyphx/internal/approval"
	"github.com/MEKXH/glyphx/internal/config"
	"github.com/MEKXH/glyphx/internal/tools"
	"github.com/cloudwego/eino/schema"
)

func TestReadPrompt(t *testing.T) {
	got, err := readPrompt([]string{"list", "files"}, strings.NewReader("ignored"))
	if err != nil || got != "list files" {
		t.Fatalf("expected args joined, got %q err=%v", got, err)
	}
	got, err = readPrompt(nil, strings.NewReader("  from stdin \n"))
	if err != nil || got != "from stdin" {
		t.Fatalf("expected stdin prompt, got %q err=%v", got, err)
	}
	if _, err := readPrompt(nil, strings.NewReader("   ")); err == nil {
		t.Fatal("expected empty prompt to fail")
	}
}

func TestConfirmProvider_Selection(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	prompt := approval.Prompt{Kind: "shell", Summary: "rm notes"}

	tests := []struct {
		name        string
		override    string
		interactive bool
		wantAllow   bool
		wantErr     error
	}{
		{"auto allow", config.ConfirmAutoAllow, false, true, nil},
		{"auto deny", config.ConfirmAutoDeny, false, false, nil},
		{"tui without terminal", "", false, false, approval.ErrUnattended},
		{"terminal without terminal", config.ConfirmTerminal, false, false, approval.ErrUnattended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := confirmProvider(ctx, cfg, tt.override, tt.interactive)
			if err != nil {
				t.Fatalf("confirmProvider: %v", err)
			}
			answer, err := p.Confirm(ctx, prompt)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected err %v, got %v", tt.wantErr, err)
			}
			if answer.Allowed() != tt.wantAllow {
				t.Fatalf("expected allowed=%v, got %+v", tt.wantAllow, answer)
			}
		})
	}

	if _, err := confirmProvider(ctx, cfg, "carrier-pigeon", false); err == nil {
		t.Fatal("expected unknown provider to fail")
	}
}

func TestPrintStream(t *testing.T) {
	call := &schema.ToolCall{ID: "c1", Function: schema.FunctionCall{Name: tools.ToolRunShell, Arguments: `{"command":"ls"}`}}
	events := []agent.Event{
		{Kind: agent.EventText, Text: "Checking."},
		{Kind: agent.EventToolCall, Call: call},
		{Kind: agent.EventToolResult, Call: call, Result: &tools.Result{Error: "blocked by safety policy: nope"}},
		{Kind: agent.EventText, Text: "Done."},
		{Kind: agent.EventDone, Outcome: &agent.Outcome{State: agent.StateDone}},
	}

	var out, errOut bytes.Buffer
	if err := printStream(&out, &errOut, schema.StreamReaderFromArray(events)); err != nil {
		t.Fatalf("printStream: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "Checking.Done." {
		t.Fatalf("unexpected stdout %q", got)
	}
	if !strings.Contains(errOut.String(), "run_shell") || !strings.Contains(errOut.String(), "blocked by safety policy") {
		t.Fatalf("expected tool activity on stderr, got %q", errOut.String())
	}
}

func TestPrintStream_ReturnsFailure(t *testing.T) {
	events := []agent.Event{{Kind: agent.EventFailed, Err: agent.ErrBudgetExhausted}}

	var out, errOut bytes.Buffer
	err := printStream(&out, &errOut, schema.StreamReaderFromArray(events))
	if !errors.Is(err, agent.ErrBudgetExhausted) {
		t.Fatalf("expected budget error, got %v", err)
	}
}
