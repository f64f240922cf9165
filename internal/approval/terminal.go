package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// TerminalProvider asks on a line-oriented terminal.
//
//	y  allow once      a  allow and remember
//	n  deny once       d  deny and remember
//
// An empty line, EOF or anything unrecognised denies.
type TerminalProvider struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan string
}

// NewTerminalProvider creates a provider reading from in and writing to out.
func NewTerminalProvider(in io.Reader, out io.Writer) *TerminalProvider {
	return &TerminalProvider{In: in, Out: out}
}

func (t *TerminalProvider) Confirm(ctx context.Context, prompt Prompt) (Answer, error) {
	t.once.Do(t.startReader)

	warn := color.New(color.FgYellow, color.Bold)
	fmt.Fprintln(t.Out, warn.Sprintf("Confirmation required: %s", prompt.Kind))
	fmt.Fprintf(t.Out, "  %s\n", prompt.Summary)
	if prompt.Reason != "" {
		fmt.Fprintf(t.Out, "  %s\n", color.HiBlackString("reason: %s", prompt.Reason))
	}
	fmt.Fprint(t.Out, color.CyanString("Allow? [y]es / [n]o / [a]lways / [d]eny always: "))

	select {
	case <-ctx.Done():
		fmt.Fprintln(t.Out)
		return Answer{Verdict: VerdictDeny}, ctx.Err()
	case line, ok := <-t.lines:
		if !ok {
			fmt.Fprintln(t.Out)
			return Answer{Verdict: VerdictDeny, Note: "input closed"}, nil
		}
		answer := parseTerminalAnswer(line)
		if answer.Allowed() {
			fmt.Fprintln(t.Out, color.GreenString("allowed"))
		} else {
			fmt.Fprintln(t.Out, color.RedString("denied"))
		}
		return answer, nil
	}
}

// startReader owns In for the provider's lifetime so that a prompt abandoned
// mid-read does not lose the next answer to a second reader.
func (t *TerminalProvider) startReader() {
	t.lines = make(chan string)
	go func() {
		defer close(t.lines)
		scanner := bufio.NewScanner(t.In)
		for scanner.Scan() {
			t.lines <- scanner.Text()
		}
	}()
}

func parseTerminalAnswer(line string) Answer {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return Answer{Verdict: VerdictAllow}
	case "a", "always":
		return Answer{Verdict: VerdictAllow, Remember: true}
	case "d", "never":
		return Answer{Verdict: VerdictDeny, Remember: true}
	default:
		return Answer{Verdict: VerdictDeny}
	}
}
