package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MEKXH/glyphx/internal/agent"
	"github.com/MEKXH/glyphx/internal/approval"
	"github.com/MEKXH/glyphx/internal/config"
	"github.com/MEKXH/glyphx/internal/policy"
	"github.com/MEKXH/glyphx/internal/provider"
	"github.com/cloudwego/eino/schema"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a single request and print the answer",
		Long: `Run sends one request to the model and prints the answer. Without arguments
the request is read from stdin. Confirmations go to the terminal when stdin is
one; otherwise they follow confirm.provider and fail closed when nobody can answer.`,
		RunE: runOnce,
	}
	cmd.Flags().String("mode", "", "Execution mode (chat|agent); defaults to agent.mode")
	cmd.Flags().String("confirm", "", "Confirmation provider (terminal|telegram|auto-allow|auto-deny)")
	return cmd
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	modeFlag, _ := cmd.Flags().GetString("mode")
	if strings.TrimSpace(modeFlag) == "" {
		modeFlag = cfg.Agent.Mode
	}
	mode := policy.ParseMode(modeFlag)

	chatModel, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, chatModel, mode)
	if err != nil {
		return err
	}

	confirmFlag, _ := cmd.Flags().GetString("confirm")
	confirmer, err := confirmProvider(ctx, cfg, confirmFlag, stdinIsTerminal())
	if err != nil {
		return err
	}
	go func() {
		if err := approval.Serve(ctx, rt.gate, confirmer); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("confirmation loop stopped", "error", err)
		}
	}()

	return printStream(cmd.OutOrStdout(), cmd.ErrOrStderr(), rt.loop.Stream(ctx, rt.messages(prompt)))
}

func readPrompt(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt: pass it as arguments or on stdin")
	}
	return prompt, nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmProvider selects who answers confirmation prompts. override wins
// over confirm.provider; the TUI provider means the terminal here.
func confirmProvider(ctx context.Context, cfg *config.Config, override string, interactive bool) (approval.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(override))
	if name == "" {
		name = cfg.Confirm.Provider
	}

	switch name {
	case config.ConfirmAutoAllow:
		slog.Warn("confirmations are answered automatically with allow")
		return approval.AutoProvider{Verdict: approval.VerdictAllow}, nil
	case config.ConfirmAutoDeny:
		return approval.AutoProvider{Verdict: approval.VerdictDeny}, nil
	case config.ConfirmTelegram:
		tp, err := approval.NewTelegramProvider(cfg.Confirm.Telegram.Token, cfg.Confirm.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram confirmations: %w", err)
		}
		go func() {
			if err := tp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("telegram confirmation poller stopped", "error", err)
			}
		}()
		return tp, nil
	case config.ConfirmTUI, config.ConfirmTerminal, "":
		if !interactive {
			return unattendedProvider(), nil
		}
		return approval.NewTerminalProvider(os.Stdin, os.Stderr), nil
	default:
		return nil, fmt.Errorf("unknown confirmation provider %q", name)
	}
}

// unattendedProvider denies every prompt because nobody can answer it.
func unattendedProvider() approval.Provider {
	return approval.ProviderFunc(func(context.Context, approval.Prompt) (approval.Answer, error) {
		return approval.Answer{Verdict: approval.VerdictDeny}, approval.ErrUnattended
	})
}

// printStream writes assistant text to out and tool activity to errOut.
func printStream(out, errOut io.Writer, sr *schema.StreamReader[agent.Event]) error {
	defer sr.Close()

	toolStyle := color.New(color.FgCyan)
	okStyle := color.New(color.FgGreen)
	denyStyle := color.New(color.FgRed)
	dimStyle := color.New(color.Faint)

	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch ev.Kind {
		case agent.EventText:
			fmt.Fprint(out, ev.Text)
		case agent.EventRetry:
			dimStyle.Fprintf(errOut, "\n(model call failed, retrying: attempt %d)\n", ev.Attempt)
		case agent.EventToolCall:
			toolStyle.Fprintf(errOut, "\n> %s %s\n", ev.Call.Function.Name, ev.Call.Function.Arguments)
		case agent.EventToolResult:
			if ev.Result == nil {
				continue
			}
			if ev.Result.Success() {
				okStyle.Fprintf(errOut, "  ok (%d bytes%s)\n", ev.Result.OriginalSize, truncatedSuffix(ev.Result.Truncated))
			} else {
				denyStyle.Fprintf(errOut, "  %s\n", ev.Result.Error)
			}
		case agent.EventDone:
			fmt.Fprintln(out)
			return nil
		case agent.EventFailed:
			fmt.Fprintln(out)
			return ev.Err
		}
	}
}

func truncatedSuffix(truncated bool) string {
	if truncated {
		return ", truncated"
	}
	return ""
}
