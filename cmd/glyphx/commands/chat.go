package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MEKXH/glyphx/internal/agent"
	"github.com/MEKXH/glyphx/internal/approval"
	"github.com/MEKXH/glyphx/internal/config"
	"github.com/MEKXH/glyphx/internal/policy"
	"github.com/MEKXH/glyphx/internal/provider"
	"github.com/MEKXH/glyphx/internal/render"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cloudwego/eino/schema"
	"github.com/spf13/cobra"
)

func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with Glyphx",
		Long: `Chat opens an interactive session. Tool calls outside the safety policy are
shown as confirmation prompts. With a message argument it behaves like 'run'.`,
		RunE: runChat,
	}
	cmd.Flags().String("mode", "", "Execution mode (chat|agent); defaults to agent.mode")
	cmd.Flags().String("confirm", "", "Confirmation provider (tui|telegram|auto-allow|auto-deny)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return runOnce(cmd, args)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	modeFlag, _ := cmd.Flags().GetString("mode")
	if strings.TrimSpace(modeFlag) == "" {
		modeFlag = cfg.Agent.Mode
	}

	chatModel, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, chatModel, policy.ParseMode(modeFlag))
	if err != nil {
		return err
	}

	confirmName, _ := cmd.Flags().GetString("confirm")
	confirmName = strings.ToLower(strings.TrimSpace(confirmName))
	if confirmName == "" {
		confirmName = cfg.Confirm.Provider
	}
	tuiConfirms := confirmName == config.ConfirmTUI || confirmName == config.ConfirmTerminal
	if !tuiConfirms {
		confirmer, err := confirmProvider(ctx, cfg, confirmName, false)
		if err != nil {
			return err
		}
		go func() {
			if err := approval.Serve(ctx, rt.gate, confirmer); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("confirmation loop stopped", "error", err)
			}
		}()
	}

	renderer, err := render.NewMarkdown(render.DefaultWrap)
	if err != nil {
		slog.Warn("markdown rendering unavailable", "error", err)
	}

	m := newChatModel(ctx, rt, renderer, tuiConfirms)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

var (
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8E4EC6")).Bold(true)
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E8B9A"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E8B57"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D9534F"))
	thinkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")).Bold(true)
	confirmStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#E0A800")).
			Padding(0, 1)
)

type (
	streamEventMsg  struct{ event agent.Event }
	streamClosedMsg struct{}
	confirmMsg      struct{ pending *approval.Pending }
	// confirmDoneMsg fires when a prompt is answered or expires.
	confirmDoneMsg struct{ pending *approval.Pending }
)

type model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer render.Renderer

	ctx         context.Context
	rt          *runtime
	tuiConfirms bool

	thinking   bool
	stream     *schema.StreamReader[agent.Event]
	cancelTurn context.CancelFunc
	request    string
	partial    string
	entries    []string
	pending    *approval.Pending
	status     string
}

func newChatModel(ctx context.Context, rt *runtime, renderer render.Renderer, tuiConfirms bool) model {
	ta := textarea.New()
	ta.Placeholder = "Ask something, or /help"
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		textarea:    ta,
		viewport:    viewport.New(render.DefaultWrap, 20),
		spinner:     sp,
		renderer:    renderer,
		ctx:         ctx,
		rt:          rt,
		tuiConfirms: tuiConfirms,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink}
	if m.tuiConfirms && m.rt != nil {
		cmds = append(cmds, waitForConfirm(m.rt.gate))
	}
	return tea.Batch(cmds...)
}

func waitForConfirm(gate *approval.Gate) tea.Cmd {
	return func() tea.Msg {
		return confirmMsg{pending: <-gate.Requests()}
	}
}

func waitForConfirmDone(p *approval.Pending) tea.Cmd {
	return func() tea.Msg {
		<-p.Done()
		return confirmDoneMsg{pending: p}
	}
}

func waitForEvent(sr *schema.StreamReader[agent.Event]) tea.Cmd {
	return func() tea.Msg {
		ev, err := sr.Recv()
		if err != nil {
			return streamClosedMsg{}
		}
		return streamEventMsg{event: ev}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.pending != nil {
			return m.answerPending(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			if m.thinking && m.cancelTurn != nil {
				m.cancelTurn()
				m.status = "cancelling..."
				return m, nil
			}
			return m, tea.Quit
		case "esc":
			m.endTurn()
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case confirmMsg:
		if msg.pending == nil {
			return m, nil
		}
		m.pending = msg.pending
		return m, waitForConfirmDone(msg.pending)

	case confirmDoneMsg:
		if m.pending == msg.pending {
			m.pending = nil
			m.addEntry(errorStyle.Render("confirmation expired; operation denied"))
			return m, waitForConfirm(m.rt.gate)
		}
		return m, nil

	case streamEventMsg:
		return m.handleEvent(msg.event)

	case streamClosedMsg:
		m.endTurn()
		return m, nil

	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *model) resize(width, height int) {
	m.textarea.SetWidth(width)
	m.viewport.Width = width
	vh := height - m.textarea.Height() - 4
	if vh < 3 {
		vh = 3
	}
	m.viewport.Height = vh
	if r, err := render.NewMarkdown(width - 4); err == nil {
		m.renderer = r
	}
	m.refresh()
}

func (m model) submit() (tea.Model, tea.Cmd) {
	if m.thinking {
		return m, nil
	}
	input := strings.TrimSpace(m.textarea.Value())
	m.textarea.Reset()
	if input == "" {
		return m, nil
	}
	if input == "exit" || input == "quit" {
		return m, tea.Quit
	}
	if m.rt == nil {
		return m, nil
	}

	m.addEntry(userStyle.Render("> ") + input)
	if out, ok := m.rt.slashCommand(m.ctx, input); ok {
		m.addEntry(m.renderMarkdown(out))
		return m, nil
	}

	turnCtx, cancel := context.WithCancel(m.ctx)
	m.cancelTurn = cancel
	m.request = input
	m.partial = ""
	m.thinking = true
	m.status = ""
	m.stream = m.rt.loop.Stream(turnCtx, m.rt.messages(input))
	return m, tea.Batch(waitForEvent(m.stream), m.spinner.Tick)
}

// answerPending maps y/a/n/d onto an answer for the open prompt.
func (m model) answerPending(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var answer approval.Answer
	switch msg.String() {
	case "y":
		answer = approval.Answer{Verdict: approval.VerdictAllow}
	case "a":
		answer = approval.Answer{Verdict: approval.VerdictAllow, Remember: true}
	case "n", "esc":
		answer = approval.Answer{Verdict: approval.VerdictDeny}
	case "d":
		answer = approval.Answer{Verdict: approval.VerdictDeny, Remember: true}
	case "ctrl+c":
		answer = approval.Answer{Verdict: approval.VerdictDeny, Note: "interrupted"}
	default:
		return m, nil
	}

	p := m.pending
	m.pending = nil
	if p.Respond(answer) {
		m.addEntry(describeAnswer(p.Prompt, answer))
	} else {
		m.addEntry(errorStyle.Render("confirmation expired; operation denied"))
	}
	return m, waitForConfirm(m.rt.gate)
}

func describeAnswer(p approval.Prompt, a approval.Answer) string {
	verb := "denied"
	style := errorStyle
	if a.Allowed() {
		verb, style = "allowed", okStyle
	}
	if a.Remember {
		verb += " (remembered)"
	}
	return style.Render(fmt.Sprintf("%s: %s", verb, p.Summary))
}

func (m model) handleEvent(ev agent.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case agent.EventText:
		m.partial += ev.Text
	case agent.EventRetry:
		m.partial = ""
		m.status = fmt.Sprintf("model call failed, retrying (attempt %d)", ev.Attempt)
	case agent.EventToolCall:
		m.flushPartial()
		if ev.Call != nil {
			m.addEntry(toolStyle.Render(fmt.Sprintf("▸ %s %s", ev.Call.Function.Name, ev.Call.Function.Arguments)))
		}
	case agent.EventToolResult:
		if ev.Result != nil {
			m.addEntry(describeResult(ev.Result.Success(), ev.Result.Error, ev.Result.OriginalSize, ev.Result.Truncated))
		}
	case agent.EventDone:
		m.partial = ""
		if ev.Outcome != nil && ev.Outcome.Message != nil {
			content := ev.Outcome.Message.Content
			m.addResponse(content)
			m.rt.remember(m.request, content)
		}
		m.status = ""
	case agent.EventFailed:
		m.flushPartial()
		m.addEntry(errorStyle.Render("Error: " + errString(ev.Err)))
		m.status = ""
	}
	m.refresh()
	return m, waitForEvent(m.stream)
}

func describeResult(ok bool, errMsg string, size int, truncated bool) string {
	if !ok {
		return errorStyle.Render("  " + errMsg)
	}
	return okStyle.Render(fmt.Sprintf("  ok (%d bytes%s)", size, truncatedSuffix(truncated)))
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func (m *model) endTurn() {
	if m.cancelTurn != nil {
		m.cancelTurn()
		m.cancelTurn = nil
	}
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	m.thinking = false
}

func (m *model) flushPartial() {
	if text := strings.TrimSpace(m.partial); text != "" {
		m.addResponse(text)
	}
	m.partial = ""
}

func (m *model) addResponse(content string) {
	think, main, hasThink := render.ResponseParts(content, m.renderer)
	if hasThink {
		m.addEntry(thinkStyle.Render(strings.TrimSpace(think)))
	}
	if main = strings.TrimRight(main, "\n"); main != "" {
		m.addEntry(main)
	}
}

func (m *model) renderMarkdown(s string) string {
	_, main, _ := render.ResponseParts(s, m.renderer)
	return strings.TrimRight(main, "\n")
}

func (m *model) addEntry(s string) {
	m.entries = append(m.entries, s)
	m.refresh()
}

func (m *model) refresh() {
	content := strings.Join(m.entries, "\n\n")
	if m.partial != "" {
		content += "\n\n" + m.partial
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.pending != nil:
		b.WriteString(renderConfirm(m.pending.Prompt))
	case m.thinking:
		b.WriteString(m.spinner.View() + " working...")
		if m.status != "" {
			b.WriteString(" " + thinkStyle.Render(m.status))
		}
	default:
		b.WriteString(m.textarea.View())
	}
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func renderConfirm(p approval.Prompt) string {
	body := fmt.Sprintf("Confirm %s\n%s", p.Kind, p.Summary)
	if p.Reason != "" {
		body += "\n" + thinkStyle.Render(p.Reason)
	}
	return confirmStyle.Render(body)
}

func (m model) footer() string {
	hint := func(key, label string) string {
		return keyStyle.Render(key) + " " + footerStyle.Render(label)
	}
	sep := footerStyle.Render(" • ")

	var keys []string
	if m.pending != nil {
		keys = []string{hint("y", "Allow"), hint("a", "Always"), hint("n", "Deny"), hint("d", "Never")}
	} else {
		keys = []string{hint("Enter", "Send"), hint("/new", "Reset"), hint("Ctrl+C", "Cancel"), hint("Esc", "Quit")}
	}
	line := strings.Join(keys, sep)

	if m.rt != nil {
		line += sep + footerStyle.Render(string(m.rt.bridge.Mode()))
		if snap := m.rt.metrics.Snapshot(); snap.HasData() {
			line += sep + footerStyle.Render(fmt.Sprintf("tools %d, denied %d", snap.Tool.Total, snap.Tool.Denied+snap.Tool.Rejected))
		}
	}
	return line
}
