package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MEKXH/glyphx/internal/policy"
	"github.com/cloudwego/eino/schema"
)

// Turn is one remembered exchange line.
type Turn struct {
	Role    string
	Content string
}

// ContextBuilder builds LLM context
type ContextBuilder struct {
	workspacePath string
	mode          policy.Mode
}

// NewContextBuilder creates a context builder rooted at workspacePath.
func NewContextBuilder(workspacePath string, mode policy.Mode) *ContextBuilder {
	return &ContextBuilder{workspacePath: workspacePath, mode: mode}
}

// BuildSystemPrompt assembles the system prompt
func (c *ContextBuilder) BuildSystemPrompt() string {
	var parts []string

	parts = append(parts, c.coreIdentity())
	parts = append(parts, c.modeSection())

	for _, name := range []string{"AGENTS.md", "GLYPHX.md"} {
		if content := c.readWorkspaceFile(name); content != "" {
			parts = append(parts, "## "+strings.TrimSuffix(name, ".md")+"\n"+content)
		}
	}

	return strings.Join(parts, "\n\n")
}

func (c *ContextBuilder) coreIdentity() string {
	return `You are Glyphx, a local command assistant.
You can run shell commands and read, write and list files through tools.
Every tool call is checked against a safety policy; blocked calls come back with an error explaining why.
Do not retry a blocked call unchanged. Prefer the smallest command that answers the question.`
}

func (c *ContextBuilder) modeSection() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Session\nMode: %s", c.mode)
	if c.workspacePath != "" {
		fmt.Fprintf(&b, "\nWorkspace: %s (relative paths resolve here)", c.workspacePath)
	}
	if c.mode == policy.ModeAgent {
		b.WriteString("\nYou are running unattended; operations outside policy fail instead of asking the user.")
	}
	return b.String()
}

func (c *ContextBuilder) readWorkspaceFile(name string) string {
	if c.workspacePath == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(c.workspacePath, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// BuildMessages constructs the full message list
func (c *ContextBuilder) BuildMessages(history []Turn, current string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)

	messages = append(messages, &schema.Message{
		Role:    schema.System,
		Content: c.BuildSystemPrompt(),
	})

	for _, h := range history {
		role := schema.User
		if h.Role == "assistant" {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: h.Content,
		})
	}

	messages = append(messages, &schema.Message{
		Role:    schema.User,
		Content: strings.TrimSpace(current),
	})

	return messages
}
