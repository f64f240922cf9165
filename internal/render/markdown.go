package render

import (
	"github.com/charmbracelet/glamour"
)

// Renderer turns Markdown into terminal output.
type Renderer interface {
	Render(string) (string, error)
}

// DefaultWrap is the word wrap width used before the terminal size is known.
const DefaultWrap = 80

// NewMarkdown returns a glamour renderer wrapped at width.
func NewMarkdown(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = DefaultWrap
	}
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

// ResponseParts renders the think block and the answer separately.
// Content that fails to render is returned as-is.
func ResponseParts(content string, r Renderer) (think, main string, hasThink bool) {
	t, body, found := SplitThink(content)
	if found && t != "" {
		think = renderOrRaw(r, t)
	}
	if body != "" {
		main = renderOrRaw(r, body)
	}
	return think, main, found && t != ""
}

func renderOrRaw(r Renderer, s string) string {
	if r == nil {
		return s
	}
	out, err := r.Render(s)
	if err != nil {
		return s
	}
	return out
}
