package render

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// SplitThink separates a leading reasoning block from the answer. A block
// that is still open, as happens mid-stream, counts as reasoning up to the
// end of content.
func SplitThink(content string) (think, answer string, found bool) {
	trimmed := strings.TrimLeft(content, " \t\r\n")
	rest, ok := strings.CutPrefix(trimmed, thinkOpen)
	if !ok {
		return "", content, false
	}
	inner, after, closed := strings.Cut(rest, thinkClose)
	if !closed {
		return strings.TrimSpace(rest), "", true
	}
	return strings.TrimSpace(inner), strings.TrimSpace(after), true
}
