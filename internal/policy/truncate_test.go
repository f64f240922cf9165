package policy

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateOutput_WithinLimitUnchanged(t *testing.T) {
	out, truncated := TruncateOutput("hello", 5)
	if truncated || out != "hello" {
		t.Fatalf("expected unchanged output, got %q truncated=%t", out, truncated)
	}
	out, truncated = TruncateOutput(strings.Repeat("x", 100), 0)
	if truncated || len(out) != 100 {
		t.Fatal("expected non-positive limit to disable truncation")
	}
}

func TestTruncateOutput_LargeOutput(t *testing.T) {
	text := strings.Repeat("a", 25000)
	out, truncated := TruncateOutput(text, 8000)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasPrefix(out, strings.Repeat("a", 8000)) {
		t.Fatal("expected first 8000 bytes to be kept")
	}
	if len(out) > 8000+MarkerLen(8000, 25000) {
		t.Fatalf("output too long: %d", len(out))
	}
	if !strings.Contains(out, "showing 8000 of 25000 bytes") {
		t.Fatalf("expected marker with sizes, got tail %q", out[8000:])
	}
}

func TestTruncateOutput_NeverSplitsMultiByte(t *testing.T) {
	text := strings.Repeat("é世🙂", 500)
	for limit := 1; limit < 64; limit++ {
		out, truncated := TruncateOutput(text, limit)
		if !truncated {
			t.Fatalf("limit %d: expected truncation", limit)
		}
		if !utf8.ValidString(out) {
			t.Fatalf("limit %d: produced invalid UTF-8", limit)
		}
		body := out[:strings.Index(out, "\n\n[output truncated")]
		if len(body) > limit {
			t.Fatalf("limit %d: body has %d bytes", limit, len(body))
		}
		if len(out) > limit+MarkerLen(len(body), len(text)) {
			t.Fatalf("limit %d: output exceeds bound", limit)
		}
	}
}

func TestTruncateOutput_Idempotent(t *testing.T) {
	inputs := []string{
		strings.Repeat("x", 1000),
		strings.Repeat("日本語", 300),
		"short",
	}
	for _, in := range inputs {
		for _, limit := range []int{1, 7, 100, 999} {
			once, _ := TruncateOutput(in, limit)
			twice, truncatedAgain := TruncateOutput(once, limit)
			if once != twice {
				t.Fatalf("limit %d: second truncation changed output", limit)
			}
			if truncatedAgain {
				t.Fatalf("limit %d: second truncation reported new truncation", limit)
			}
		}
	}
}

func TestTruncateCaptured_ReportsStreamSize(t *testing.T) {
	out, truncated := TruncateCaptured(strings.Repeat("b", 100), 5000, 40)
	if !truncated || !strings.Contains(out, "showing 40 of 5000 bytes") {
		t.Fatalf("unexpected result %q truncated=%t", out, truncated)
	}

	out, truncated = TruncateCaptured(strings.Repeat("b", 30), 5000, 40)
	if !truncated || !strings.Contains(out, "showing 30 of 5000 bytes") {
		t.Fatalf("expected short capture to be marked, got %q", out)
	}

	out, truncated = TruncateCaptured("complete", 8, 40)
	if truncated || out != "complete" {
		t.Fatalf("expected full capture unchanged, got %q", out)
	}
}

func TestTruncateCaptured_UnlimitedDropsPartialRuneAtCaptureEnd(t *testing.T) {
	// The capture buffer stopped one byte into "é".
	captured := "abc" + "é"[:1]

	out, truncated := TruncateCaptured(captured, 100, 0)
	if !truncated {
		t.Fatal("expected truncated=true when the stream was larger than the capture")
	}
	body, _, _ := strings.Cut(out, "\n\n[output truncated")
	if body != "abc" {
		t.Fatalf("expected partial rune dropped, got body %q", body)
	}
	if !utf8.ValidString(out) {
		t.Fatalf("expected valid UTF-8, got %q", out)
	}
	if !strings.Contains(out, "showing 3 of 100 bytes") {
		t.Fatalf("unexpected marker in %q", out)
	}

	out, _ = TruncateCaptured("abcé", 100, 0)
	if !strings.HasPrefix(out, "abcé\n\n") {
		t.Fatalf("expected complete rune kept, got %q", out)
	}
}
