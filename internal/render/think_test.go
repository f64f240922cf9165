package render

import "testing"

func TestSplitThink(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantThink  string
		wantAnswer string
		wantFound  bool
	}{
		{
			name:       "closed block",
			input:      "<think>check the jail first</think>The file is outside the workspace.",
			wantThink:  "check the jail first",
			wantAnswer: "The file is outside the workspace.",
			wantFound:  true,
		},
		{
			name:       "leading whitespace",
			input:      "\n  <think>\nplan\n</think>\n\nanswer",
			wantThink:  "plan",
			wantAnswer: "answer",
			wantFound:  true,
		},
		{
			name:       "still streaming",
			input:      "<think>listing files, then",
			wantThink:  "listing files, then",
			wantAnswer: "",
			wantFound:  true,
		},
		{
			name:       "empty block",
			input:      "<think></think>done",
			wantThink:  "",
			wantAnswer: "done",
			wantFound:  true,
		},
		{
			name:       "no block",
			input:      "plain answer",
			wantAnswer: "plain answer",
		},
		{
			name:       "tag mid answer is not reasoning",
			input:      "use the <think> tag like this",
			wantAnswer: "use the <think> tag like this",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			think, answer, found := SplitThink(tt.input)
			if found != tt.wantFound {
				t.Fatalf("expected found=%v, got %v", tt.wantFound, found)
			}
			if think != tt.wantThink {
				t.Fatalf("expected think %q, got %q", tt.wantThink, think)
			}
			if answer != tt.wantAnswer {
				t.Fatalf("expected answer %q, got %q", tt.wantAnswer, answer)
			}
		})
	}
}
