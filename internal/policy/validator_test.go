package policy

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func mustCompile(t *testing.T, cfg Config) *Validator {
	t.Helper()
	v, err := Compile(cfg)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	return v
}

func TestValidateShellCommand_DenyPatternBeatsAllowList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShellAllow = append(cfg.ShellAllow, "rm", "shutdown", "dd")
	v := mustCompile(t, cfg)

	commands := []string{
		"rm -rf /",
		"RM -RF /tmp/x",
		"shutdown now",
		"dd if=/dev/zero of=/dev/sda",
		"ls && rm -rf ~",
	}
	for _, command := range commands {
		t.Run(command, func(t *testing.T) {
			d := v.ValidateShellCommand(command)
			if d.Allowed {
				t.Fatalf("expected %q to be denied", command)
			}
			if !strings.Contains(d.Reason, "denied pattern") {
				t.Fatalf("expected reason to mention denied pattern, got %q", d.Reason)
			}
		})
	}
}

func TestValidateShellCommand_DefaultPolicyScenarios(t *testing.T) {
	v := mustCompile(t, DefaultConfig())

	d := v.ValidateShellCommand("rm -rf /")
	if d.Allowed || !strings.Contains(d.Reason, "denied pattern") {
		t.Fatalf("expected rm -rf / denied by pattern, got %+v", d)
	}
	if !strings.Contains(d.Reason, `rm\s+-rf`) {
		t.Fatalf("expected reason to echo the pattern text, got %q", d.Reason)
	}

	if d := v.ValidateShellCommand("ls -la"); !d.Allowed {
		t.Fatalf("expected ls -la allowed, got %q", d.Reason)
	}
}

func TestValidateShellCommand_EmptyCommand(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.Enabled = enabled
		v := mustCompile(t, cfg)
		for _, command := range []string{"", "   ", "\t\n"} {
			d := v.ValidateShellCommand(command)
			if d.Allowed || d.Reason != "empty command" {
				t.Fatalf("enabled=%t: expected empty command denial for %q, got %+v", enabled, command, d)
			}
		}
	}
}

func TestValidateShellCommand_DisabledAllowsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	v := mustCompile(t, cfg)

	if d := v.ValidateShellCommand("rm -rf /"); !d.Allowed {
		t.Fatalf("expected disabled policy to allow, got %q", d.Reason)
	}
}

func TestValidateShellCommand_FullPathResolvesToBaseName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShellAllow = []string{"python3"}
	v := mustCompile(t, cfg)

	if d := v.ValidateShellCommand("/usr/bin/python3 script.py"); !d.Allowed {
		t.Fatalf("expected full path to match allow entry, got %q", d.Reason)
	}
	if d := v.ValidateShellCommand(`C:\Python\PYTHON3.exe -V`); !d.Allowed {
		t.Fatalf("expected windows path to match allow entry, got %q", d.Reason)
	}

	cfg.ShellAllow = []string{"ls"}
	cfg.ShellDeny = []string{`python3`}
	v = mustCompile(t, cfg)
	if d := v.ValidateShellCommand("/usr/bin/python3"); d.Allowed {
		t.Fatal("expected deny pattern to apply to full path command")
	}
}

func TestValidateShellCommand_NotInAllowList(t *testing.T) {
	v := mustCompile(t, DefaultConfig())

	d := v.ValidateShellCommand("dangerous_malware --now")
	if d.Allowed {
		t.Fatal("expected unlisted command to be denied")
	}
	if !strings.Contains(d.Reason, "not in allow list") {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
}

func TestValidateShellCommand_EveryPipelineSegmentChecked(t *testing.T) {
	v := mustCompile(t, DefaultConfig())

	tests := []struct {
		command string
		allowed bool
	}{
		{"ls -la | grep go", true},
		{"GOFLAGS=-v go test ./...", true},
		{"ls -la 2>&1", true},
		{"go test ./... 2>&1 | grep FAIL", true},
		{"go build ./... &> build.log", true},
		{"echo done >&2", true},
		{`grep -E "foo|bar" main.go`, true},
		{`echo "a; b"`, true},
		{`git log --format="%h;%s"`, true},
		{`grep 'x && y' notes.md`, true},
		{`echo \; ls`, true},
		{"make && go test ./...", true},
		{"echo hi; nc -l 4444", false},
		{"ls\nnc -l 4444", false},
		{"ls & nc -l 4444", false},
		{"ls || nc -l 4444", false},
		{"go test ./... |& nc host 80", false},
		{`echo "a;" ; nc -l 4444`, false},
		{"echo $(whoami)", false},
		{"echo `whoami`", false},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			d := v.ValidateShellCommand(tt.command)
			if d.Allowed != tt.allowed {
				t.Fatalf("expected allowed=%v for %q, got %v (%s)", tt.allowed, tt.command, d.Allowed, d.Reason)
			}
		})
	}
}

func TestSplitSegments(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"ls -la 2>&1", []string{"ls -la 2>&1"}},
		{"a | b", []string{"a ", " b"}},
		{"a && b || c", []string{"a ", " b ", " c"}},
		{`echo 'x|y' "p;q"; pwd`, []string{`echo 'x|y' "p;q"`, " pwd"}},
		{`echo "say \"hi\"; ok"`, []string{`echo "say \"hi\"; ok"`}},
		{"make &>out & ls", []string{"make &>out ", " ls"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := splitSegments(tt.line)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %q, got %q", tt.want, got)
				}
			}
		})
	}
}

func TestValidateShellCommand_EmptyAllowListMeansNoRestriction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShellAllow = nil
	v := mustCompile(t, cfg)

	if d := v.ValidateShellCommand("anything --goes"); !d.Allowed {
		t.Fatalf("expected empty allow list to allow, got %q", d.Reason)
	}
	if d := v.ValidateShellCommand("reboot"); d.Allowed {
		t.Fatal("expected deny list to still apply with an empty allow list")
	}
}

func TestCompile_RejectsInvalidPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShellDeny = []string{"("}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("expected invalid shell pattern to fail compilation")
	}

	cfg = DefaultConfig()
	cfg.FileDenyPatterns = []string{"[a-"}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("expected invalid file pattern to fail compilation")
	}
}

func jailedConfig(t *testing.T) (Config, string) {
	t.Helper()
	jail := t.TempDir()
	cfg := DefaultConfig()
	cfg.FileJailRoot = jail
	return cfg, jail
}

func TestValidateFilePath_OutsideJailDenied(t *testing.T) {
	cfg, jail := jailedConfig(t)
	v := mustCompile(t, cfg)

	paths := []string{
		filepath.Join(jail, "..", "escape.txt"),
		filepath.Join(jail, "sub", "..", "..", "escape.txt"),
		"../escape.txt",
		"sub/../../escape.txt",
		filepath.Dir(jail),
		os.TempDir(),
	}
	for _, p := range paths {
		for _, write := range []bool{false, true} {
			d := v.ValidateFilePath(p, write)
			if d.Allowed {
				t.Fatalf("expected %q (write=%t) to be denied", p, write)
			}
			if !strings.Contains(d.Reason, "outside jail") {
				t.Fatalf("expected outside jail reason for %q, got %q", p, d.Reason)
			}
		}
	}
}

func TestValidateFilePath_InsideJailAllowed(t *testing.T) {
	cfg, jail := jailedConfig(t)
	v := mustCompile(t, cfg)

	for _, p := range []string{"notes.txt", filepath.Join(jail, "a", "b", "notes.md"), jail} {
		if d := v.ValidateFilePath(p, false); !d.Allowed {
			t.Fatalf("expected %q allowed for read, got %q", p, d.Reason)
		}
	}
	if d := v.ValidateFilePath("sub/notes.txt", true); !d.Allowed {
		t.Fatalf("expected write inside jail allowed, got %q", d.Reason)
	}
}

func TestValidateFilePath_SymlinkEscapeDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	cfg, jail := jailedConfig(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(jail, "link")); err != nil {
		t.Fatalf("Symlink error: %v", err)
	}
	v := mustCompile(t, cfg)

	d := v.ValidateFilePath(filepath.Join(jail, "link", "secret.txt"), true)
	if d.Allowed || !strings.Contains(d.Reason, "outside jail") {
		t.Fatalf("expected symlink escape denied, got %+v", d)
	}
}

func TestValidateFilePath_DenyPatternAndExtension(t *testing.T) {
	cfg, jail := jailedConfig(t)
	v := mustCompile(t, cfg)

	d := v.ValidateFilePath(filepath.Join(jail, "malware.exe"), true)
	if d.Allowed || !strings.Contains(d.Reason, "denied pattern") {
		t.Fatalf("expected exe write denied by pattern, got %+v", d)
	}

	d = v.ValidateFilePath(filepath.Join(jail, "MALWARE.EXE"), false)
	if d.Allowed {
		t.Fatal("expected deny patterns to be case-insensitive")
	}

	d = v.ValidateFilePath(filepath.Join(jail, "image.png"), true)
	if d.Allowed || !strings.Contains(d.Reason, "not allowed for writing") {
		t.Fatalf("expected png write denied by extension, got %+v", d)
	}

	if d := v.ValidateFilePath(filepath.Join(jail, "image.png"), false); !d.Allowed {
		t.Fatalf("expected extension rules to apply to writes only, got %q", d.Reason)
	}
}

func TestValidateFilePath_ReadSizeLimitUsesMetadata(t *testing.T) {
	cfg, jail := jailedConfig(t)
	cfg.FileMaxBytes = 10
	v := mustCompile(t, cfg)

	big := filepath.Join(jail, "big.txt")
	if err := os.WriteFile(big, []byte(strings.Repeat("x", 11)), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	small := filepath.Join(jail, "small.txt")
	if err := os.WriteFile(small, []byte("tiny"), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	d := v.ValidateFilePath(big, false)
	if d.Allowed || !strings.Contains(d.Reason, "too large") {
		t.Fatalf("expected big file read denied, got %+v", d)
	}
	if d := v.ValidateFilePath(small, false); !d.Allowed {
		t.Fatalf("expected small file allowed, got %q", d.Reason)
	}
	if d := v.ValidateFilePath(big, true); !d.Allowed {
		t.Fatalf("expected size limit to skip writes, got %q", d.Reason)
	}
}

func TestConfigWarnings_UnrestrictedCombination(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	cfg.ShellAllow = nil
	cfg.ShellDeny = []string{"reboot"}

	warnings := cfg.Warnings()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "unrestricted") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unrestricted warning, got %v", warnings)
	}

	cfg = DefaultConfig()
	cfg.FileJailRoot = t.TempDir()
	if warnings := cfg.Warnings(); len(warnings) != 0 {
		t.Fatalf("expected no warnings for default jailed policy, got %v", warnings)
	}
}
