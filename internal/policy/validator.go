package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Validator performs pure policy decisions over a compiled Config.
type Validator struct {
	cfg       Config
	shellDeny []*regexp.Regexp
	fileDeny  []*regexp.Regexp
	allow     map[string]struct{}
	allowExt  map[string]struct{}
	jailRoot  string
}

// Compile validates cfg and builds a side-effect free validator.
// Invalid patterns are rejected so that a broken policy never loads.
func Compile(cfg Config) (*Validator, error) {
	v := &Validator{
		cfg:      cloneConfig(cfg),
		allow:    make(map[string]struct{}, len(cfg.ShellAllow)),
		allowExt: make(map[string]struct{}, len(cfg.FileAllowExt)),
	}

	for _, pattern := range cfg.ShellDeny {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile shell deny pattern %q: %w", pattern, err)
		}
		v.shellDeny = append(v.shellDeny, re)
	}
	for _, pattern := range cfg.FileDenyPatterns {
		re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("compile file deny pattern %q: %w", pattern, err)
		}
		v.fileDeny = append(v.fileDeny, re)
	}
	for _, name := range cfg.ShellAllow {
		if normalized := normalizeExecutable(name); normalized != "" {
			v.allow[normalized] = struct{}{}
		}
	}
	for _, ext := range cfg.FileAllowExt {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		v.allowExt[ext] = struct{}{}
	}

	if root := strings.TrimSpace(cfg.FileJailRoot); root != "" {
		resolved, err := resolvePath(root, "")
		if err != nil {
			return nil, fmt.Errorf("resolve jail root: %w", err)
		}
		v.jailRoot = resolved
	}
	return v, nil
}

// Config returns a copy of the compiled configuration.
func (v *Validator) Config() Config {
	return cloneConfig(v.cfg)
}

// JailRoot returns the resolved jail root, or "" when unjailed.
func (v *Validator) JailRoot() string {
	return v.jailRoot
}

// MaxOutputBytes is the bridge-level output cap.
func (v *Validator) MaxOutputBytes() int {
	return v.cfg.MaxOutputBytes
}

// ValidateShellCommand judges a shell command line.
func (v *Validator) ValidateShellCommand(command string) Decision {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return deny("empty command")
	}
	if !v.cfg.Enabled {
		return allow("safety checks disabled")
	}

	for i, re := range v.shellDeny {
		if re.MatchString(trimmed) {
			return deny("command matches denied pattern: %s", v.cfg.ShellDeny[i])
		}
	}

	if len(v.allow) == 0 {
		return allow("no allow list configured")
	}

	if strings.Contains(trimmed, "$(") || strings.Contains(trimmed, "`") {
		return deny("command substitution is not allowed while an allow list is configured")
	}

	for _, segment := range splitSegments(trimmed) {
		exe := leadingExecutable(segment)
		if exe == "" {
			continue
		}
		if _, ok := v.allow[exe]; !ok {
			return deny("command %q not in allow list", exe)
		}
	}
	return allow("command validated")
}

// ValidateFilePath judges a file path for reading (write=false) or writing.
func (v *Validator) ValidateFilePath(path string, write bool) Decision {
	if strings.TrimSpace(path) == "" {
		return deny("empty path")
	}
	if !v.cfg.Enabled {
		return allow("safety checks disabled")
	}

	resolved, err := v.Resolve(path)
	if err != nil {
		return deny("invalid path: %v", err)
	}

	if v.jailRoot != "" && !within(v.jailRoot, resolved) {
		return deny("path %s is outside jail %s", resolved, v.jailRoot)
	}

	slashed := filepath.ToSlash(resolved)
	for i, re := range v.fileDeny {
		if re.MatchString(slashed) {
			return deny("path matches denied pattern: %s", v.cfg.FileDenyPatterns[i])
		}
	}

	if write {
		if len(v.allowExt) > 0 {
			ext := strings.ToLower(filepath.Ext(resolved))
			if _, ok := v.allowExt[ext]; !ok {
				return deny("file type %q not allowed for writing", ext)
			}
		}
		return allow("path validated")
	}

	if v.cfg.FileMaxBytes > 0 {
		if info, err := os.Stat(resolved); err == nil && !info.IsDir() && info.Size() > v.cfg.FileMaxBytes {
			return deny("file too large: %d bytes (limit %d)", info.Size(), v.cfg.FileMaxBytes)
		}
	}
	return allow("path validated")
}

// Resolve turns path into the absolute, symlink-resolved form the validator judges.
// Relative paths are anchored at the jail root when one is configured.
func (v *Validator) Resolve(path string) (string, error) {
	return resolvePath(path, v.jailRoot)
}

func resolvePath(path, base string) (string, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], string(filepath.Separator)))
	}
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := filepath.Clean(abs)
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return filepath.Clean(abs), nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// splitSegments splits a shell line into the commands it runs, on the list
// and pipe operators (;, &, &&, |, ||, |&, newline). Operators inside quotes
// and the & of a redirection (2>&1, >&2, &>file, <&0) do not split.
func splitSegments(line string) []string {
	var (
		segments []string
		start    int
		quote    byte
	)
	cut := func(end, next int) int {
		segments = append(segments, line[start:end])
		start = next
		return next - 1
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case c == '\\':
			if quote == 0 || (i+1 < len(line) && strings.IndexByte(`"\$`, line[i+1]) >= 0) {
				i++
			}
		case quote == '"':
			if c == '"' {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';' || c == '\n':
			i = cut(i, i+1)
		case c == '|':
			next := i + 1
			if next < len(line) && (line[next] == '|' || line[next] == '&') {
				next++
			}
			i = cut(i, next)
		case c == '&':
			if i > 0 && (line[i-1] == '>' || line[i-1] == '<') {
				continue
			}
			if i+1 < len(line) && line[i+1] == '>' {
				continue
			}
			next := i + 1
			if next < len(line) && line[next] == '&' {
				next++
			}
			i = cut(i, next)
		}
	}
	return append(segments, line[start:])
}

// leadingExecutable returns the base name of the first command word in segment,
// skipping leading VAR=value assignments.
func leadingExecutable(segment string) string {
	for _, field := range strings.Fields(segment) {
		if idx := strings.Index(field, "="); idx > 0 && !strings.ContainsAny(field[:idx], `/\`) {
			continue
		}
		return normalizeExecutable(field)
	}
	return ""
}

func normalizeExecutable(token string) string {
	token = strings.ToLower(strings.Trim(strings.TrimSpace(token), `"'`))
	if i := strings.LastIndexAny(token, `/\`); i >= 0 {
		token = token[i+1:]
	}
	return strings.TrimSuffix(token, ".exe")
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.ShellAllow = append([]string(nil), cfg.ShellAllow...)
	out.ShellDeny = append([]string(nil), cfg.ShellDeny...)
	out.FileAllowExt = append([]string(nil), cfg.FileAllowExt...)
	out.FileDenyPatterns = append([]string(nil), cfg.FileDenyPatterns...)
	return out
}
