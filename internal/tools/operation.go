package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/MEKXH/glyphx/internal/approval"
)

// Kind names an operation class.
type Kind string

const (
	KindShell     Kind = "shell"
	KindFileRead  Kind = "file_read"
	KindFileWrite Kind = "file_write"
	KindListFiles Kind = "list_files"
)

// Operation is a decoded tool request. The set of implementations is closed.
type Operation interface {
	Kind() Kind
	// Summary is a short human-readable description for prompts and logs.
	Summary() string

	fingerprint(resolve func(string) (string, error)) string
	sealed()
}

// ShellCommand runs Command through the platform shell.
type ShellCommand struct {
	Command string
	Timeout time.Duration
	Dir     string
}

// FileRead reads a whole file.
type FileRead struct {
	Path string
}

// FileWrite replaces a file's contents.
type FileWrite struct {
	Path    string
	Content string
}

// ListFiles lists a directory.
type ListFiles struct {
	Path string
}

func (ShellCommand) Kind() Kind { return KindShell }
func (FileRead) Kind() Kind     { return KindFileRead }
func (FileWrite) Kind() Kind    { return KindFileWrite }
func (ListFiles) Kind() Kind    { return KindListFiles }

func (ShellCommand) sealed() {}
func (FileRead) sealed()     {}
func (FileWrite) sealed()    {}
func (ListFiles) sealed()    {}

func (op ShellCommand) Summary() string {
	if op.Dir != "" {
		return fmt.Sprintf("%s (in %s)", strings.TrimSpace(op.Command), op.Dir)
	}
	return strings.TrimSpace(op.Command)
}

func (op FileRead) Summary() string { return "read " + op.Path }

func (op FileWrite) Summary() string {
	return fmt.Sprintf("write %s (%d bytes)", op.Path, len(op.Content))
}

func (op ListFiles) Summary() string { return "list " + op.Path }

// The timeout is left out of the shell fingerprint so that an approval
// survives a retry with a longer limit.
func (op ShellCommand) fingerprint(resolve func(string) (string, error)) string {
	return approval.Fingerprint(string(KindShell), strings.TrimSpace(op.Command), resolvedOrRaw(resolve, op.Dir))
}

func (op FileRead) fingerprint(resolve func(string) (string, error)) string {
	return approval.Fingerprint(string(KindFileRead), resolvedOrRaw(resolve, op.Path))
}

func (op FileWrite) fingerprint(resolve func(string) (string, error)) string {
	sum := sha256.Sum256([]byte(op.Content))
	return approval.Fingerprint(string(KindFileWrite), resolvedOrRaw(resolve, op.Path), hex.EncodeToString(sum[:]))
}

func (op ListFiles) fingerprint(resolve func(string) (string, error)) string {
	return approval.Fingerprint(string(KindListFiles), resolvedOrRaw(resolve, op.Path))
}

func resolvedOrRaw(resolve func(string) (string, error), path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	resolved, err := resolve(path)
	if err != nil {
		return path
	}
	return resolved
}
