package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

var (
	// ErrUnknownTool is returned for a tool name nobody registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when tool arguments cannot be decoded.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Tool names exposed to the model.
const (
	ToolRunShell  = "run_shell"
	ToolReadFile  = "read_file"
	ToolWriteFile = "write_file"
	ToolListFiles = "list_files"
)

// RunShellArgs are the run_shell arguments.
type RunShellArgs struct {
	Command string  `json:"command" jsonschema:"required,description=Shell command to execute"`
	Timeout float64 `json:"timeout,omitempty" jsonschema:"minimum=1,maximum=3600,description=Timeout in seconds"`
	Cwd     string  `json:"cwd,omitempty" jsonschema:"description=Working directory for the command"`
}

// ReadFileArgs are the read_file arguments.
type ReadFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Path of the file to read"`
}

// WriteFileArgs are the write_file arguments.
type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"required,description=Path of the file to write"`
	Content string `json:"content" jsonschema:"required,description=Full new file content"`
}

// ListFilesArgs are the list_files arguments.
type ListFilesArgs struct {
	Path string `json:"path" jsonschema:"required,description=Directory to list"`
}

type entry struct {
	info   *schema.ToolInfo
	decode func(args string) (Operation, error)
}

// Registry maps tool names to their schema and argument decoder.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// DefaultRegistry returns a registry holding the four built-in tools.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := Register(r, ToolRunShell, "Execute a shell command and return its combined output", decodeShell); err != nil {
		return nil, err
	}
	if err := Register(r, ToolReadFile, "Read a text file", func(a ReadFileArgs) (Operation, error) {
		if strings.TrimSpace(a.Path) == "" {
			return nil, errors.New("path is required")
		}
		return FileRead{Path: a.Path}, nil
	}); err != nil {
		return nil, err
	}
	if err := Register(r, ToolWriteFile, "Create or replace a file with the given content", func(a WriteFileArgs) (Operation, error) {
		if strings.TrimSpace(a.Path) == "" {
			return nil, errors.New("path is required")
		}
		return FileWrite{Path: a.Path, Content: a.Content}, nil
	}); err != nil {
		return nil, err
	}
	if err := Register(r, ToolListFiles, "List the non-hidden entries of a directory", func(a ListFilesArgs) (Operation, error) {
		path := a.Path
		if strings.TrimSpace(path) == "" {
			path = "."
		}
		return ListFiles{Path: path}, nil
	}); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeShell(a RunShellArgs) (Operation, error) {
	if strings.TrimSpace(a.Command) == "" {
		return nil, errors.New("command is required")
	}
	var timeout time.Duration
	if a.Timeout > 0 {
		timeout = time.Duration(a.Timeout * float64(time.Second))
	}
	return ShellCommand{Command: a.Command, Timeout: timeout, Dir: a.Cwd}, nil
}

// Register adds a tool whose arguments decode into T.
func Register[T any](r *Registry, name, desc string, build func(T) (Operation, error)) error {
	info, err := utils.GoStruct2ToolInfo[T](name, desc)
	if err != nil {
		return fmt.Errorf("build schema for %s: %w", name, err)
	}
	if info == nil || info.Name == "" {
		return fmt.Errorf("tool info missing name")
	}

	decode := func(args string) (Operation, error) {
		var in T
		raw := strings.TrimSpace(args)
		if raw == "" {
			raw = "{}"
		}
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidArguments, name, err)
		}
		op, err := build(in)
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidArguments, name, err)
		}
		return op, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.entries[name] = entry{info: info, decode: decode}
	r.order = append(r.order, name)
	return nil
}

// Decode turns a model tool call into an Operation.
func (r *Registry) Decode(name, args string) (Operation, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return e.decode(args)
}

// Infos returns the tool schemas in registration order.
func (r *Registry) Infos() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.entries[name].info)
	}
	return infos
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}
