package tools

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MEKXH/glyphx/internal/policy"
)

const (
	writeFileMode = 0o644
	writeDirMode  = 0o755
)

func (b *Bridge) readFile(_ permit, path string, v *policy.Validator) Result {
	f, err := os.Open(path)
	if err != nil {
		return failure(ErrorIO, "read %s: %v", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return failure(ErrorIO, "stat %s: %v", path, err)
	}
	if info.IsDir() {
		return failure(ErrorIO, "read %s: is a directory", path)
	}
	limit := v.Config().FileMaxBytes
	if limit > 0 && info.Size() > limit {
		return blocked(fmt.Sprintf("file too large: %d bytes (limit %d)", info.Size(), limit))
	}

	var r io.Reader = f
	if limit > 0 {
		// The file may grow between Stat and Read.
		r = io.LimitReader(f, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return failure(ErrorIO, "read %s: %v", path, err)
	}
	return textResult(string(data), v)
}

func (b *Bridge) writeFile(_ permit, path, content string, v *policy.Validator) Result {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, writeDirMode); err != nil {
		return failure(ErrorIO, "create parent directories for %s: %v", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return failure(ErrorIO, "write %s: %v", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	n, err := tmp.WriteString(content)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return failure(ErrorIO, "write %s: %v", path, err)
	}
	if err := os.Chmod(tmpPath, writeFileMode); err != nil {
		cleanup()
		return failure(ErrorIO, "write %s: %v", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return failure(ErrorIO, "write %s: %v", path, err)
	}
	return textResult(fmt.Sprintf("wrote %d bytes to %s", n, path), v)
}

func (b *Bridge) listFiles(_ permit, path string, v *policy.Validator) Result {
	entries, err := os.ReadDir(path)
	if err != nil {
		return failure(ErrorIO, "list %s: %v", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return textResult("(empty directory)", v)
	}
	return textResult(strings.Join(names, "\n"), v)
}

func textResult(text string, v *policy.Validator) Result {
	output, truncated := policy.TruncateOutput(text, v.MaxOutputBytes())
	return Result{Output: output, Truncated: truncated, OriginalSize: len(text)}
}
