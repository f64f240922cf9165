package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MEKXH/glyphx/internal/config"
)

var (
	loggerMu      sync.Mutex
	activeLogFile *os.File
)

// configureLogger installs the default slog logger. Files get JSON lines,
// stderr gets text. The TUI owns the terminal, so chat logs go to
// <state>/glyphx.log unless log.file names another file.
func configureLogger(cfg *config.Config, overrideLevel string, tuiMode bool) error {
	level, err := parseLogLevel(cfg.Log.Level, overrideLevel)
	if err != nil {
		return err
	}

	logFilePath := strings.TrimSpace(cfg.Log.File)
	if logFilePath == "" && tuiMode {
		logFilePath = filepath.Join(cfg.StateDir(), "glyphx.log")
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()

	if activeLogFile != nil && (logFilePath == "" || activeLogFile.Name() != logFilePath) {
		_ = activeLogFile.Close()
		activeLogFile = nil
	}

	opts := &slog.HandlerOptions{Level: level}
	if logFilePath == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		if tuiMode && strings.TrimSpace(cfg.Log.File) == "" {
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, opts)))
			return nil
		}
		return fmt.Errorf("create log directory: %w", err)
	}
	if activeLogFile == nil {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		activeLogFile = f
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(activeLogFile, opts)))
	return nil
}

func parseLogLevel(configLevel, override string) (slog.Level, error) {
	level := strings.TrimSpace(configLevel)
	if strings.TrimSpace(override) != "" {
		level = override
	}
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}
