package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLogLevel maps CHROMA_MCP_LOG_LEVEL values to slog levels. Empty means INFO.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid CHROMA_MCP_LOG_LEVEL %q: want DEBUG, INFO, WARNING or ERROR", s)
	}
}

// SetupLogger builds the server logger. Text goes to w, which must not be the stdio
// transport's stdout. When logFile is set, records are also appended to it as JSON
// and the returned cleanup closes it. Debug level adds source locations to the file.
func SetupLogger(w io.Writer, logFile string, level slog.Level) (*slog.Logger, func() error, error) {
	console := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if logFile == "" {
		return slog.New(console), func() error { return nil }, nil
	}

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	structured := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	return slog.New(slogmulti.Fanout(console, structured)), file.Close, nil
}
