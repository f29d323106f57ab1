package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger opens the log file and returns a logger plus a cleanup func.
// The file gets JSON for machine parsing; when toStderr is set a text
// handler is fanned in as well. The TUI owns the terminal, so interactive
// runs log to the file only.
func SetupLogger(logFile string, level slog.Level, toStderr bool) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	os.MkdirAll(filepath.Dir(logFile), 0o755)
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if toStderr {
			slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
			return slog.New(stderrHandler), func() error { return nil }
		}
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(fileHandler)
	if toStderr {
		logger = slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	}
	return logger, func() error { return file.Close() }
}
