// v1
// internal/logging/logging.go

// Package logging builds the service-wide slog logger writing to both
// stdout and the configured log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
)

// New returns the shared logger and a cleanup that flushes and closes the
// log file. The stdlib logger is redirected to the same sinks so stray
// log.Printf output is not lost.
func New(logPath string) (*slog.Logger, func(), error) {
	logPath = filepath.Clean(logPath)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, func() {}, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open log file: %w", err)
	}

	mw := io.MultiWriter(os.Stdout, f)
	lg := slog.New(slog.NewTextHandler(mw, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.SetOutput(mw)

	cleanup := func() {
		_ = f.Sync()
		_ = f.Close()
	}
	return lg, cleanup, nil
}
