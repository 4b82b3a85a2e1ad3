// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel maps a level name onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q, must be one of: debug, info, warn, error", s)
	}
}

// NewLogger builds a structured logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup installs the default logger. When File is set, or when the caller
// owns the terminal (the TUI), records go to a file instead of stderr.
// The returned closer releases the file.
func (l LogConfig) Setup(ownsTerminal bool) (io.Closer, error) {
	path := l.File
	if path == "" && ownsTerminal {
		dir, err := ConfigDir()
		if err != nil {
			return nopCloser{}, err
		}
		path = filepath.Join(dir, "chatsync.log")
	}

	if path == "" {
		slog.SetDefault(l.NewLogger(os.Stderr))
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nopCloser{}, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(l.NewLogger(f))
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
