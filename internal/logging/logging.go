// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"kaggleelt/internal/config"
)

// Setup installs the default slog logger described by cfg. Output goes to w
// (stderr when nil); when cfg.File is set, JSON records are also appended to
// that file. The returned function closes the log file, if any.
func Setup(cfg config.LogConfig, w io.Writer) (func() error, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var primary slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		primary = slog.NewTextHandler(w, opts)
	case "json":
		primary = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	closeFn := func() error { return nil }
	handler := primary
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", cfg.File, err)
		}
		handler = slogmulti.Fanout(primary, slog.NewJSONHandler(f, opts))
		closeFn = f.Close
	}

	slog.SetDefault(slog.New(handler).With(slog.String("service", "kaggle-elt")))
	return closeFn, nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return l, nil
}
