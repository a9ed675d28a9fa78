// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options control the logger.
type Options struct {
	Quiet   bool
	Verbose bool
	Format  string
}

// Level returns the level selected by the options. Verbose wins over quiet.
func (o Options) Level() slog.Level {
	if o.Verbose {
		return slog.LevelDebug
	}
	if o.Quiet {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level()}

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q, should be %q or %q", opts.Format, FormatText, FormatJSON)
	}
}

// Setup creates a logger and installs it as the default.
func Setup(w io.Writer, opts Options) error {
	logger, err := New(w, opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
