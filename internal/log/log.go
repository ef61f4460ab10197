// Package log builds the slog loggers the server injects into its
// components. Every component takes a logger through its constructor and
// narrows it with With(); nothing logs through a package global.
//
// All output goes to stderr: in stdio transport mode stdout belongs to the
// protocol, and a stray log line there corrupts the session.
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	client := coze.NewClient(coze.Config{Logger: logger.With("component", "coze")})
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so call sites keep the full slog API without a
// wrapper interface.
type Logger = *slog.Logger

// Config selects the handler behavior.
type Config struct {
	// Level is the minimum level emitted. Zero value is slog.LevelInfo.
	Level slog.Level

	// JSON switches from the text handler to the JSON handler.
	JSON bool

	// AddSource annotates records with the emitting file and line.
	AddSource bool
}

// New builds a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter builds a logger writing to w. Tests pass a bytes.Buffer to
// inspect output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything. Test-only; production
// paths always want New or NewWithWriter.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
