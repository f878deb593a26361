// Package logging builds the structured loggers used across tasksync and
// manages the per-run log files written while the terminal UI owns the screen.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasksync/internal/config"
)

// Options configures a logger.
type Options struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	ReportCaller    bool
	Prefix          string
}

// DefaultOptions returns options for a plain info-level text logger.
func DefaultOptions() Options {
	return Options{
		Level:     log.InfoLevel,
		Formatter: log.TextFormatter,
	}
}

// New creates a logger writing to w. A nil w writes to stderr.
func New(w io.Writer, opts Options) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Prefix:          opts.Prefix,
	})
}

// OptionsFromConfig maps the logging keys of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		Level:           ParseLevel(cfg.LogLevel),
		Formatter:       ParseFormatter(cfg.LogFormat),
		ReportTimestamp: cfg.LogTimestamps,
		ReportCaller:    cfg.LogCaller,
	}
}

// FromConfig creates a logger writing to w configured from cfg.
func FromConfig(w io.Writer, cfg *config.Config, prefix string) *log.Logger {
	opts := OptionsFromConfig(cfg)
	opts.Prefix = prefix
	return New(w, opts)
}

// ParseLevel parses a string log level to a charmbracelet/log Level.
// Unknown levels fall back to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// ParseFormatter parses a string formatter name to a charmbracelet/log Formatter.
func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
