package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the process logger is built. It is filled once
// from flags and configuration and never mutated afterwards.
type Options struct {
	// Verbose forces debug level regardless of Level.
	Verbose bool
	// Level is a LOG_LEVEL style name ("debug", "warn", ...).
	Level string
	// FilePath enables an additional JSON log file when non-empty.
	FilePath string
	// Console receives human readable output. Defaults to os.Stderr so
	// stdout stays usable for machine readable output.
	Console io.Writer
}

func (o Options) level() zapcore.Level {
	if o.Verbose {
		return zapcore.DebugLevel
	}
	return ParseLogLevel(o.Level)
}

// New builds a zap logger with a console core and, if requested, a JSON
// file core. A log file that cannot be opened is reported on the console
// and skipped rather than failing the run.
func New(opts Options) *zap.Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level := zap.NewAtomicLevelAt(opts.level())

	consoleCore := newTerminalConsoleCore(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
			zapcore.Lock(zapcore.AddSync(console)),
			level,
		),
		console,
	)

	cores := []zapcore.Core{consoleCore}
	if opts.FilePath != "" {
		writer, err := GetLogFileWriter(opts.FilePath)
		if err != nil {
			_, _ = fmt.Fprintf(console, "log file disabled: %v\n", err)
		} else {
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(DefaultFileEncoderConfig()),
				writer,
				zapcore.DebugLevel,
			))
		}
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Initialize builds the logger, installs it as the zap and otelzap global
// and returns a function that flushes and restores the previous globals.
func Initialize(opts Options) (*otelzap.Logger, func()) {
	base := New(opts)
	log := otelzap.New(base, otelzap.WithMinLevel(opts.level()))

	undoZap := zap.ReplaceGlobals(base)
	undoOtel := otelzap.ReplaceGlobals(log)

	return log, func() {
		_ = base.Sync()
		undoOtel()
		undoZap()
	}
}
