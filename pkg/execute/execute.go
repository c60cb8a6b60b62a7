// pkg/execute/execute.go

// Package execute runs external tools (opkg, opkg-key, reboot) with
// structured logging. Commands are always exec'd directly; no shell.
package execute

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Minute

// Options describes one command invocation.
type Options struct {
	Command string
	Args    []string
	Dir     string
	// Timeout bounds the run; zero means defaultTimeout.
	Timeout time.Duration
	// Mutates marks commands that change the system; dry-run skips them.
	Mutates bool
	// Stream additionally copies the tool's output to this writer while
	// it runs (package downloads are slow on routers).
	Stream io.Writer
}

// String renders the command line for logs and errors.
func (o Options) String() string {
	return buildCommandString(o.Command, o.Args...)
}

// Runner runs a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, opts Options) (string, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	Logger *zap.Logger
	// DryRun logs mutating commands instead of running them. Queries
	// still run so plans stay accurate.
	DryRun bool
}

// NewRunner returns an ExecRunner logging through log.
func NewRunner(log *zap.Logger, dryRun bool) *ExecRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecRunner{Logger: log, DryRun: dryRun}
}

// Run executes the command. A non-zero exit is returned as an
// ExternalToolError carrying a summary of the output.
func (r *ExecRunner) Run(ctx context.Context, opts Options) (string, error) {
	logger := r.Logger
	cmdStr := opts.String()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeoutOr(opts.Timeout))
	defer cancel()

	ctx, span := otel.Tracer("pwinstall/execute").Start(ctx, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)

	if r.DryRun && opts.Mutates {
		logger.Info("Dry run mode - command not executed", zap.String("command", cmdStr))
		return "", nil
	}

	logger.Debug("Starting execution", zap.String("command", cmdStr))

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	var buf bytes.Buffer
	var writer io.Writer = &buf
	if opts.Stream != nil {
		writer = io.MultiWriter(opts.Stream, &buf)
	}
	cmd.Stdout = writer
	cmd.Stderr = writer

	start := time.Now()
	err := cmd.Run()
	output := buf.String()

	if err != nil {
		span.RecordError(err)
		if ctxErr := ctx.Err(); ctxErr != nil && cerr.Is(ctxErr, context.Canceled) {
			return output, ctxErr
		}
		logger.Error("Execution failed",
			zap.String("command", cmdStr),
			zap.Duration("duration", time.Since(start)),
			zap.String("summary", pw_err.ExtractSummary(output, 2)),
			zap.Error(err))
		return output, cerr.WithStack(pw_err.NewExternalToolError(cmdStr, output, err))
	}

	logger.Debug("Execution succeeded",
		zap.String("command", cmdStr),
		zap.Duration("duration", time.Since(start)))
	return output, nil
}

// LookPath reports whether name resolves on PATH.
func LookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}
