// pkg/pw_io/context.go

package pw_io

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/CodeMonkeyCybersecurity/pwinstall"

// RuntimeContext carries everything one installer run needs. It is built
// once per command invocation and passed down explicitly.
type RuntimeContext struct {
	Ctx        context.Context
	Log        *zap.Logger
	RunID      string
	Timestamp  time.Time
	Span       trace.Span
	Command    string
	Verbose    bool
	Attributes map[string]string

	// Stdout receives machine readable output (plans, versions).
	Stdout io.Writer
	// Stderr receives prompts, warnings and errors.
	Stderr io.Writer

	Cleanup *Cleanup

	tempDir string
}

// NewContext starts a span for cmdName and scopes log to the run.
func NewContext(parent context.Context, cmdName string, log *zap.Logger) *RuntimeContext {
	if parent == nil {
		parent = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	runID := uuid.New().String()[:8]

	ctx, span := otel.Tracer(tracerName).Start(parent, cmdName,
		trace.WithAttributes(attribute.String("run_id", runID)))

	scoped := log.With(
		zap.String("command", cmdName),
		zap.String("run_id", runID),
	)

	return &RuntimeContext{
		Ctx:        ctx,
		Log:        scoped,
		RunID:      runID,
		Timestamp:  time.Now(),
		Span:       span,
		Command:    cmdName,
		Attributes: make(map[string]string),
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Cleanup:    NewCleanup(scoped),
	}
}

// TempDir returns the run's scratch directory, creating it on first use.
// Removal is registered with the cleanup stack at creation time.
func (rc *RuntimeContext) TempDir() (string, error) {
	if rc.tempDir != "" {
		return rc.tempDir, nil
	}
	dir, err := os.MkdirTemp("", "pwinstall-"+rc.RunID+"-")
	if err != nil {
		return "", pw_err.NewFilesystemError("cannot create temporary directory", err)
	}
	rc.tempDir = dir
	rc.Cleanup.Register("remove temp dir", func(error) error {
		return os.RemoveAll(dir)
	})
	rc.Log.Debug("Temporary directory created", zap.String("path", dir))
	return dir, nil
}

// HandlePanic recovers panics, logs them, and converts to an error.
func (rc *RuntimeContext) HandlePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = cerr.AssertionFailedf("panic: %v", r)
		rc.Log.Error("Panic recovered", zap.Any("panic", r))
	}
}

// End runs the cleanup stack with the final outcome, logs it and closes
// the span. Cleanup failures are joined onto the returned error.
func (rc *RuntimeContext) End(errPtr *error) {
	defer rc.Span.End()

	if cleanupErr := rc.Cleanup.Run(*errPtr); cleanupErr != nil {
		if *errPtr == nil {
			*errPtr = cerr.Wrap(cleanupErr, "cleanup failed")
		} else {
			rc.Log.Error("Cleanup failed after error", zap.Error(cleanupErr))
		}
	}

	duration := time.Since(rc.Timestamp)
	err := *errPtr

	rc.Span.SetAttributes(
		attribute.Bool("success", err == nil),
		attribute.Int64("duration_ms", duration.Milliseconds()),
		attribute.String("error_category", classify(err)),
	)

	switch {
	case err == nil:
		rc.Log.Debug("Command completed", zap.Duration("duration", duration))
	case pw_err.IsExpectedUserError(err):
		rc.Log.Info("Command stopped by user", zap.Duration("duration", duration), zap.Error(err))
	default:
		rc.Span.SetStatus(codes.Error, err.Error())
		rc.Log.Debug("Command failed", zap.Duration("duration", duration), zap.Error(err))
	}
}

func classify(err error) string {
	if err == nil {
		return ""
	}
	return pw_err.CategoryOf(err).String()
}
