// pkg/pw_cli/wrap.go

package pw_cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/config"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunFunc is a command body with its runtime context and configuration.
type RunFunc func(rc *pw_io.RuntimeContext, cfg *config.Config, cmd *cobra.Command, args []string) error

// Wrap turns fn into a cobra RunE. It loads the configuration, builds the
// logger and tracer, cancels the context on SIGINT/SIGTERM, recovers panics and runs
// the cleanup stack exactly once with the final error.
func Wrap(fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.Load(configFile(cmd), cmd.Flags())
		if err != nil {
			return err
		}

		log, undo := logger.Initialize(logger.Options{
			Verbose:  cfg.Verbose,
			Level:    os.Getenv("LOG_LEVEL"),
			FilePath: cfg.LogFile,
			Console:  cmd.ErrOrStderr(),
		})
		defer undo()

		shutdown, err := telemetry.Init("pwinstall", cfg.TraceFile)
		if err != nil {
			log.Warn("Tracing disabled", zap.Error(err))
			shutdown, _ = telemetry.Init("pwinstall", "")
		}
		defer func() {
			if serr := shutdown(context.Background()); serr != nil {
				log.Warn("Failed to flush traces", zap.Error(serr))
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rc := pw_io.NewContext(ctx, cmd.Name(), log.Logger)
		rc.Verbose = cfg.Verbose
		rc.Stdout = cmd.OutOrStdout()
		rc.Stderr = cmd.ErrOrStderr()
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		rc.Log.Debug("Command starting",
			zap.Strings("args", args),
			zap.Strings("packages", cfg.Packages),
			zap.Bool("assume_yes", cfg.AssumeYes),
			zap.Bool("dry_run", cfg.DryRun))

		err = fn(rc, cfg, cmd, args)
		if err != nil && ctx.Err() != nil {
			return pw_err.NewInterruptedError(err)
		}
		if err != nil && !pw_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}

func configFile(cmd *cobra.Command) string {
	f := cmd.Flags().Lookup("config")
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// RequireRoot fails unless the process runs as root, which opkg needs.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return pw_err.NewValidationError("this command must be run as root",
			"log in to the router as root and run it again")
	}
	return nil
}
