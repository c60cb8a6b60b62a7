package passwall

import (
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/backup"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/feeds"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ConfigureFeeds trusts the Passwall signing key and adds the feeds for
// the running release. The feed list is backed up first and restored if
// the run fails.
func (i *Installer) ConfigureFeeds(rc *pw_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	rel, err := feeds.ParseRelease(i.cfg.ReleaseFile)
	if err != nil {
		return err
	}
	logger.Info("Detected OpenWrt release",
		zap.String("release", rel.Version),
		zap.String("arch", rel.Arch),
		zap.Bool("snapshot", rel.IsSnapshot()))

	lines := feeds.Lines(i.cfg.FeedBaseURL, rel)
	if i.cfg.DryRun {
		for _, line := range lines {
			logger.Info("Dry run mode - feed not written", zap.String("feed", line), zap.String("file", i.cfg.FeedsFile))
		}
		return nil
	}

	guard, err := backup.Acquire(i.cfg.FeedsFile, rc.Log)
	if err != nil {
		return err
	}
	guard.Register(rc.Cleanup)
	i.feedGuard = guard

	dir, err := rc.TempDir()
	if err != nil {
		return err
	}
	keyPath, err := i.deps.Keys.Fetch(rc.Ctx, i.cfg.KeyURL, dir)
	if err != nil {
		return err
	}
	if err := feeds.AddKey(rc.Ctx, i.deps.Runner, keyPath); err != nil {
		return err
	}

	added, existing, err := feeds.Append(i.cfg.FeedsFile, lines)
	if err != nil {
		return err
	}
	for _, line := range existing {
		logger.Warn("Feed already configured", zap.String("feed", line))
		pw_err.PrintWarning(rc.Stderr, "feed already configured, not adding again: %s", line)
	}
	for _, line := range added {
		logger.Info("Feed added", zap.String("feed", line), zap.String("file", i.cfg.FeedsFile))
	}
	return nil
}
