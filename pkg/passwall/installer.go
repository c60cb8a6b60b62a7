// Package passwall sequences an installer run: feeds, plan, space gate,
// confirmation, installation and the reboot prompt.
package passwall

import (
	"context"
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/backup"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/budget"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/config"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/packages"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/storage"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// RequiredTools must be on PATH before anything is changed.
var RequiredTools = []string{"opkg", "opkg-key"}

// PackageManager is the subset of opkg the installer drives.
type PackageManager interface {
	packages.Querier
	Update(ctx context.Context) error
	Install(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	IsInstalled(ctx context.Context, name string) (bool, error)
}

// Prompts asks the user.
type Prompts interface {
	YesNo(ctx context.Context, question, def string) (bool, error)
	Select(ctx context.Context, prompt, def string, options []interaction.MenuOption) (string, error)
}

// KeyFetcher downloads the feed signing key into a directory.
type KeyFetcher interface {
	Fetch(ctx context.Context, url, dir string) (string, error)
}

// Deps are the collaborators of an Installer.
type Deps struct {
	Packages PackageManager
	Storage  storage.Querier
	Prompts  Prompts
	Keys     KeyFetcher
	// Runner executes opkg-key and reboot.
	Runner execute.Runner
	// LookPath resolves required tools; defaults to execute.LookPath.
	LookPath func(string) error
	// ConfigDir holds the UCI files; defaults to /etc/config.
	ConfigDir string
}

// Installer runs the Passwall installation against one router.
type Installer struct {
	cfg  *config.Config
	deps Deps

	feedGuard *backup.Guard
}

// NewInstaller wires an installer. cfg must already be validated.
func NewInstaller(cfg *config.Config, deps Deps) *Installer {
	if deps.LookPath == nil {
		deps.LookPath = execute.LookPath
	}
	if deps.ConfigDir == "" {
		deps.ConfigDir = DefaultConfigDir
	}
	return &Installer{cfg: cfg, deps: deps}
}

// Plan is the outcome of a reconciliation pass plus the space verdict.
type Plan struct {
	Result     *packages.Result
	Space      budget.Report
	MountPoint string
}

// Run performs a full installation.
func (i *Installer) Run(rc *pw_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	if err := i.CheckDependencies(rc.Ctx); err != nil {
		return err
	}

	addFeeds, err := i.confirm(rc.Ctx, "Add the Passwall package feeds to "+i.cfg.FeedsFile+"?", "Y")
	if err != nil {
		return err
	}
	if addFeeds {
		if err := i.ConfigureFeeds(rc); err != nil {
			return err
		}
	} else {
		logger.Info("Skipping feed setup at user request")
	}

	plan, err := i.Plan(rc)
	if err != nil {
		return err
	}
	if err := plan.Result.Render(rc.Stdout); err != nil {
		return cerr.Wrap(err, "render plan")
	}

	if plan.Result.UpToDate() {
		logger.Info("terminal prompt: All packages are already up to date, nothing to do")
		return nil
	}

	logger.Info("Storage check", zap.String("mount_point", plan.MountPoint), zap.String("verdict", plan.Space.String()))
	if err := plan.Space.Err(); err != nil {
		return cerr.WithStack(err)
	}

	proceed, err := i.confirm(rc.Ctx, fmt.Sprintf("Install %d package(s)?", len(plan.Result.Pending())), "Y")
	if err != nil {
		return err
	}
	if !proceed {
		return pw_err.NewUserCancelledError("install")
	}

	for _, entry := range plan.Result.Pending() {
		if err := i.installEntry(rc, entry); err != nil {
			return err
		}
	}
	logger.Info("terminal prompt: Passwall installation complete")

	if i.feedGuard != nil {
		i.feedGuard.Commit()
	}
	return i.offerReboot(rc)
}

// CheckDependencies reports every missing tool at once.
func (i *Installer) CheckDependencies(ctx context.Context) error {
	var missing *multierror.Error
	var names []string
	for _, tool := range RequiredTools {
		if err := i.deps.LookPath(tool); err != nil {
			missing = multierror.Append(missing, cerr.Wrapf(err, "%s not found", tool))
			names = append(names, tool)
		}
	}
	if missing == nil {
		otelzap.Ctx(ctx).Debug("All required tools present", zap.Strings("tools", RequiredTools))
		return nil
	}
	return pw_err.NewDependencyError(missing.ErrorOrNil(),
		fmt.Sprintf("make sure %s is available (this installer only runs on OpenWrt)", strings.Join(names, ", ")))
}

// Plan refreshes the package lists, reconciles the configured packages and
// measures free space. It changes nothing on the router besides the
// package list cache.
func (i *Installer) Plan(rc *pw_io.RuntimeContext) (*Plan, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if err := i.deps.Packages.Update(rc.Ctx); err != nil {
		return nil, err
	}

	logger.Info("Reconciling packages", zap.Strings("packages", i.cfg.Packages))
	result, err := packages.Reconcile(rc.Ctx, i.cfg.Packages, i.deps.Packages)
	if err != nil {
		return nil, err
	}

	usage, err := i.deps.Storage.FreeBlocks(rc.Ctx, i.cfg.MountPoint)
	if err != nil {
		return nil, err
	}
	report := budget.Check(result.TotalSize(), budget.BlocksToBytes(usage.FreeBlocks), i.cfg.Buffer)

	return &Plan{Result: result, Space: report, MountPoint: usage.MountPoint}, nil
}

// confirm asks a yes/no question, or takes def when running unattended.
func (i *Installer) confirm(ctx context.Context, question, def string) (bool, error) {
	if i.cfg.AssumeYes {
		answer := strings.EqualFold(def, "Y")
		otelzap.Ctx(ctx).Info("Unattended, using default answer", zap.String("question", question), zap.Bool("answer", answer))
		return answer, nil
	}
	return i.deps.Prompts.YesNo(ctx, question, def)
}

func (i *Installer) installEntry(rc *pw_io.RuntimeContext, entry packages.Entry) error {
	logger := otelzap.Ctx(rc.Ctx)
	logger.Info(fmt.Sprintf("terminal prompt: %s %s %s", actionVerb(entry.Action), entry.Name, entry.Version))
	logger.Debug("Package action",
		zap.String("package", entry.Name),
		zap.String("action", string(entry.Action)),
		zap.String("installed", entry.Installed))

	if entry.Name == DnsmasqFull {
		return i.installDnsmasqFull(rc)
	}
	return i.deps.Packages.Install(rc.Ctx, entry.Name)
}

func actionVerb(a packages.Action) string {
	if a == packages.ActionUpdate {
		return "Updating"
	}
	return "Installing"
}

func (i *Installer) offerReboot(rc *pw_io.RuntimeContext) error {
	reboot, err := i.confirm(rc.Ctx, "Reboot now to apply the changes?", "N")
	if err != nil {
		return err
	}
	if !reboot {
		otelzap.Ctx(rc.Ctx).Info("terminal prompt: Reboot the router later to finish the setup")
		return nil
	}
	otelzap.Ctx(rc.Ctx).Info("terminal prompt: Rebooting")
	_, err = i.deps.Runner.Run(rc.Ctx, execute.Options{Command: "reboot", Mutates: true})
	return err
}
