/* cmd/root.go */

package cmd

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/pwinstall/cmd/feeds"
	"github.com/CodeMonkeyCybersecurity/pwinstall/cmd/plan"
	"github.com/CodeMonkeyCybersecurity/pwinstall/cmd/version"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/config"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/passwall"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_cli"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	"github.com/spf13/cobra"
)

// RootCmd installs Passwall when run without a subcommand.
var RootCmd = &cobra.Command{
	Use:   "pwinstall",
	Short: "Install or upgrade Passwall on an OpenWrt router",
	Long: `pwinstall adds the Passwall package feeds, compares installed and available
package versions, checks free space on the overlay and installs what is
missing or outdated. The feed list is restored if anything fails.

Settings come from /etc/pwinstall.yaml (or --config), PWINSTALL_* environment
variables and flags, in increasing order of precedence.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: pw_cli.Wrap(func(rc *pw_io.RuntimeContext, cfg *config.Config, cmd *cobra.Command, args []string) error {
		if err := pw_cli.RequireRoot(); err != nil {
			return err
		}
		return passwall.New(rc, cfg).Run(rc)
	}),
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable debug output")
	flags.StringP("config", "c", "", "Config file (default "+config.DefaultConfigFile+" if present)")
	flags.BoolP("yes", "y", false, "Accept the default answer of every prompt")
	flags.Bool("dry-run", false, "Show what would change without changing anything")
	flags.String("mount-point", "", "Filesystem to check for free space (default /overlay)")
	flags.StringSlice("packages", nil, "Packages to install, in order (default: the Passwall set)")
	flags.String("log-file", "", "Also write a JSON log to this file")
	flags.String("trace-file", "", "Append OpenTelemetry spans to this file as JSON lines")
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	for _, subCmd := range []*cobra.Command{
		plan.PlanCmd,
		feeds.FeedsCmd,
		version.VersionCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute runs the CLI and exits with the status derived from the error.
func Execute() {
	RegisterCommands()

	err := RootCmd.Execute()
	if err != nil {
		verbose, _ := RootCmd.PersistentFlags().GetBool("verbose")
		pw_err.PrintError(RootCmd.ErrOrStderr(), verbose, err)
	}
	os.Exit(pw_err.GetExitCode(err))
}
