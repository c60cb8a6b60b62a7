// cmd/feeds/feeds.go
package feeds

import (
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/config"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/passwall"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_cli"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	"github.com/spf13/cobra"
)

// FeedsCmd only configures the package feeds and signing key.
var FeedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Add the Passwall package feeds and signing key",
	Long: `Detect the OpenWrt release and architecture, trust the Passwall signing key
and append the Passwall feeds to the custom feed list. Feeds that are already
present are left alone. The feed list is restored if anything fails.`,
	Args: cobra.NoArgs,
	RunE: pw_cli.Wrap(func(rc *pw_io.RuntimeContext, cfg *config.Config, cmd *cobra.Command, args []string) error {
		if err := pw_cli.RequireRoot(); err != nil {
			return err
		}
		inst := passwall.New(rc, cfg)
		if err := inst.CheckDependencies(rc.Ctx); err != nil {
			return err
		}
		return inst.ConfigureFeeds(rc)
	}),
}
