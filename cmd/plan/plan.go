// cmd/plan/plan.go
package plan

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/config"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/passwall"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_cli"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	"github.com/spf13/cobra"
)

// PlanCmd prints what an installation would do without doing it.
var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which packages would be installed or updated",
	Long: `Refresh the package lists, compare installed and available versions of the
configured packages and check free space. Nothing is installed.
Exits non-zero when a package is missing upstream or space is short.`,
	Args: cobra.NoArgs,
	RunE: pw_cli.Wrap(runPlan),
}

func init() {
	PlanCmd.Flags().StringP("output", "o", "table", "Output format: table or yaml")
}

func runPlan(rc *pw_io.RuntimeContext, cfg *config.Config, cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "yaml" {
		return pw_err.NewValidationError(fmt.Sprintf("unknown output format %q", output), "use --output table or --output yaml")
	}
	if err := pw_cli.RequireRoot(); err != nil {
		return err
	}

	p, err := passwall.New(rc, cfg).Plan(rc)
	if err != nil {
		return err
	}

	if output == "yaml" {
		if err := p.Result.WriteYAML(rc.Stdout); err != nil {
			return err
		}
	} else {
		if err := p.Result.Render(rc.Stdout); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(rc.Stdout, "Space on %s: %s\n", p.MountPoint, p.Space.String())
	}

	if p.Result.UpToDate() {
		return nil
	}
	return p.Space.Err()
}
