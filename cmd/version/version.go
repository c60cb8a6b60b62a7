// cmd/version/version.go
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X .../cmd/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
)

// VersionCmd prints build information.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pwinstall version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "pwinstall %s (%s) %s/%s\n", Version, Commit, runtime.GOOS, runtime.GOARCH)
		return err
	},
}
