package passwall

import (
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/config"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/feeds"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/opkg"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/storage"
)

// New wires an Installer to the live system: opkg, the mount table, the
// terminal and the network.
func New(rc *pw_io.RuntimeContext, cfg *config.Config) *Installer {
	runner := execute.NewRunner(rc.Log, cfg.DryRun)
	return NewInstaller(cfg, Deps{
		Packages: opkg.New(runner, rc.Stderr),
		Storage:  storage.NewDiskQuerier(),
		Prompts:  interaction.NewTerminalPrompter(rc.Log),
		Keys:     feeds.NewKeyFetcher(nil),
		Runner:   runner,
	})
}
