package passwall

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	// DnsmasqFull conflicts with the stock dnsmasq, which must go first.
	DnsmasqFull = "dnsmasq-full"
	dnsmasq     = "dnsmasq"

	// DefaultConfigDir is where UCI keeps its configuration files.
	DefaultConfigDir = "/etc/config"

	dhcpKeep    = "keep"
	dhcpReplace = "replace"
)

// installDnsmasqFull swaps dnsmasq for dnsmasq-full and settles the dhcp
// config that opkg leaves next to the live one.
func (i *Installer) installDnsmasqFull(rc *pw_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)
	pm := i.deps.Packages

	stock, err := pm.IsInstalled(rc.Ctx, dnsmasq)
	if err != nil {
		return err
	}
	if stock {
		logger.Info("Removing dnsmasq to make room for dnsmasq-full")
		if err := pm.Remove(rc.Ctx, dnsmasq); err != nil {
			return err
		}
	}

	if err := pm.Install(rc.Ctx, DnsmasqFull); err != nil {
		if stock {
			if restoreErr := pm.Install(rc.Ctx, dnsmasq); restoreErr != nil {
				logger.Error("Could not reinstall dnsmasq, DNS and DHCP are down",
					zap.Error(restoreErr))
				return cerr.WithHint(err, "reinstall dnsmasq by hand: opkg install dnsmasq")
			}
			logger.Warn("dnsmasq-full failed to install, dnsmasq reinstalled")
		}
		return err
	}

	return i.reconcileDHCPConfig(rc)
}

// reconcileDHCPConfig resolves /etc/config/dhcp-opkg, which opkg writes
// when the package default differs from a modified live config.
func (i *Installer) reconcileDHCPConfig(rc *pw_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)
	live := filepath.Join(i.deps.ConfigDir, "dhcp")
	shipped := live + "-opkg"

	if _, err := os.Stat(shipped); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return pw_err.NewFilesystemError("cannot stat "+shipped, err)
	}

	if i.cfg.DryRun {
		action := "ask whether to keep it or replace it with " + shipped
		if i.cfg.AssumeYes {
			action = "keep it and remove " + shipped
		}
		logger.Info("terminal prompt: Dry run: found "+shipped+", would "+action,
			zap.String("live", live))
		return nil
	}

	options, err := interaction.ParseMenuOptions(
		[2]string{"1:" + dhcpKeep, "Keep the current " + live},
		[2]string{"2:" + dhcpReplace, "Use the default shipped with dnsmasq-full"},
	)
	if err != nil {
		return err
	}

	choice := dhcpKeep
	if !i.cfg.AssumeYes {
		choice, err = i.deps.Prompts.Select(rc.Ctx,
			fmt.Sprintf("dnsmasq-full shipped a new %s. Which one should be used?", live), "1", options)
		if err != nil {
			return err
		}
	}

	switch choice {
	case dhcpReplace:
		if err := os.Rename(shipped, live); err != nil {
			return pw_err.NewFilesystemError("cannot replace "+live, err)
		}
		logger.Info("terminal prompt: Using the dhcp config shipped with dnsmasq-full")
	default:
		if err := os.Remove(shipped); err != nil {
			return pw_err.NewFilesystemError("cannot remove "+shipped, err)
		}
		logger.Info("Kept current dhcp config", zap.String("path", live))
	}
	return nil
}
