// Package feeds detects the router release and writes the Passwall
// package feeds into the opkg feed list.
package feeds

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/joho/godotenv"
)

// DefaultReleaseFile is the OpenWrt release descriptor.
const DefaultReleaseFile = "/etc/openwrt_release"

// Release is the part of the release descriptor the feed paths depend on.
type Release struct {
	Version string // DISTRIB_RELEASE, e.g. 23.05.3 or SNAPSHOT
	Arch    string // DISTRIB_ARCH, e.g. aarch64_cortex-a53
	Target  string // DISTRIB_TARGET, informational
}

// ParseRelease reads the shell-style KEY='value' descriptor at path.
func ParseRelease(path string) (Release, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return Release{}, pw_err.NewFilesystemError(
			fmt.Sprintf("cannot read release file %s", path), err,
			"this installer only runs on OpenWrt")
	}

	r := Release{
		Version: strings.TrimSpace(env["DISTRIB_RELEASE"]),
		Arch:    strings.TrimSpace(env["DISTRIB_ARCH"]),
		Target:  strings.TrimSpace(env["DISTRIB_TARGET"]),
	}
	if r.Version == "" || r.Arch == "" {
		return Release{}, pw_err.NewConfigurationErrorf(
			"release file %s lacks DISTRIB_RELEASE or DISTRIB_ARCH", path)
	}
	return r, nil
}

// IsSnapshot reports whether the router runs a development snapshot.
func (r Release) IsSnapshot() bool {
	return strings.EqualFold(r.Version, "SNAPSHOT") || strings.Contains(r.Version, "SNAPSHOT")
}

// Branch is the major.minor release series ("23.05"), or "" for
// snapshots.
func (r Release) Branch() string {
	if r.IsSnapshot() {
		return ""
	}
	parts := strings.SplitN(r.Version, ".", 3)
	if len(parts) < 2 {
		return r.Version
	}
	return parts[0] + "." + parts[1]
}
