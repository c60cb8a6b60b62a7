package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/budget"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pwinstall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.BoolP("yes", "y", false, "")
	fs.BoolP("verbose", "v", false, "")
	fs.Bool("dry-run", false, "")
	fs.String("mount-point", "/overlay", "")
	fs.StringSlice("packages", nil, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, "{}\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPackages, cfg.Packages)
	assert.Equal(t, "/etc/opkg/customfeeds.conf", cfg.FeedsFile)
	assert.Equal(t, "/overlay", cfg.MountPoint)
	assert.Equal(t, budget.DefaultBuffer, cfg.Buffer)
	assert.False(t, cfg.AssumeYes)
}

func TestLoadFileThenFlags(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
packages:
  - luci-app-passwall
  - xray-core
mount_point: /mnt/data
buffer: 1024
`)
	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--yes", "--mount-point", "/overlay"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"luci-app-passwall", "xray-core"}, cfg.Packages)
	assert.Equal(t, int64(1024), cfg.Buffer)
	assert.Equal(t, "/overlay", cfg.MountPoint, "flag beats file")
	assert.True(t, cfg.AssumeYes)
}

func TestLoadUnchangedFlagDoesNotOverrideFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "mount_point: /mnt/data\n")
	fs := newFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/data", cfg.MountPoint)
}

func TestLoadPackagesFlag(t *testing.T) {
	t.Parallel()
	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--packages", "xray-core,sing-box"}))

	cfg, err := Load(writeConfig(t, "{}\n"), fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"xray-core", "sing-box"}, cfg.Packages)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("PWINSTALL_PACKAGES", "xray-core,sing-box")
	t.Setenv("PWINSTALL_ASSUME_YES", "true")

	cfg, err := Load(writeConfig(t, "{}\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"xray-core", "sing-box"}, cfg.Packages)
	assert.True(t, cfg.AssumeYes)
}

func TestLoadEnvironmentSplitsOnWhitespace(t *testing.T) {
	t.Setenv("PWINSTALL_PACKAGES", "xray-core sing-box,\thysteria")

	cfg, err := Load(writeConfig(t, "{}\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"xray-core", "sing-box", "hysteria"}, cfg.Packages)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "bad package name", content: "packages: [\"xray core; rm -rf /\"]\n", field: "Packages[0]"},
		{name: "list entry is not split", content: "packages: [\"xray-core,sing-box\"]\n", field: "Packages[0]"},
		{name: "relative feeds file", content: "feeds_file: customfeeds.conf\n", field: "FeedsFile"},
		{name: "bad url", content: "key_url: not a url\n", field: "KeyURL"},
		{name: "negative buffer", content: "buffer: -1\n", field: "Buffer"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.True(t, pw_err.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.True(t, pw_err.IsConfigurationError(err))
	assert.Equal(t, 1, pw_err.GetExitCode(err))
}
