package passwall

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/budget"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/config"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/packages"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const originalFeeds = "# add your custom package feeds here\n"

type fakePM struct {
	installed  map[string]string
	candidates map[string]packages.Query
	fail       map[string]error
	calls      []string
}

func (f *fakePM) Query(_ context.Context, name string) (packages.Query, error) {
	q := f.candidates[name]
	q.Name = name
	q.Installed = f.installed[name]
	return q, nil
}

func (f *fakePM) Update(context.Context) error {
	f.calls = append(f.calls, "update")
	return nil
}

func (f *fakePM) Install(_ context.Context, name string) error {
	f.calls = append(f.calls, "install "+name)
	if err := f.fail[name]; err != nil {
		return err
	}
	f.installed[name] = f.candidates[name].Candidate
	return nil
}

func (f *fakePM) Remove(_ context.Context, name string) error {
	f.calls = append(f.calls, "remove "+name)
	delete(f.installed, name)
	return nil
}

func (f *fakePM) IsInstalled(_ context.Context, name string) (bool, error) {
	return f.installed[name] != "", nil
}

type fakeStorage struct{ blocks int64 }

func (f fakeStorage) FreeBlocks(_ context.Context, mountPoint string) (storage.Usage, error) {
	return storage.Usage{MountPoint: mountPoint, FreeBlocks: f.blocks}, nil
}

type fakeKeys struct{}

func (fakeKeys) Fetch(_ context.Context, _ string, dir string) (string, error) {
	path := filepath.Join(dir, "passwall.pub")
	return path, os.WriteFile(path, []byte("untrusted comment: test\n"), 0o644)
}

type recordingRunner struct{ calls []string }

func (r *recordingRunner) Run(_ context.Context, opts execute.Options) (string, error) {
	r.calls = append(r.calls, opts.Command+" "+strings.Join(opts.Args, " "))
	return "", nil
}

type harness struct {
	inst      *Installer
	pm        *fakePM
	runner    *recordingRunner
	rc        *pw_io.RuntimeContext
	prompts   *bytes.Buffer
	stdout    *bytes.Buffer
	feedsFile string
	configDir string
}

func newHarness(t *testing.T, input string, freeBlocks int64, mutate func(*config.Config)) *harness {
	t.Helper()
	dir := t.TempDir()

	release := filepath.Join(dir, "openwrt_release")
	require.NoError(t, os.WriteFile(release, []byte("DISTRIB_RELEASE='23.05.3'\nDISTRIB_ARCH='x86_64'\n"), 0o644))
	feedsFile := filepath.Join(dir, "customfeeds.conf")
	require.NoError(t, os.WriteFile(feedsFile, []byte(originalFeeds), 0o644))
	configDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	cfg := &config.Config{
		Packages:    []string{"luci-app-passwall", "xray-core"},
		FeedsFile:   feedsFile,
		FeedBaseURL: "https://example.org/passwall",
		KeyURL:      "https://example.org/passwall/passwall.pub",
		ReleaseFile: release,
		MountPoint:  "/overlay",
		Buffer:      budget.DefaultBuffer,
	}
	if mutate != nil {
		mutate(cfg)
	}

	pm := &fakePM{
		installed: map[string]string{"dnsmasq": "2.89-4"},
		candidates: map[string]packages.Query{
			"luci-app-passwall": {Candidate: "4.77-1", Size: 100 * 1024},
			"xray-core":         {Candidate: "1.8.24-1", Size: 8 * 1024 * 1024},
			"dnsmasq-full":      {Candidate: "2.90-2", Size: 200 * 1024},
			"dnsmasq":           {Candidate: "2.90-2", Size: 100 * 1024},
		},
		fail: map[string]error{},
	}
	runner := &recordingRunner{}
	prompts := &bytes.Buffer{}
	stdout := &bytes.Buffer{}

	rc := pw_io.NewContext(context.Background(), "install", zaptest.NewLogger(t))
	rc.Stdout = stdout
	rc.Stderr = prompts

	inst := NewInstaller(cfg, Deps{
		Packages:  pm,
		Storage:   fakeStorage{blocks: freeBlocks},
		Prompts:   interaction.NewPrompter(strings.NewReader(input), prompts),
		Keys:      fakeKeys{},
		Runner:    runner,
		LookPath:  func(string) error { return nil },
		ConfigDir: configDir,
	})
	return &harness{
		inst: inst, pm: pm, runner: runner, rc: rc,
		prompts: prompts, stdout: stdout,
		feedsFile: feedsFile, configDir: configDir,
	}
}

// run executes Run and the end-of-run cleanup the way the CLI does.
func (h *harness) run() (err error) {
	defer h.rc.End(&err)
	return h.inst.Run(h.rc)
}

func (h *harness) feeds(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.feedsFile)
	require.NoError(t, err)
	return string(data)
}

const plenty = 100 * 1024

func TestRunInstallsPendingPackages(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "\n\n\n", plenty, nil)

	require.NoError(t, h.run())

	assert.Equal(t, []string{"update", "install luci-app-passwall", "install xray-core"}, h.pm.calls)
	assert.Equal(t, []string{"opkg-key add " + filepath.Join(mustTempDirOf(t, h.runner), "passwall.pub")}, h.runner.calls)
	assert.Contains(t, h.feeds(t), "src/gz passwall2 https://example.org/passwall/releases/packages-23.05/x86_64/passwall2")
	assert.Contains(t, h.stdout.String(), "2 to install")
	assert.Contains(t, h.prompts.String(), "Reboot now to apply the changes? [y/N]")
}

// mustTempDirOf recovers the temp dir from the opkg-key call; the
// directory itself is gone once the run ended.
func mustTempDirOf(t *testing.T, r *recordingRunner) string {
	t.Helper()
	require.NotEmpty(t, r.calls)
	path := strings.TrimPrefix(r.calls[0], "opkg-key add ")
	assert.NoDirExists(t, filepath.Dir(path))
	return filepath.Dir(path)
}

func TestRunSecondPassIsUpToDate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "\n\n\n", plenty, nil)
	require.NoError(t, h.run())

	h2 := newHarness(t, "n\n", plenty, nil)
	h2.pm.installed = h.pm.installed
	require.NoError(t, h2.run())

	assert.Equal(t, []string{"update"}, h2.pm.calls)
	assert.Contains(t, h2.stdout.String(), "0 to install, 0 to update, 2 up to date")
	assert.NotContains(t, h2.prompts.String(), "Install ")
}

func TestRunInsufficientSpaceAbortsAndRestoresFeeds(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "\n\n", 100, nil)

	err := h.run()
	var space *pw_err.InsufficientSpaceError
	require.ErrorAs(t, err, &space)
	assert.Equal(t, int64(100*1024+8*1024*1024)+budget.DefaultBuffer-100*1024, space.Shortfall())
	assert.Equal(t, 1, pw_err.GetExitCode(err))

	assert.Equal(t, []string{"update"}, h.pm.calls, "nothing installed")
	assert.Equal(t, originalFeeds, h.feeds(t), "feed list restored")
}

func TestRunDeclinedConfirmationIsCancellation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "\nn\n", plenty, nil)

	err := h.run()
	require.Error(t, err)
	assert.Equal(t, pw_err.CategoryUser, pw_err.CategoryOf(err))
	assert.Equal(t, 0, pw_err.GetExitCode(err))
	assert.Equal(t, []string{"update"}, h.pm.calls)
}

func TestRunEndOfInputAtConfirmationCancels(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "y\n", plenty, nil)

	err := h.run()
	assert.Equal(t, pw_err.CategoryUser, pw_err.CategoryOf(err))
	assert.Equal(t, 0, pw_err.GetExitCode(err))
}

func TestRunSkipFeeds(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "n\n\n\n", plenty, nil)

	require.NoError(t, h.run())
	assert.Equal(t, originalFeeds, h.feeds(t))
	assert.Empty(t, h.runner.calls)
}

func TestRunInstallFailureRestoresFeeds(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "\n\n", plenty, nil)
	boom := pw_err.NewExternalToolError("opkg install xray-core", " * Unknown package xray-core.", errors.New("exit status 255"))
	h.pm.fail["xray-core"] = boom

	err := h.run()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, pw_err.CategoryExternal, pw_err.CategoryOf(err))
	assert.Equal(t, originalFeeds, h.feeds(t))
}

func TestRunPackageNotFoundAborts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "\n", plenty, func(c *config.Config) {
		c.Packages = []string{"luci-app-passwall", "no-such-package", "xray-core"}
	})

	err := h.run()
	var notFound *pw_err.PackageNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "no-such-package", notFound.Package)
	assert.Equal(t, []string{"update"}, h.pm.calls)
}

func TestRunMissingDependencies(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "", plenty, nil)
	h.inst.deps.LookPath = func(name string) error { return errors.New("executable file not found in $PATH") }

	err := h.run()
	require.Error(t, err)
	assert.Equal(t, pw_err.CategoryDependency, pw_err.CategoryOf(err))
	assert.Contains(t, err.Error(), "opkg not found")
	assert.Contains(t, err.Error(), "opkg-key not found")
	assert.Empty(t, h.pm.calls)
}

func TestRunAssumeYes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "", plenty, func(c *config.Config) { c.AssumeYes = true })

	require.NoError(t, h.run())
	assert.Equal(t, []string{"update", "install luci-app-passwall", "install xray-core"}, h.pm.calls)
	assert.Empty(t, h.prompts.String())
	for _, call := range h.runner.calls {
		assert.NotEqual(t, "reboot ", call)
	}
}

func TestRunReboot(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "\n\ny\n", plenty, nil)

	require.NoError(t, h.run())
	assert.Equal(t, "reboot ", h.runner.calls[len(h.runner.calls)-1])
	assert.Contains(t, h.feeds(t), "passwall_luci", "feeds committed before reboot")
}

func TestRunDnsmasqFull(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		choice   string
		wantDHCP string
	}{
		{name: "keep current", choice: "1", wantDHCP: "live"},
		{name: "default keeps current", choice: "", wantDHCP: "live"},
		{name: "replace", choice: "2", wantDHCP: "shipped"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, "n\n\n"+tt.choice+"\n\n", plenty, func(c *config.Config) {
				c.Packages = []string{"dnsmasq-full"}
			})
			live := filepath.Join(h.configDir, "dhcp")
			require.NoError(t, os.WriteFile(live, []byte("live"), 0o644))
			require.NoError(t, os.WriteFile(live+"-opkg", []byte("shipped"), 0o644))

			require.NoError(t, h.run())
			assert.Equal(t, []string{"update", "remove dnsmasq", "install dnsmasq-full"}, h.pm.calls)

			data, err := os.ReadFile(live)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDHCP, string(data))
			assert.NoFileExists(t, live+"-opkg")
			assert.Contains(t, h.prompts.String(), "[2] Use the default shipped with dnsmasq-full")
		})
	}
}

func TestRunDnsmasqFullDryRunLeavesDHCPConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     string
		assumeYes bool
	}{
		{name: "interactive", input: "\n\n\n"},
		{name: "assume yes", assumeYes: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, tt.input, plenty, func(c *config.Config) {
				c.DryRun = true
				c.AssumeYes = tt.assumeYes
				c.Packages = []string{"dnsmasq-full"}
			})
			live := filepath.Join(h.configDir, "dhcp")
			require.NoError(t, os.WriteFile(live, []byte("live"), 0o644))
			require.NoError(t, os.WriteFile(live+"-opkg", []byte("shipped"), 0o644))

			require.NoError(t, h.run())

			data, err := os.ReadFile(live)
			require.NoError(t, err)
			assert.Equal(t, "live", string(data))
			shipped, err := os.ReadFile(live + "-opkg")
			require.NoError(t, err)
			assert.Equal(t, "shipped", string(shipped))
			assert.NotContains(t, h.prompts.String(), "Use the default shipped with dnsmasq-full")
			assert.Equal(t, originalFeeds, h.feeds(t))
		})
	}
}

func TestRunDnsmasqFullFailureReinstallsDnsmasq(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "n\n\n", plenty, func(c *config.Config) {
		c.Packages = []string{"dnsmasq-full"}
	})
	h.pm.fail["dnsmasq-full"] = errors.New("conflicting files")

	err := h.run()
	require.Error(t, err)
	assert.Equal(t, []string{"update", "remove dnsmasq", "install dnsmasq-full", "install dnsmasq"}, h.pm.calls)
	ok, _ := h.pm.IsInstalled(context.Background(), "dnsmasq")
	assert.True(t, ok)
}

func TestPlanIsReadOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "", plenty, nil)

	plan, err := h.inst.Plan(h.rc)
	require.NoError(t, err)
	assert.Equal(t, int64(100*1024+8*1024*1024), plan.Result.TotalSize())
	assert.True(t, plan.Space.Pass)
	assert.Equal(t, "/overlay", plan.MountPoint)
	assert.Equal(t, []string{"update"}, h.pm.calls)
	assert.Equal(t, originalFeeds, h.feeds(t))
}

func TestConfigureFeedsIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "", plenty, nil)
	require.NoError(t, h.inst.ConfigureFeeds(h.rc))
	first := h.feeds(t)

	require.NoError(t, h.inst.ConfigureFeeds(h.rc))
	assert.Equal(t, first, h.feeds(t))
	assert.Contains(t, h.prompts.String(), "[WARN]")
	assert.Contains(t, h.prompts.String(), "feed already configured")
}

func TestConfigureFeedsDryRunWritesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "", plenty, func(c *config.Config) { c.DryRun = true })

	require.NoError(t, h.inst.ConfigureFeeds(h.rc))
	assert.Equal(t, originalFeeds, h.feeds(t))
	assert.Empty(t, h.runner.calls)
}
