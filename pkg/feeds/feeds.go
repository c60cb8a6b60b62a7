package feeds

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	// DefaultFeedsFile is the user feed list opkg reads in addition to
	// the distribution feeds.
	DefaultFeedsFile = "/etc/opkg/customfeeds.conf"
	// DefaultBaseURL hosts the Passwall build artifacts.
	DefaultBaseURL = "https://master.dl.sourceforge.net/project/openwrt-passwall-build"
	// DefaultKeyURL is the usign public key the feeds are signed with.
	DefaultKeyURL = DefaultBaseURL + "/passwall.pub"

	keyFileName  = "passwall.pub"
	fetchTimeout = 60 * time.Second
)

// Names lists the Passwall feeds in the order they are written.
var Names = []string{"passwall_luci", "passwall_packages", "passwall2"}

// Lines returns the "src/gz" feed lines for rel under baseURL.
func Lines(baseURL string, rel Release) []string {
	base := strings.TrimRight(baseURL, "/")
	var prefix string
	if rel.IsSnapshot() {
		prefix = fmt.Sprintf("%s/snapshots/packages/%s", base, rel.Arch)
	} else {
		prefix = fmt.Sprintf("%s/releases/packages-%s/%s", base, rel.Branch(), rel.Arch)
	}

	lines := make([]string, 0, len(Names))
	for _, name := range Names {
		lines = append(lines, fmt.Sprintf("src/gz %s %s/%s", name, prefix, name))
	}
	return lines
}

// Append adds the lines missing from the feed list at path, creating the
// file if needed. Lines already present are returned in existing and are
// not written twice.
func Append(path string, lines []string) (added, existing []string, err error) {
	present := make(map[string]bool)
	current, err := os.ReadFile(path)
	switch {
	case err == nil:
		sc := bufio.NewScanner(strings.NewReader(string(current)))
		for sc.Scan() {
			present[strings.Join(strings.Fields(sc.Text()), " ")] = true
		}
	case os.IsNotExist(err):
	default:
		return nil, nil, pw_err.NewFilesystemError("cannot read feed list "+path, err)
	}

	var buf strings.Builder
	if len(current) > 0 && !strings.HasSuffix(string(current), "\n") {
		buf.WriteString("\n")
	}
	for _, line := range lines {
		key := strings.Join(strings.Fields(line), " ")
		if present[key] {
			existing = append(existing, line)
			continue
		}
		present[key] = true
		added = append(added, line)
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	if len(added) == 0 {
		return nil, existing, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, pw_err.NewFilesystemError("cannot create feed directory", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, pw_err.NewFilesystemError("cannot open feed list "+path, err)
	}
	if _, err := f.WriteString(buf.String()); err != nil {
		_ = f.Close()
		return nil, nil, pw_err.NewFilesystemError("cannot write feed list "+path, err)
	}
	if err := f.Close(); err != nil {
		return nil, nil, pw_err.NewFilesystemError("cannot write feed list "+path, err)
	}
	return added, existing, nil
}

// KeyFetcher downloads the feed signing key.
type KeyFetcher struct {
	client *resty.Client
}

// NewKeyFetcher returns a fetcher with a bounded timeout. A nil client
// gets a default one.
func NewKeyFetcher(client *resty.Client) *KeyFetcher {
	if client == nil {
		client = resty.New()
	}
	client.SetTimeout(fetchTimeout).SetRetryCount(2)
	return &KeyFetcher{client: client}
}

// Fetch downloads url into dir and returns the file path.
func (f *KeyFetcher) Fetch(ctx context.Context, url, dir string) (string, error) {
	logger := otelzap.Ctx(ctx)
	logger.Info("Fetching feed public key", zap.String("url", url))

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", cerr.WithHint(
			cerr.Wrapf(err, "download %s", url),
			"check the router's internet connection and DNS")
	}
	if resp.IsError() {
		return "", cerr.Newf("download %s: HTTP %d", url, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return "", cerr.Newf("download %s: empty response", url)
	}

	path := filepath.Join(dir, keyFileName)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", pw_err.NewFilesystemError("cannot store public key", err)
	}
	logger.Debug("Public key stored", zap.String("path", path), zap.Int("bytes", len(body)))
	return path, nil
}

// AddKey trusts the key at path for package signature checks.
func AddKey(ctx context.Context, runner execute.Runner, path string) error {
	_, err := runner.Run(ctx, execute.Options{
		Command: "opkg-key",
		Args:    []string{"add", path},
		Timeout: 30 * time.Second,
		Mutates: true,
	})
	return cerr.Wrap(err, "add feed key")
}
