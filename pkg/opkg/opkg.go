// Package opkg binds the package reconciler and the installer to the
// OpenWrt package manager.
package opkg

import (
	"context"
	"io"
	"time"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/packages"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Binary is the package manager executable.
const Binary = "opkg"

const (
	queryTimeout   = 30 * time.Second
	installTimeout = 15 * time.Minute
)

// Client runs opkg through an execute.Runner.
type Client struct {
	runner execute.Runner
	// stream receives live output of long running actions (update, install).
	stream io.Writer
}

// New returns a Client. stream may be nil.
func New(runner execute.Runner, stream io.Writer) *Client {
	return &Client{runner: runner, stream: stream}
}

var _ packages.Querier = (*Client)(nil)

// Query returns the installed and candidate versions of name. It never
// caches: every call asks opkg again.
func (c *Client) Query(ctx context.Context, name string) (packages.Query, error) {
	installed, err := c.installedVersion(ctx, name)
	if err != nil {
		return packages.Query{}, err
	}

	out, err := c.runner.Run(ctx, execute.Options{
		Command: Binary,
		Args:    []string{"info", name},
		Timeout: queryTimeout,
	})
	if err != nil {
		return packages.Query{}, cerr.Wrapf(err, "opkg info %s", name)
	}

	q := packages.Query{Name: name, Installed: installed}
	if cand, ok := selectCandidate(parseInfo(out), name); ok {
		q.Candidate = cand.Version
		q.Size = cand.Size
	}

	otelzap.Ctx(ctx).Debug("Package queried",
		zap.String("package", name),
		zap.String("installed", q.Installed),
		zap.String("candidate", q.Candidate),
		zap.Int64("size", q.Size))
	return q, nil
}

// IsInstalled reports whether name is currently installed.
func (c *Client) IsInstalled(ctx context.Context, name string) (bool, error) {
	v, err := c.installedVersion(ctx, name)
	return v != "", err
}

func (c *Client) installedVersion(ctx context.Context, name string) (string, error) {
	out, err := c.runner.Run(ctx, execute.Options{
		Command: Binary,
		Args:    []string{"list-installed", name},
		Timeout: queryTimeout,
	})
	if err != nil {
		return "", cerr.Wrapf(err, "opkg list-installed %s", name)
	}
	return parseListInstalled(out)[name], nil
}

// Update refreshes the package lists from the configured feeds.
func (c *Client) Update(ctx context.Context) error {
	otelzap.Ctx(ctx).Info("Updating package lists")
	_, err := c.runner.Run(ctx, execute.Options{
		Command: Binary,
		Args:    []string{"update"},
		Timeout: installTimeout,
		Stream:  c.stream,
	})
	return cerr.Wrap(err, "update package lists")
}

// Install installs or upgrades name to the feed candidate.
func (c *Client) Install(ctx context.Context, name string) error {
	otelzap.Ctx(ctx).Info("Installing package", zap.String("package", name))
	_, err := c.runner.Run(ctx, execute.Options{
		Command: Binary,
		Args:    []string{"install", name},
		Timeout: installTimeout,
		Mutates: true,
		Stream:  c.stream,
	})
	return cerr.Wrapf(err, "install %s", name)
}

// Remove uninstalls name, leaving dependants alone.
func (c *Client) Remove(ctx context.Context, name string) error {
	otelzap.Ctx(ctx).Info("Removing package", zap.String("package", name))
	_, err := c.runner.Run(ctx, execute.Options{
		Command: Binary,
		Args:    []string{"remove", name},
		Timeout: installTimeout,
		Mutates: true,
		Stream:  c.stream,
	})
	return cerr.Wrapf(err, "remove %s", name)
}
