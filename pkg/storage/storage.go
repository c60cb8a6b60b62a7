// Package storage answers "how much room is left on the package
// filesystem", in the 1K-block unit the budget check expects.
package storage

import (
	"context"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultMountPoint is where OpenWrt keeps its writable overlay.
const DefaultMountPoint = "/overlay"

// RootMountPoint is used when the overlay is not a separate mount
// (x86 images, some ext4 builds).
const RootMountPoint = "/"

// Querier reports free space.
type Querier interface {
	FreeBlocks(ctx context.Context, mountPoint string) (Usage, error)
}

// Usage is the answer to one storage query.
type Usage struct {
	// MountPoint is the mount actually measured, which differs from the
	// requested one after a fallback.
	MountPoint string
	FreeBlocks int64
}

// DiskQuerier queries the mount table and filesystem statistics through
// gopsutil.
type DiskQuerier struct {
	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	usage      func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewDiskQuerier returns a Querier backed by the live system.
func NewDiskQuerier() *DiskQuerier {
	return &DiskQuerier{
		partitions: disk.PartitionsWithContext,
		usage:      disk.UsageWithContext,
	}
}

// FreeBlocks returns free 1K blocks for mountPoint, or for the root mount
// when mountPoint is not separately mounted.
func (q *DiskQuerier) FreeBlocks(ctx context.Context, mountPoint string) (Usage, error) {
	logger := otelzap.Ctx(ctx)

	target, err := q.resolve(ctx, mountPoint)
	if err != nil {
		return Usage{}, err
	}
	if target != filepath.Clean(mountPoint) {
		logger.Debug("Mount point not found, falling back",
			zap.String("requested", mountPoint),
			zap.String("measured", target))
	}

	stat, err := q.usage(ctx, target)
	if err != nil {
		return Usage{}, pw_err.NewFilesystemError("query free space on "+target, err)
	}

	u := Usage{
		MountPoint: target,
		FreeBlocks: int64(stat.Free / 1024),
	}
	logger.Debug("Storage queried",
		zap.String("mount_point", u.MountPoint),
		zap.Int64("free_blocks", u.FreeBlocks))
	return u, nil
}

func (q *DiskQuerier) resolve(ctx context.Context, mountPoint string) (string, error) {
	want := filepath.Clean(mountPoint)
	if want == RootMountPoint {
		return RootMountPoint, nil
	}

	parts, err := q.partitions(ctx, true)
	if err != nil {
		return "", pw_err.NewFilesystemError("read mount table", err)
	}
	for _, p := range parts {
		if filepath.Clean(p.Mountpoint) == want {
			return want, nil
		}
	}
	return RootMountPoint, nil
}
