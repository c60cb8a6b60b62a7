// Package packages classifies a declared package list against installed
// and candidate versions and produces the install plan.
package packages

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-version"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Result is the outcome of one reconciliation pass. It is immutable once
// Reconcile returns; accessors hand out copies.
type Result struct {
	entries []Entry
	total   int64
}

// Reconcile queries every name in order and classifies it:
//
//	candidate missing        -> PackageNotFoundError, pass aborted
//	installed == candidate   -> skip
//	installed present        -> update
//	otherwise                -> install
//
// Sizes of install and update entries are summed into TotalSize.
func Reconcile(ctx context.Context, names []string, q Querier) (*Result, error) {
	logger := otelzap.Ctx(ctx)
	res := &Result{entries: make([]Entry, 0, len(names))}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := q.Query(ctx, name)
		if err != nil {
			return nil, cerr.Wrapf(err, "query package %s", name)
		}

		if !info.Found() {
			logger.Error("Package not found upstream", zap.String("package", name))
			return nil, cerr.WithStack(&pw_err.PackageNotFoundError{Package: name})
		}

		entry := classify(name, info)
		if entry.Action != ActionSkip {
			res.total += entry.Size
		}
		res.entries = append(res.entries, entry)

		logger.Debug("Package classified",
			zap.String("package", name),
			zap.String("action", string(entry.Action)),
			zap.String("installed", info.Installed),
			zap.String("candidate", info.Candidate),
			zap.Int64("size", info.Size))
	}

	logger.Info("Reconciliation complete",
		zap.Int("packages", len(res.entries)),
		zap.Int("pending", len(res.Pending())),
		zap.Int64("total_size", res.total))
	return res, nil
}

func classify(name string, info Query) Entry {
	entry := Entry{
		Name:      name,
		Version:   info.Candidate,
		Installed: info.Installed,
		Size:      info.Size,
	}
	switch {
	case info.Installed == info.Candidate:
		entry.Action = ActionSkip
	case info.IsInstalled():
		entry.Action = ActionUpdate
		entry.Direction = compareVersions(info.Installed, info.Candidate)
	default:
		entry.Action = ActionInstall
	}
	return entry
}

func compareVersions(installed, candidate string) Direction {
	from, err := version.NewVersion(installed)
	if err != nil {
		return DirectionUnknown
	}
	to, err := version.NewVersion(candidate)
	if err != nil {
		return DirectionUnknown
	}
	switch {
	case to.GreaterThan(from):
		return DirectionUpgrade
	case to.LessThan(from):
		return DirectionDowngrade
	default:
		// Equal semantically but spelled differently, e.g. "1.0" vs "1.0.0".
		return DirectionUnknown
	}
}

// Entries returns every classified package, skips included, in order.
func (r *Result) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Pending returns the install and update entries in order.
func (r *Result) Pending() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Action != ActionSkip {
			out = append(out, e)
		}
	}
	return out
}

// TotalSize is the summed size of all non-skip entries in bytes.
func (r *Result) TotalSize() int64 {
	return r.total
}

// Counts returns the number of entries per action.
func (r *Result) Counts() map[Action]int {
	counts := map[Action]int{ActionInstall: 0, ActionUpdate: 0, ActionSkip: 0}
	for _, e := range r.entries {
		counts[e.Action]++
	}
	return counts
}

// UpToDate reports whether nothing needs installing.
func (r *Result) UpToDate() bool {
	return len(r.Pending()) == 0
}
