// Package budget decides whether a plan fits on the target filesystem.
package budget

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/dustin/go-humanize"
)

// DefaultBuffer is added to the download size to cover the gap between
// compressed and installed size and any dependencies pulled in on top.
const DefaultBuffer int64 = 204800

// BlockSize is the unit of the storage query. The filesystem usage tools
// on the target report 1K blocks; this is assumed, not detected.
const BlockSize int64 = 1024

// BlocksToBytes converts a 1K-block count to bytes.
func BlocksToBytes(blocks int64) int64 {
	return blocks * BlockSize
}

// Report is the verdict of one space check.
type Report struct {
	Total     int64
	Buffer    int64
	Required  int64
	Available int64
	Pass      bool
}

// Check compares total+buffer with available. It fails iff the required
// bytes exceed what is available.
func Check(total, available, buffer int64) Report {
	required := total + buffer
	return Report{
		Total:     total,
		Buffer:    buffer,
		Required:  required,
		Available: available,
		Pass:      required <= available,
	}
}

// Shortfall is the number of missing bytes, zero when the check passed.
func (r Report) Shortfall() int64 {
	if r.Pass {
		return 0
	}
	return r.Required - r.Available
}

// Err returns an InsufficientSpaceError for a failed check, nil otherwise.
func (r Report) Err() error {
	if r.Pass {
		return nil
	}
	return &pw_err.InsufficientSpaceError{Required: r.Required, Available: r.Available}
}

func (r Report) String() string {
	verdict := "ok"
	if !r.Pass {
		verdict = fmt.Sprintf("short by %s", humanize.IBytes(uint64(r.Shortfall())))
	}
	return fmt.Sprintf("required %s (%s + %s buffer), available %s: %s",
		humanize.IBytes(uint64(r.Required)),
		humanize.IBytes(uint64(r.Total)),
		humanize.IBytes(uint64(r.Buffer)),
		humanize.IBytes(uint64(r.Available)),
		verdict)
}
