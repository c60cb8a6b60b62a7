package packages

import "context"

// Action is what the installer will do with one package.
type Action string

const (
	ActionInstall Action = "install"
	ActionUpdate  Action = "update"
	ActionSkip    Action = "skip"
)

// Direction qualifies an update for reporting and is empty for installs and
// skips. Versions that do not parse as semantic versions are
// DirectionUnknown.
type Direction string

const (
	DirectionUpgrade   Direction = "upgrade"
	DirectionDowngrade Direction = "downgrade"
	DirectionUnknown   Direction = "unknown"
)

// Query is the installed and candidate state of one package. An empty
// Installed means not installed; an empty Candidate means no feed offers it.
type Query struct {
	Name      string
	Installed string
	Candidate string
	Size      int64
}

// IsInstalled reports whether any version is installed.
func (q Query) IsInstalled() bool { return q.Installed != "" }

// Found reports whether a feed offers the package.
func (q Query) Found() bool { return q.Candidate != "" }

// Querier looks up one package. Implementations must not cache between
// calls; every reconciliation pass sees fresh state.
type Querier interface {
	Query(ctx context.Context, name string) (Query, error)
}

// Entry is one classified package of a plan.
type Entry struct {
	Name      string    `yaml:"name"`
	Action    Action    `yaml:"action"`
	Version   string    `yaml:"version"`
	Installed string    `yaml:"installed,omitempty"`
	Size      int64     `yaml:"size"`
	Direction Direction `yaml:"direction,omitempty"`
}
