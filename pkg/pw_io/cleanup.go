// pkg/pw_io/cleanup.go

package pw_io

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// CleanupFunc releases one resource. runErr is the outcome of the run, so
// a step can choose between commit (nil) and rollback (non-nil).
type CleanupFunc func(runErr error) error

type cleanupStep struct {
	name string
	fn   CleanupFunc
}

// Cleanup is a LIFO stack of release steps registered at the point where
// each resource is acquired. Run executes the stack at most once; it is
// disarmed before the first step runs, so a step that triggers another
// Run (directly or via a signal path) does not recurse.
type Cleanup struct {
	mu    sync.Mutex
	steps []cleanupStep
	done  bool
	log   *zap.Logger
}

// NewCleanup returns an empty stack that logs through log.
func NewCleanup(log *zap.Logger) *Cleanup {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleanup{log: log}
}

// Register pushes a release step. A step registered after Run is released
// immediately.
func (c *Cleanup) Register(name string, fn CleanupFunc) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		c.log.Warn("Cleanup already ran, releasing immediately", zap.String("step", name))
		if err := fn(nil); err != nil {
			c.log.Error("Cleanup step failed", zap.String("step", name), zap.Error(err))
		}
		return
	}
	defer c.mu.Unlock()
	c.steps = append(c.steps, cleanupStep{name: name, fn: fn})
	c.log.Debug("Cleanup step registered", zap.String("step", name), zap.Int("depth", len(c.steps)))
}

// Run executes all steps in reverse registration order and reports every
// failure. Subsequent calls return nil without doing anything.
func (c *Cleanup) Run(runErr error) error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return nil
	}
	c.done = true
	steps := c.steps
	c.steps = nil
	c.mu.Unlock()

	var result error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.fn(runErr); err != nil {
			c.log.Error("Cleanup step failed", zap.String("step", step.name), zap.Error(err))
			result = multierror.Append(result, err)
			continue
		}
		c.log.Debug("Cleanup step completed", zap.String("step", step.name))
	}
	return result
}

// Done reports whether Run has been invoked.
func (c *Cleanup) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
