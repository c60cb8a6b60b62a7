// Package backup keeps a copy of one configuration file for the
// duration of a run and puts it back if the run fails.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_io"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type state int

const (
	armed state = iota
	restored
	committed
)

// Guard owns the backup of a single file.
type Guard struct {
	mu         sync.Mutex
	path       string
	backupPath string
	existed    bool
	mode       os.FileMode
	state      state
	log        *zap.Logger
}

// Acquire copies path next to itself as <timestamp>_<name>.bak. A
// missing path is recorded so Restore can remove whatever the run
// created in its place.
func Acquire(path string, log *zap.Logger) (*Guard, error) {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Guard{path: path, log: log}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		log.Debug("Nothing to back up, file does not exist yet", zap.String("path", path))
		return g, nil
	case err != nil:
		return nil, pw_err.NewFilesystemError("cannot stat "+path, err)
	case !info.Mode().IsRegular():
		return nil, pw_err.NewFilesystemError(path+" is not a regular file", nil)
	}

	timestamp := time.Now().Format("20060102-150405")
	g.backupPath = filepath.Join(filepath.Dir(path), fmt.Sprintf("%s_%s.bak", timestamp, filepath.Base(path)))
	g.existed = true
	g.mode = info.Mode().Perm()

	if err := copyFile(path, g.backupPath, g.mode); err != nil {
		return nil, pw_err.NewFilesystemError("cannot back up "+path, err)
	}
	log.Info("Created backup", zap.String("original", path), zap.String("backup", g.backupPath))
	return g, nil
}

// Path is the guarded file.
func (g *Guard) Path() string { return g.path }

// BackupPath is the copy, empty when the file did not exist.
func (g *Guard) BackupPath() string { return g.backupPath }

// Restore puts the original bytes back, or removes the file if there was
// no original. It acts once; later calls and calls after Commit do
// nothing.
func (g *Guard) Restore() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != armed {
		return nil
	}
	g.state = restored

	if !g.existed {
		if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
			return pw_err.NewFilesystemError("cannot remove "+g.path, err)
		}
		g.log.Info("Removed file created during failed run", zap.String("path", g.path))
		return nil
	}

	tmp := g.path + ".restore"
	if err := copyFile(g.backupPath, tmp, g.mode); err != nil {
		return pw_err.NewFilesystemError("cannot restore "+g.path, err,
			fmt.Sprintf("copy %s back to %s by hand", g.backupPath, g.path))
	}
	if err := os.Rename(tmp, g.path); err != nil {
		_ = os.Remove(tmp)
		return pw_err.NewFilesystemError("cannot restore "+g.path, err,
			fmt.Sprintf("copy %s back to %s by hand", g.backupPath, g.path))
	}
	if err := os.Remove(g.backupPath); err != nil {
		g.log.Warn("Backup restored but not removed", zap.String("backup", g.backupPath), zap.Error(err))
	}
	g.log.Info("Restored from backup", zap.String("path", g.path))
	return nil
}

// Commit keeps the new file. The backup copy is left on disk.
func (g *Guard) Commit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == armed {
		g.state = committed
		g.log.Debug("Backup committed", zap.String("path", g.path), zap.String("backup", g.backupPath))
	}
}

// Register ties the guard to the run outcome: commit when the run exits
// with status 0, restore otherwise.
func (g *Guard) Register(c *pw_io.Cleanup) {
	c.Register("restore "+g.path, func(runErr error) error {
		if pw_err.GetExitCode(runErr) == 0 {
			g.Commit()
			return nil
		}
		return g.Restore()
	})
}

func copyFile(src, dst string, mode os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return cerr.Wrapf(err, "copy %s", src)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
