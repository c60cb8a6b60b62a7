// pkg/interaction/secret.go

package interaction

import (
	"context"
	"os"
	"strings"

	"golang.org/x/term"
)

// SecretReader reads one line with terminal echo disabled.
type SecretReader interface {
	ReadSecret(ctx context.Context) (string, error)
}

// TerminalSecretReader disables echo on a terminal file descriptor for
// exactly one line.
type TerminalSecretReader struct {
	fd int
}

// NewTerminalSecretReader returns a reader for f, or nil when f is not a
// terminal so callers fall back to a plain line read.
func NewTerminalSecretReader(f *os.File) SecretReader {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return &TerminalSecretReader{fd: fd}
}

// ReadSecret reads a line without echo. term.ReadPassword restores the
// previous state itself; the saved state covers the cancellation path,
// where the read goroutine is abandoned while echo is still off.
func (r *TerminalSecretReader) ReadSecret(ctx context.Context) (string, error) {
	state, err := term.GetState(r.fd)
	if err != nil {
		return "", err
	}

	ch := make(chan lineResult, 1)
	go func() {
		b, err := term.ReadPassword(r.fd)
		ch <- lineResult{line: string(b), err: err}
	}()

	select {
	case <-ctx.Done():
		_ = term.Restore(r.fd, state)
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}
