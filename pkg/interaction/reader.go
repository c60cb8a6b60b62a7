// pkg/interaction/reader.go

package interaction

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

type lineResult struct {
	line string
	err  error
}

// lineReader reads one line at a time from a buffered reader. The blocking
// read happens in a helper goroutine so that a cancelled context (signal)
// unblocks the caller; a read abandoned that way is handed to the next
// call instead of racing with it.
type lineReader struct {
	in      *bufio.Reader
	pending chan lineResult
}

func newLineReader(in io.Reader) *lineReader {
	if br, ok := in.(*bufio.Reader); ok {
		return &lineReader{in: br}
	}
	return &lineReader{in: bufio.NewReader(in)}
}

// ReadLine returns the next line with surrounding whitespace trimmed.
// A final line without newline is returned normally; io.EOF is mapped to
// ErrEndOfInput only when nothing was read.
func (r *lineReader) ReadLine(ctx context.Context) (string, error) {
	if r.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := r.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
		r.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-r.pending:
		r.pending = nil
		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				if res.line == "" {
					return "", ErrEndOfInput
				}
				return strings.TrimSpace(res.line), nil
			}
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}
