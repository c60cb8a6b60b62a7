// pkg/pw_err/util.go

package pw_err

import (
	"errors"
	"fmt"
	"io"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/gookit/color"
)

// IsExpectedUserError reports whether err is the user's choice rather than
// a failure, such as a declined confirmation.
func IsExpectedUserError(err error) bool {
	return CategoryOf(err) == CategoryUser
}

// ExtractSummary extracts a concise error summary from full output.
func ExtractSummary(output string, maxCandidates int) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "no output"
	}

	lines := strings.Split(trimmed, "\n")
	var candidates []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lowerLine := strings.ToLower(line)
		if strings.Contains(lowerLine, "error") ||
			strings.Contains(lowerLine, "failed") ||
			strings.Contains(lowerLine, "cannot") ||
			strings.Contains(lowerLine, "unknown package") ||
			strings.Contains(lowerLine, "collected errors") {
			candidates = append(candidates, line)
		}
	}

	if len(candidates) > 0 {
		if len(candidates) > maxCandidates {
			candidates = candidates[:maxCandidates]
		}
		return strings.Join(candidates, " - ")
	}

	return strings.TrimSpace(lines[len(lines)-1])
}

type hinter interface {
	Hint() string
}

// Hints collects remediation hints attached with cerr.WithHint and the
// Hint() methods of typed errors in the chain.
func Hints(err error) []string {
	hints := cerr.GetAllHints(err)
	for e := err; e != nil; e = errors.Unwrap(e) {
		if h, ok := e.(hinter); ok {
			hints = append(hints, h.Hint())
		}
	}
	return hints
}

// PrintError prints a human-readable error to w. Expected errors get the
// notice marker; verbose adds the stack recorded by cockroachdb/errors.
func PrintError(w io.Writer, verbose bool, err error) {
	if err == nil {
		return
	}

	if IsExpectedUserError(err) {
		_, _ = fmt.Fprintf(w, "%s %v\n", color.Note.Sprint("[NOTICE]"), err)
		return
	}

	_, _ = fmt.Fprintf(w, "%s %v\n", color.Error.Sprint("[ERROR]"), err)
	for _, hint := range Hints(err) {
		_, _ = fmt.Fprintf(w, "  hint: %s\n", hint)
	}
	if verbose {
		_, _ = fmt.Fprintf(w, "%+v\n", err)
		return
	}
	_, _ = fmt.Fprintln(w, "  rerun with --verbose for more details")
}

// PrintWarning prints a non-fatal warning with the warning marker.
func PrintWarning(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", color.Warn.Sprint("[WARN]"), fmt.Sprintf(format, args...))
}
