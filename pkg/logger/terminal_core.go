package logger

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// TerminalPrefix marks log entries meant for the person at the terminal.
// They are rendered as plain text instead of structured console lines.
const TerminalPrefix = "terminal prompt:"

// outputKey holds captured tool output; it is printed as an indented block.
const outputKey = "output"

// terminalConsoleCore prints "terminal prompt" entries as one plain line,
// sized for an 80 column serial console, and hands everything else to base.
type terminalConsoleCore struct {
	base zapcore.Core
	out  io.Writer
	mu   *sync.Mutex
}

func newTerminalConsoleCore(base zapcore.Core, out io.Writer) zapcore.Core {
	return &terminalConsoleCore{base: base, out: out, mu: &sync.Mutex{}}
}

func (c *terminalConsoleCore) Enabled(level zapcore.Level) bool {
	return c.base.Enabled(level)
}

func (c *terminalConsoleCore) With(fields []zapcore.Field) zapcore.Core {
	return &terminalConsoleCore{base: c.base.With(fields), out: c.out, mu: c.mu}
}

func (c *terminalConsoleCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !strings.HasPrefix(entry.Message, TerminalPrefix) {
		return c.base.Check(entry, ce)
	}
	if !c.Enabled(entry.Level) {
		return ce
	}
	return ce.AddCore(entry, c)
}

func (c *terminalConsoleCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if !strings.HasPrefix(entry.Message, TerminalPrefix) {
		return c.base.Write(entry, fields)
	}

	// One write per entry keeps lines whole when opkg output is streamed
	// to the same console.
	msg := renderTerminal(entry, fields)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.out.Write(msg)
	return err
}

func (c *terminalConsoleCore) Sync() error {
	return c.base.Sync()
}

// renderTerminal formats an entry as
//
//	[WARN: ]text (key=value, key=value)
//	  | output line
func renderTerminal(entry zapcore.Entry, fields []zapcore.Field) []byte {
	var buf bytes.Buffer

	if entry.Level >= zapcore.WarnLevel {
		buf.WriteString(strings.ToUpper(entry.Level.String()))
		buf.WriteString(": ")
	}
	buf.WriteString(strings.TrimSpace(strings.TrimPrefix(entry.Message, TerminalPrefix)))

	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
	}
	output, hasOutput := enc.Fields[outputKey]
	delete(enc.Fields, outputKey)

	if len(enc.Fields) > 0 {
		keys := make([]string, 0, len(enc.Fields))
		for key := range enc.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, key := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", key, enc.Fields[key]))
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString("(" + strings.Join(pairs, ", ") + ")")
	}
	buf.WriteByte('\n')

	if hasOutput {
		for _, line := range strings.Split(strings.TrimRight(fmt.Sprint(output), "\n"), "\n") {
			buf.WriteString("  | ")
			buf.WriteString(lastRedraw(line))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// lastRedraw keeps what a terminal would finally show for a line that
// redraws itself with carriage returns, as download progress does.
func lastRedraw(line string) string {
	line = strings.TrimRight(line, "\r")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		return line[i+1:]
	}
	return line
}
