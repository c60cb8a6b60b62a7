package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"TRACE":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"ERROR":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), "input %q", in)
	}
}

func TestTerminalMessagesArePlain(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(Options{Console: &buf})

	log.Info(TerminalPrefix+" Installing xray-core", zap.String("version", "1.8.4"))

	assert.Equal(t, "Installing xray-core (version=1.8.4)\n", buf.String())
}

func TestTerminalRendering(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		write  func(*zap.Logger)
		expect string
	}{
		{
			name:   "blank message",
			write:  func(l *zap.Logger) { l.Info(TerminalPrefix) },
			expect: "\n",
		},
		{
			name:   "warning is marked",
			write:  func(l *zap.Logger) { l.Warn(TerminalPrefix + " dnsmasq reinstalled") },
			expect: "WARN: dnsmasq reinstalled\n",
		},
		{
			name: "fields are sorted",
			write: func(l *zap.Logger) {
				l.Info(TerminalPrefix+" Dry run", zap.String("live", "/etc/config/dhcp"), zap.Int("count", 2))
			},
			expect: "Dry run (count=2, live=/etc/config/dhcp)\n",
		},
		{
			name: "output keeps final redraw",
			write: func(l *zap.Logger) {
				l.Info(TerminalPrefix+" opkg said", zap.String("output", "Downloading 10%\rDownloading 100%\nConfiguring xray-core.\n"))
			},
			expect: "opkg said\n  | Downloading 100%\n  | Configuring xray-core.\n",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.write(New(Options{Console: &buf}))
			assert.Equal(t, tt.expect, buf.String())
		})
	}
}

func TestTerminalMessagesHonourLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	New(Options{Console: &buf}).Debug(TerminalPrefix + " hidden")
	assert.Empty(t, buf.String())
}

func TestVerboseEnablesDebug(t *testing.T) {
	t.Parallel()

	var quiet bytes.Buffer
	New(Options{Console: &quiet}).Debug("querying package")
	assert.Empty(t, quiet.String())

	var loud bytes.Buffer
	New(Options{Console: &loud, Verbose: true}).Debug("querying package")
	assert.Contains(t, loud.String(), "querying package")
}

func TestFileCoreWritesJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "pwinstall.log")
	var console bytes.Buffer

	log := New(Options{Console: &console, FilePath: path})
	log.Debug("reconcile started", zap.Int("packages", 3))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"reconcile started"`)
	assert.Contains(t, string(data), `"packages":3`)
	assert.Empty(t, console.String(), "debug line must not reach the info-level console")
}

func TestInitializeRestoresGlobals(t *testing.T) {
	var buf bytes.Buffer
	before := zap.L()

	log, undo := Initialize(Options{Console: &buf})
	require.NotNil(t, log)
	assert.NotSame(t, before, zap.L())

	undo()
	assert.Same(t, before, zap.L())
}
