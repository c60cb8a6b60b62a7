package execute

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestRunCapturesOutput(t *testing.T) {
	t.Parallel()
	r := NewRunner(zaptest.NewLogger(t), false)

	out, err := r.Run(context.Background(), Options{Command: "echo", Args: []string{"hello", "router"}})
	require.NoError(t, err)
	assert.Equal(t, "hello router\n", out)
}

func TestRunStreamsOutput(t *testing.T) {
	t.Parallel()
	r := NewRunner(zaptest.NewLogger(t), false)

	var live bytes.Buffer
	out, err := r.Run(context.Background(), Options{Command: "echo", Args: []string{"Downloading"}, Stream: &live})
	require.NoError(t, err)
	assert.Equal(t, out, live.String())
}

func TestRunFailureIsExternalToolError(t *testing.T) {
	t.Parallel()
	r := NewRunner(zaptest.NewLogger(t), false)

	_, err := r.Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "echo 'Collected errors:'; echo ' * Unknown package xray-core.'; exit 255"},
	})
	require.Error(t, err)
	assert.Equal(t, pw_err.CategoryExternal, pw_err.CategoryOf(err))
	assert.Contains(t, err.Error(), "Unknown package xray-core")
	assert.Equal(t, 1, pw_err.GetExitCode(err))
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()
	r := NewRunner(zap.NewNop(), false)

	_, err := r.Run(context.Background(), Options{Command: "definitely-not-a-real-binary-pw"})
	require.Error(t, err)
	assert.Equal(t, pw_err.CategoryExternal, pw_err.CategoryOf(err))
}

func TestRunDryRun(t *testing.T) {
	t.Parallel()
	r := NewRunner(nil, true)

	out, err := r.Run(context.Background(), Options{Command: "definitely-not-a-real-binary-pw", Mutates: true})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = r.Run(context.Background(), Options{Command: "echo", Args: []string{"query"}})
	require.NoError(t, err)
	assert.Equal(t, "query\n", out, "queries still run")
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	r := NewRunner(zap.NewNop(), false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := r.Run(ctx, Options{Command: "sleep", Args: []string{"5"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "opkg update", Options{Command: "opkg", Args: []string{"update"}}.String())
	assert.Equal(t, "reboot", Options{Command: "reboot"}.String())
}

func TestLookPath(t *testing.T) {
	t.Parallel()
	assert.NoError(t, LookPath("sh"))
	assert.Error(t, LookPath("definitely-not-a-real-binary-pw"))
}
