package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct{}

func (fakeTransport) Start(context.Context) error { return nil }

func (fakeTransport) ReadLines(context.Context) (<-chan string, <-chan error) {
	return nil, nil
}

func (fakeTransport) SendMessage(context.Context, []byte) error { return nil }

func (fakeTransport) Close() error { return nil }

func TestApplyDefaults(t *testing.T) {
	var o Options

	o.ApplyDefaults()

	assert.Equal(t, "AI agents can now control", o.ReadyMarker)
	assert.Equal(t, "list_controls", o.Tool)
	assert.Equal(t, int64(1), o.RequestID)
	assert.Equal(t, 10*time.Second, o.ReadyTimeout)
	assert.Equal(t, 5*time.Second, o.ResponseTimeout)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	o := Options{
		Tool:         "list_params",
		ReadyTimeout: time.Second,
	}

	o.ApplyDefaults()

	assert.Equal(t, "list_params", o.Tool)
	assert.Equal(t, time.Second, o.ReadyTimeout)
	assert.Equal(t, 5*time.Second, o.ResponseTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("missing command", func(t *testing.T) {
		var o Options
		o.ApplyDefaults()

		require.Error(t, o.Validate())
	})

	t.Run("injected transport needs no command", func(t *testing.T) {
		o := Options{Transport: fakeTransport{}}
		o.ApplyDefaults()

		require.NoError(t, o.Validate())
	})

	t.Run("negative budget", func(t *testing.T) {
		o := Options{Command: "npm", ReadyTimeout: -time.Second}

		require.Error(t, o.Validate())
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MCPPROBE_COMMAND", "npm")
	t.Setenv("MCPPROBE_TOOL", "list_controls")
	t.Setenv("MCPPROBE_READY_TIMEOUT", "30s")
	t.Setenv("MCPPROBE_STRICT", "true")

	var o Options
	require.NoError(t, o.FromEnv())

	assert.Equal(t, "npm", o.Command)
	assert.Equal(t, 30*time.Second, o.ReadyTimeout)
	assert.True(t, o.Strict)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	content := `
command: npm
args: [run, dev]
ready_marker: "server listening"
tool: list_controls
response_timeout: 8s
env:
  NODE_ENV: development
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var o Options
	require.NoError(t, o.LoadFile(path))

	assert.Equal(t, "npm", o.Command)
	assert.Equal(t, []string{"run", "dev"}, o.Args)
	assert.Equal(t, "server listening", o.ReadyMarker)
	assert.Equal(t, 8*time.Second, o.ResponseTimeout)
	assert.Equal(t, "development", o.Env["NODE_ENV"])
}

func TestLoadFile_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("command: npm\nready_timeout: soon\n"), 0o600))

	var o Options

	err := o.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ready_timeout")
}

func TestLoadFile_Missing(t *testing.T) {
	var o Options

	require.Error(t, o.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
}
