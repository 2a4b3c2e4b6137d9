package harness

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probekit/mcpprobe/internal/config"
	"github.com/probekit/mcpprobe/internal/diagnose"
	"github.com/probekit/mcpprobe/internal/errors"
)

// fakeTransport scripts the server side of a probe cycle in-process.
type fakeTransport struct {
	mu     sync.Mutex
	lines  chan string
	errs   chan error
	sent   [][]byte
	closed bool
	onSend func(data []byte)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		lines: make(chan string, 64),
		errs:  make(chan error, 1),
	}
}

func (f *fakeTransport) Start(context.Context) error { return nil }

func (f *fakeTransport) ReadLines(context.Context) (<-chan string, <-chan error) {
	return f.lines, f.errs
}

func (f *fakeTransport) SendMessage(_ context.Context, data []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, data)
	onSend := f.onSend
	f.mu.Unlock()

	if onSend != nil {
		onSend(data)
	}

	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

func (f *fakeTransport) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

func newTestOptions(transport config.Transport) *config.Options {
	return &config.Options{
		Transport:       transport,
		ReadyTimeout:    500 * time.Millisecond,
		ResponseTimeout: 500 * time.Millisecond,
	}
}

func TestRun_HappyPath(t *testing.T) {
	ft := newFakeTransport()

	ft.lines <- "Starting dev server..."
	ft.lines <- `{"level":"info","message":"initializing"}`
	ft.lines <- "AI agents can now control the product"

	ft.onSend = func([]byte) {
		// Interleaved noise the harness must skip, then the response
		ft.lines <- `{"level":"info","message":"tool invoked"}`
		ft.lines <- "not json at all"
		ft.lines <- `{"jsonrpc":"2.0","id":7,"result":{"content":[]}}`
		ft.lines <- `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"transient"}}`
		ft.lines <- `{"jsonrpc":"2.0","id":1,"result":{"content":[{"text":"[{\"name\":\"c1\",\"component\":\"X\"},{\"name\":\"c2\",\"component\":\"Y\"}]"}]}}`
	}

	h, err := New(newTestOptions(ft))
	require.NoError(t, err)

	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "list_controls", report.Tool)
	assert.Equal(t, 2, report.SkippedLines, "log record and non-json line are skipped")

	require.NotNil(t, report.Diagnosis)
	assert.Equal(t, diagnose.OutcomeDistinct, report.Diagnosis.Outcome)
	assert.Equal(t, 2, report.Diagnosis.UniqueComponents())

	assert.True(t, ft.wasClosed(), "transport must be closed after the cycle")

	require.Len(t, ft.sent, 1)
	assert.Contains(t, string(ft.sent[0]), `"method":"tools/call"`)
	assert.Contains(t, string(ft.sent[0]), `"name":"list_controls"`)
}

func TestRun_ReadinessTimeout(t *testing.T) {
	ft := newFakeTransport()

	// Lines arrive but none carries the marker
	ft.lines <- "booting..."
	ft.lines <- "still booting..."

	opts := newTestOptions(ft)
	opts.ReadyTimeout = 100 * time.Millisecond

	h, err := New(opts)
	require.NoError(t, err)

	_, err = h.Run(context.Background())
	require.ErrorIs(t, err, errors.ErrReadyTimeout)

	assert.True(t, ft.wasClosed(), "transport must be closed after readiness timeout")
	assert.Empty(t, ft.sent, "no request is sent before readiness")
}

func TestRun_ResponseTimeout(t *testing.T) {
	ft := newFakeTransport()
	ft.lines <- "AI agents can now control"

	opts := newTestOptions(ft)
	opts.ResponseTimeout = 100 * time.Millisecond

	h, err := New(opts)
	require.NoError(t, err)

	_, err = h.Run(context.Background())
	require.ErrorIs(t, err, errors.ErrResponseTimeout)

	assert.True(t, ft.wasClosed())
}

func TestRun_ResponseWithOnlyWrongIDsTimesOut(t *testing.T) {
	ft := newFakeTransport()
	ft.lines <- "AI agents can now control"

	ft.onSend = func([]byte) {
		ft.lines <- `{"jsonrpc":"2.0","id":99,"result":{"content":[]}}`
		ft.lines <- `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nope"}}`
	}

	opts := newTestOptions(ft)
	opts.ResponseTimeout = 100 * time.Millisecond

	h, err := New(opts)
	require.NoError(t, err)

	_, err = h.Run(context.Background())
	require.ErrorIs(t, err, errors.ErrResponseTimeout)
}

func TestRun_ServerDiesBeforeReady(t *testing.T) {
	ft := newFakeTransport()

	ft.errs <- &errors.ProcessError{ExitCode: 1, Stderr: "npm ERR! missing script: dev"}
	close(ft.errs)
	close(ft.lines)

	h, err := New(newTestOptions(ft))
	require.NoError(t, err)

	_, err = h.Run(context.Background())

	var procErr *errors.ProcessError
	require.True(t, stderrors.As(err, &procErr))
	assert.Equal(t, 1, procErr.ExitCode)
	assert.True(t, ft.wasClosed())
}

func TestRun_ServerExitsAfterReady(t *testing.T) {
	ft := newFakeTransport()
	ft.lines <- "AI agents can now control"

	ft.onSend = func([]byte) {
		close(ft.errs)
		close(ft.lines)
	}

	h, err := New(newTestOptions(ft))
	require.NoError(t, err)

	_, err = h.Run(context.Background())
	require.ErrorIs(t, err, errors.ErrServerExited)
}

func TestRun_MalformedPayloadInMatchedResponse(t *testing.T) {
	ft := newFakeTransport()
	ft.lines <- "AI agents can now control"

	ft.onSend = func([]byte) {
		ft.lines <- `{"jsonrpc":"2.0","id":1,"result":{"content":[{"text":"not json"}]}}`
	}

	h, err := New(newTestOptions(ft))
	require.NoError(t, err)

	_, err = h.Run(context.Background())

	var decodeErr *errors.PayloadDecodeError
	require.True(t, stderrors.As(err, &decodeErr))
}

func TestRun_CustomToolAndRequestID(t *testing.T) {
	ft := newFakeTransport()
	ft.lines <- "ready to serve"

	ft.onSend = func([]byte) {
		ft.lines <- `{"jsonrpc":"2.0","id":42,"result":{"content":[{"text":"[{\"name\":\"p\",\"component\":\"All Components\"}]"}]}}`
	}

	opts := newTestOptions(ft)
	opts.ReadyMarker = "ready to serve"
	opts.Tool = "list_params"
	opts.RequestID = 42

	h, err := New(opts)
	require.NoError(t, err)

	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, diagnose.OutcomeUniformSentinel, report.Diagnosis.Outcome)
	assert.Contains(t, string(ft.sent[0]), `"name":"list_params"`)
	assert.Contains(t, string(ft.sent[0]), `"id":42`)
}

func TestRun_ContextCancellation(t *testing.T) {
	ft := newFakeTransport()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := New(newTestOptions(ft))
	require.NoError(t, err)

	_, err = h.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, ft.wasClosed())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&config.Options{})
	require.Error(t, err, "no command and no transport is not runnable")
}

// End-to-end against a real subprocess standing in for the MCP server.
func TestRun_EndToEnd_StubServer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Test requires a POSIX shell")
	}

	script := `echo 'AI agents can now control everything'
read line
echo '{"level":"info","message":"handling tools/call"}'
echo '{"jsonrpc":"2.0","id":1,"result":{"content":[{"text":"[{\"name\":\"c1\",\"component\":\"X\"},{\"name\":\"c2\",\"component\":\"Y\"}]"}]}}'`

	h, err := New(&config.Options{
		Command:         "sh",
		Args:            []string{"-c", script},
		ReadyTimeout:    10 * time.Second,
		ResponseTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, diagnose.OutcomeDistinct, report.Diagnosis.Outcome)
	assert.Equal(t, 2, report.Diagnosis.UniqueComponents())
	assert.Equal(t, 2, report.Diagnosis.Total)
}

func TestRun_EndToEnd_NeverReady(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Test requires a POSIX shell")
	}

	h, err := New(&config.Options{
		Command:         "sh",
		Args:            []string{"-c", "echo 'booting'; sleep 60"},
		ReadyTimeout:    300 * time.Millisecond,
		ResponseTimeout: time.Second,
	})
	require.NoError(t, err)

	start := time.Now()

	_, err = h.Run(context.Background())
	require.ErrorIs(t, err, errors.ErrReadyTimeout)

	assert.Less(t, time.Since(start), 5*time.Second, "timeout must fire near the budget, not hang")
}
