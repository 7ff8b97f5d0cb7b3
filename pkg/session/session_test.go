package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/driver/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testOptions() Options {
	return Options{
		ExePath:       `C:\Program Files\Proton AG\Proton Mail Bridge\bridge-gui.exe`,
		ProcessName:   "bridge-gui.exe",
		LaunchTimeout: time.Second,
		FocusTimeout:  50 * time.Millisecond,
		Grace:         30 * time.Millisecond,
		Interval:      time.Millisecond,
	}
}

func newController(t *testing.T, cfg mock.Config) (*Controller, *mock.App) {
	t.Helper()
	if cfg.ProfileDir == "" {
		cfg.ProfileDir = t.TempDir()
	}
	app := mock.New(cfg)
	return New(app, app.Processes(), testOptions()), app
}

// hiddenWindows never reports any window.
type hiddenWindows struct {
	*mock.App
}

func (hiddenWindows) Windows(context.Context) ([]core.WindowInfo, error) {
	return nil, nil
}

func TestLaunchWhenNotRunning(t *testing.T) {
	ctx := context.Background()
	c, app := newController(t, mock.Config{})
	assert.Equal(t, Terminated, c.State())

	require.NoError(t, c.LaunchOrAttach(ctx))
	assert.Equal(t, Ready, c.State())
	assert.False(t, c.Attached())
	assert.Equal(t, 1, app.Launches())
	assert.NotZero(t, c.PID())

	w, ok := c.Window(core.WindowMain)
	require.True(t, ok)
	assert.Equal(t, mock.MainTitle, w.Title)

	// Already ready: nothing happens.
	require.NoError(t, c.LaunchOrAttach(ctx))
	assert.Equal(t, 1, app.Launches())
	require.NoError(t, c.Terminate(ctx))
}

func TestAttachToRunningInstance(t *testing.T) {
	ctx := context.Background()
	c, app := newController(t, mock.Config{})
	_, err := app.Processes().Launch(ctx, "bridge-gui.exe")
	require.NoError(t, err)

	require.NoError(t, c.LaunchOrAttach(ctx))
	assert.True(t, c.Attached())
	assert.Equal(t, 1, app.Launches())
	require.NoError(t, c.Terminate(ctx))
}

func TestLaunchWithoutExecutable(t *testing.T) {
	app := mock.New(mock.Config{ProfileDir: t.TempDir()})
	opts := testOptions()
	opts.ExePath = ""
	c := New(app, app.Processes(), opts)

	err := c.LaunchOrAttach(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionUnavailable))
	assert.Equal(t, core.ErrCategorySession, core.CategoryOf(err))
	assert.Equal(t, Terminated, c.State())
}

func TestMainWindowNeverAppears(t *testing.T) {
	ctx := context.Background()
	app := mock.New(mock.Config{ProfileDir: t.TempDir()})
	opts := testOptions()
	opts.LaunchTimeout = 20 * time.Millisecond
	c := New(hiddenWindows{app}, app.Processes(), opts)

	start := time.Now()
	err := c.LaunchOrAttach(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "fails fast")
	assert.True(t, errors.Is(err, core.ErrSessionUnavailable))
	assert.Contains(t, err.Error(), "application not reachable")
	assert.Equal(t, Terminated, c.State())
	require.NoError(t, c.Terminate(ctx))
}

func TestFocus(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, mock.Config{})

	err := c.Focus(ctx, core.WindowMain)
	assert.True(t, errors.Is(err, core.ErrSessionUnavailable), "focus before launch")

	require.NoError(t, c.LaunchOrAttach(ctx))
	require.NoError(t, c.Focus(ctx, core.WindowMain))

	err = c.Focus(ctx, core.WindowBrowser)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrWaitTimeout))
	_, ok := c.Window(core.WindowBrowser)
	assert.False(t, ok)
	require.NoError(t, c.Terminate(ctx))
}

func TestTerminateGraceful(t *testing.T) {
	ctx := context.Background()
	c, app := newController(t, mock.Config{})
	require.NoError(t, c.LaunchOrAttach(ctx))

	require.NoError(t, c.Terminate(ctx))
	assert.False(t, app.Running())
	assert.Equal(t, Terminated, c.State())
	assert.Zero(t, c.PID())

	// Idempotent.
	require.NoError(t, c.Terminate(ctx))
	assert.Equal(t, Terminated, c.State())
}

func TestTerminateKillsAfterGrace(t *testing.T) {
	ctx := context.Background()
	c, app := newController(t, mock.Config{IgnoreTerminate: true})
	require.NoError(t, c.LaunchOrAttach(ctx))

	start := time.Now()
	require.NoError(t, c.Terminate(ctx))
	assert.GreaterOrEqual(t, time.Since(start), testOptions().Grace)
	assert.False(t, app.Running())
	assert.Equal(t, Terminated, c.State())
}

func TestTerminateAfterSelfExit(t *testing.T) {
	ctx := context.Background()
	c, app := newController(t, mock.Config{})
	require.NoError(t, c.LaunchOrAttach(ctx))

	h, err := app.Processes().Find(ctx, "bridge-gui")
	require.NoError(t, err)
	require.NoError(t, h.Kill())

	require.NoError(t, c.AwaitExit(ctx, 50*time.Millisecond))
	assert.Equal(t, Terminated, c.State())
	require.NoError(t, c.Terminate(ctx))
}

func TestRestart(t *testing.T) {
	ctx := context.Background()
	c, app := newController(t, mock.Config{})
	require.NoError(t, c.LaunchOrAttach(ctx))
	first := c.PID()

	require.NoError(t, c.Restart(ctx))
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 2, app.Launches())
	assert.NotEqual(t, first, c.PID())
	require.NoError(t, c.Terminate(ctx))
}

func TestRelaunchAfterProcessDied(t *testing.T) {
	ctx := context.Background()
	c, app := newController(t, mock.Config{})
	require.NoError(t, c.LaunchOrAttach(ctx))

	h, err := app.Processes().Find(ctx, "bridge-gui")
	require.NoError(t, err)
	require.NoError(t, h.Kill())
	assert.False(t, c.Alive())

	require.NoError(t, c.LaunchOrAttach(ctx))
	assert.True(t, c.Alive())
	assert.Equal(t, 2, app.Launches())
	require.NoError(t, c.Terminate(ctx))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "launching", Launching.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "terminating", Terminating.String())
	assert.Equal(t, "terminated", Terminated.String())
}
