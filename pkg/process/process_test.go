package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTasklist(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []int
	}{
		{
			name: "no match",
			out:  "INFO: No tasks are running which match the specified criteria.\r\n",
			want: nil,
		},
		{
			name: "two instances",
			out: "\"bridge-gui.exe\",\"4242\",\"Console\",\"1\",\"120,004 K\"\r\n" +
				"\"bridge-gui.exe\",\"5151\",\"Console\",\"1\",\"98,100 K\"\r\n",
			want: []int{4242, 5151},
		},
		{
			name: "case insensitive image",
			out:  "\"Bridge-GUI.EXE\",\"77\",\"Console\",\"1\",\"1 K\"\r\n",
			want: []int{77},
		},
		{
			name: "other image ignored",
			out:  "\"bridge.exe\",\"12\",\"Console\",\"1\",\"1 K\"\r\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTasklist(tt.out, "bridge-gui.exe")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLaunchMissingExecutable(t *testing.T) {
	_, err := (&System{}).Launch(context.Background(), filepath.Join(t.TempDir(), "missing.exe"))
	assert.Error(t, err)
}

func TestLaunchTerminate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX sleep binary")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	h, err := (&System{Output: os.Stderr}).Launch(context.Background(), sleep, "30")
	require.NoError(t, err)
	assert.True(t, h.Alive())
	assert.Greater(t, h.PID(), 0)

	require.NoError(t, h.Terminate())
	deadline := time.Now().Add(5 * time.Second)
	for h.Alive() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.False(t, h.Alive())

	// Kill and Terminate on an exited process are no-ops.
	assert.NoError(t, h.Kill())
	assert.NoError(t, h.Terminate())
}

func TestFindNotRunning(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("pgrep path")
	}
	if _, err := exec.LookPath("pgrep"); err != nil {
		t.Skip("pgrep not available")
	}
	_, err := (&System{}).Find(context.Background(), "no-such-process-bridge-ui")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestKillRetriesAfterFailure(t *testing.T) {
	p := &launched{done: make(chan struct{})}
	var calls int
	p.kill = func() error {
		calls++
		if calls == 1 {
			return errors.New("access is denied")
		}
		close(p.done)
		return nil
	}

	assert.Error(t, p.Kill())
	assert.True(t, p.Alive())

	require.NoError(t, p.Kill())
	assert.False(t, p.Alive())
	assert.Equal(t, 2, calls)

	require.NoError(t, p.Kill())
	assert.Equal(t, 2, calls, "an exited process is not killed again")
}
