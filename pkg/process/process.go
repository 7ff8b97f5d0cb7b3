// Package process launches, finds and stops the application process.
package process

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
)

// ErrNotRunning is returned by Find when no process has the given name.
var ErrNotRunning = errors.New("process not running")

// Handle is a running (or recently running) process.
type Handle interface {
	PID() int
	Alive() bool
	// Terminate asks the process to exit.
	Terminate() error
	// Kill stops the process immediately.
	Kill() error
}

// Manager finds and launches processes.
type Manager interface {
	Find(ctx context.Context, name string) (Handle, error)
	Launch(ctx context.Context, path string, args ...string) (Handle, error)
}

// System manages real OS processes.
type System struct {
	// Output receives the launched process's stdout and stderr.
	Output io.Writer
}

// NewSystem returns a Manager writing child output to the runner log.
func NewSystem() *System {
	return &System{Output: logger.GetWriter()}
}

// Launch starts path detached from ctx: cancelling ctx does not stop the app.
func (s *System) Launch(ctx context.Context, path string, args ...string) (Handle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("executable not found at path %s: %w", path, err)
	}

	cmd := exec.Command(path, args...)
	if s.Output != nil {
		cmd.Stdout = s.Output
		cmd.Stderr = s.Output
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}
	logger.Info("Process started: %s (PID: %d)", path, cmd.Process.Pid)

	p := &launched{cmd: cmd, done: make(chan struct{}), kill: cmd.Process.Kill}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Find looks the process up by image name.
func (s *System) Find(ctx context.Context, name string) (Handle, error) {
	pids, err := findPIDs(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(pids) == 0 {
		return nil, ErrNotRunning
	}
	return &found{pid: pids[0]}, nil
}

func findPIDs(ctx context.Context, name string) ([]int, error) {
	if runtime.GOOS == "windows" {
		if !strings.HasSuffix(strings.ToLower(name), ".exe") {
			name += ".exe"
		}
		out, err := exec.CommandContext(ctx, "tasklist", "/FI", "IMAGENAME eq "+name, "/FO", "CSV", "/NH").Output()
		if err != nil {
			return nil, fmt.Errorf("tasklist failed: %w", err)
		}
		return parseTasklist(string(out), name)
	}

	out, err := exec.CommandContext(ctx, "pgrep", "-x", name).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// pgrep exits 1 when nothing matched
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep failed: %w", err)
	}
	var pids []int
	for _, f := range strings.Fields(string(out)) {
		if pid, err := strconv.Atoi(f); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// parseTasklist extracts PIDs from `tasklist /FO CSV /NH` output.
// When nothing matches tasklist prints an INFO line instead of CSV.
func parseTasklist(out, image string) ([]int, error) {
	if strings.HasPrefix(strings.TrimSpace(out), "INFO:") {
		return nil, nil
	}
	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse tasklist output: %w", err)
	}
	var pids []int
	for _, rec := range records {
		if len(rec) < 2 || !strings.EqualFold(rec[0], image) {
			continue
		}
		if pid, err := strconv.Atoi(rec[1]); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

type launched struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	kill    func() error
}

func (p *launched) PID() int { return p.cmd.Process.Pid }

func (p *launched) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *launched) Terminate() error {
	if !p.Alive() {
		return nil
	}
	return terminatePID(p.PID(), p.cmd.Process)
}

// Kill may be called again after a failed attempt.
func (p *launched) Kill() error {
	if !p.Alive() {
		return nil
	}
	if err := p.kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

type found struct {
	pid int
}

func (p *found) PID() int { return p.pid }

func (p *found) Alive() bool {
	if runtime.GOOS == "windows" {
		out, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", p.pid), "/FO", "CSV", "/NH").Output()
		return err == nil && strings.Contains(string(out), fmt.Sprintf("\"%d\"", p.pid))
	}
	proc, err := os.FindProcess(p.pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (p *found) Terminate() error {
	proc, err := os.FindProcess(p.pid)
	if err != nil {
		return nil
	}
	return terminatePID(p.pid, proc)
}

func (p *found) Kill() error {
	if runtime.GOOS == "windows" {
		return exec.Command("taskkill", "/F", "/PID", strconv.Itoa(p.pid)).Run()
	}
	proc, err := os.FindProcess(p.pid)
	if err != nil {
		return nil
	}
	return proc.Kill()
}

// terminatePID requests an orderly exit: WM_CLOSE via taskkill on Windows,
// SIGTERM elsewhere.
func terminatePID(pid int, proc *os.Process) error {
	if runtime.GOOS == "windows" {
		return exec.Command("taskkill", "/PID", strconv.Itoa(pid)).Run()
	}
	return proc.Signal(syscall.SIGTERM)
}
