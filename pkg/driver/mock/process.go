package mock

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/process"
)

// Processes returns a process manager that launches and finds the app.
func (a *App) Processes() process.Manager {
	return &processes{app: a}
}

type processes struct {
	app *App
}

func (p *processes) Find(ctx context.Context, name string) (process.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running || !sameImage(name, a.cfg.ProcessName) {
		return nil, process.ErrNotRunning
	}
	return &handle{app: a, pid: a.pid}, nil
}

// Launch starts the app. A second launch while running hands back the
// existing instance, as the single-instance lock does.
func (p *processes) Launch(ctx context.Context, path string, args ...string) (process.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		a.start()
	}
	return &handle{app: a, pid: a.pid}, nil
}

func sameImage(a, b string) bool {
	trim := func(s string) string {
		s = filepath.Base(s)
		return strings.TrimSuffix(strings.ToLower(s), ".exe")
	}
	return trim(a) == trim(b)
}

type handle struct {
	app *App
	pid int
}

func (h *handle) PID() int { return h.pid }

func (h *handle) Alive() bool {
	h.app.mu.Lock()
	defer h.app.mu.Unlock()
	return h.app.running && h.app.pid == h.pid
}

func (h *handle) Terminate() error {
	h.app.mu.Lock()
	defer h.app.mu.Unlock()
	if h.app.cfg.IgnoreTerminate {
		return nil
	}
	if h.app.running && h.app.pid == h.pid {
		h.app.exit()
	}
	return nil
}

func (h *handle) Kill() error {
	h.app.mu.Lock()
	defer h.app.mu.Unlock()
	if h.app.running && h.app.pid == h.pid {
		h.app.exit()
	}
	return nil
}
