package mock

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

var _ core.Driver = (*App)(nil)

// Tree advances the simulation one tick and returns a snapshot of window.
func (a *App) Tree(ctx context.Context, window core.WindowKind) (*uitree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	switch window {
	case core.WindowBrowser:
		if !a.browserOpen {
			return nil, core.ErrElementNotFound.WithMessage("no browser window")
		}
		return a.renderBrowser(newBuilder()), nil
	case core.WindowFileExplorer:
		if !a.explorerOpen {
			return nil, core.ErrElementNotFound.WithMessage("no file explorer window")
		}
		return a.renderExplorer(newBuilder()), nil
	}

	if !a.running {
		return nil, core.ErrSessionUnavailable.WithMessage("application is not running")
	}
	a.tick()
	if !a.running {
		return nil, core.ErrSessionUnavailable.WithMessage("application exited")
	}

	win := a.renderMain(newBuilder())
	if window == core.WindowNotification {
		for _, c := range win.Children {
			if c.RuntimeID == "popup" {
				c.Parent = nil
				c.Depth = 0
				c.Link()
				return c, nil
			}
		}
		return nil, core.ErrElementNotFound.WithMessage("no notification window")
	}
	return win, nil
}

// resolve re-renders without ticking and looks ref up by runtime id.
// Caller holds mu.
func (a *App) resolve(ref *uitree.Node) (*uitree.Node, *binding, error) {
	if ref == nil {
		return nil, nil, core.ErrElementNotFound.WithMessage("nil element reference")
	}
	b := newBuilder()
	var roots []*uitree.Node
	if a.running {
		roots = append(roots, a.renderMain(b))
	}
	if a.browserOpen {
		roots = append(roots, a.renderBrowser(b))
	}
	if a.explorerOpen {
		roots = append(roots, a.renderExplorer(b))
	}
	if len(roots) == 0 {
		return nil, nil, core.ErrSessionUnavailable.WithMessage("application is not running")
	}

	var found *uitree.Node
	for _, root := range roots {
		root.Walk(func(n *uitree.Node) bool {
			if n.RuntimeID == ref.RuntimeID {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			break
		}
	}
	if found == nil {
		return nil, nil, core.ErrStaleElement.WithMessage(ref.Label() + " no longer exists")
	}
	if found.Offscreen {
		return nil, nil, fmt.Errorf("%s is offscreen", found.Label())
	}
	if blocked := a.modalBlocks(found); blocked != "" {
		return nil, nil, fmt.Errorf("%s is covered by %s", found.Label(), blocked)
	}
	return found, b.bindings[found.RuntimeID], nil
}

// modalBlocks names the modal window covering n, if any.
func (a *App) modalBlocks(n *uitree.Node) string {
	top := n
	for top.Parent != nil && top.Parent.RuntimeID != "main" {
		top = top.Parent
	}
	if top.Parent == nil {
		return ""
	}
	switch {
	case a.dialog != nil && top.RuntimeID != "dialog":
		return "the " + a.dialog.title + " dialog"
	case a.dialog == nil && a.visiblePopup() != nil && top.RuntimeID != "popup":
		return "the " + a.popup.title + " popup"
	}
	return ""
}

func (a *App) input(ctx context.Context, ref *uitree.Node, fn func(n *uitree.Node, bind *binding) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n, bind, err := a.resolve(ref)
	if err != nil {
		return err
	}
	return fn(n, bind)
}

// Click runs the element's click handler. Clicks on disabled or inert
// elements are ignored, like a real pointer click.
func (a *App) Click(ctx context.Context, ref *uitree.Node) error {
	return a.input(ctx, ref, func(n *uitree.Node, bind *binding) error {
		if !n.Enabled || bind == nil || bind.click == nil {
			return nil
		}
		return bind.click()
	})
}

// SetText replaces the content of an editable element.
func (a *App) SetText(ctx context.Context, ref *uitree.Node, text string) error {
	return a.input(ctx, ref, func(n *uitree.Node, bind *binding) error {
		if bind == nil || bind.setText == nil {
			return fmt.Errorf("%s is not editable", n.Label())
		}
		return bind.setText(text)
	})
}

// Toggle flips a check box.
func (a *App) Toggle(ctx context.Context, ref *uitree.Node) error {
	return a.input(ctx, ref, func(n *uitree.Node, bind *binding) error {
		if n.Role != uitree.RoleCheckBox {
			return fmt.Errorf("%s does not support toggling", n.Label())
		}
		if !n.Enabled || bind == nil || bind.click == nil {
			return nil
		}
		return bind.click()
	})
}

// MoveTo only checks that the element is still there.
func (a *App) MoveTo(ctx context.Context, ref *uitree.Node) error {
	return a.input(ctx, ref, func(*uitree.Node, *binding) error { return nil })
}

// Scroll scrolls a scrollable pane. Other elements ignore the wheel.
func (a *App) Scroll(ctx context.Context, ref *uitree.Node, delta int) error {
	return a.input(ctx, ref, func(_ *uitree.Node, bind *binding) error {
		if bind == nil || bind.scroll == nil {
			return nil
		}
		return bind.scroll(delta)
	})
}

// PressKey sends a key to whatever has focus: the file dialog, a popup, or
// the current page.
func (a *App) PressKey(ctx context.Context, key core.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if key == core.KeyAltF4 {
		switch a.focused {
		case core.WindowBrowser:
			a.browserOpen = false
		case core.WindowFileExplorer:
			a.explorerOpen = false
		}
		a.focused = core.WindowMain
		return nil
	}
	if !a.running {
		return core.ErrSessionUnavailable.WithMessage("application is not running")
	}

	switch {
	case a.dialog != nil:
		switch key {
		case core.KeyEnter:
			return a.commitRename()
		case core.KeyDelete:
			return a.deleteSelected()
		case core.KeyEscape:
			a.dialog = nil
		}
	case a.visiblePopup() != nil:
		if key == core.KeyEscape {
			a.popup = nil
		}
	case a.page == pageLogin && key == core.KeyEnter && !a.login.pending:
		a.submitLogin()
	case a.page == pageMailbox && key == core.KeyEnter:
		a.submitMailbox()
	}
	return nil
}

// FocusWindow brings a window to the foreground.
func (a *App) FocusWindow(ctx context.Context, window core.WindowKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var ok bool
	switch window {
	case core.WindowMain:
		ok = a.running
	case core.WindowNotification:
		ok = a.running && a.visiblePopup() != nil
	case core.WindowBrowser:
		ok = a.browserOpen
	case core.WindowFileExplorer:
		ok = a.explorerOpen
	}
	if !ok {
		return core.ErrElementNotFound.WithMessagef("no %s window", window)
	}
	if window != core.WindowNotification {
		a.focused = window
	}
	return nil
}

// Windows lists the visible top-level windows. The main window shows up
// BootTicks polls after launch.
func (a *App) Windows(ctx context.Context) ([]core.WindowInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []core.WindowInfo
	if a.running {
		if a.bootTicks > 0 {
			a.bootTicks--
		} else {
			out = append(out, core.WindowInfo{
				Kind:   core.WindowMain,
				Title:  MainTitle,
				Handle: fmt.Sprintf("0x%06X", a.pid),
				Bounds: uitree.Bounds{Width: 800, Height: 600},
			})
			if p := a.visiblePopup(); p != nil {
				out = append(out, core.WindowInfo{Kind: core.WindowNotification, Title: p.title})
			}
		}
	}
	if a.browserOpen {
		out = append(out, core.WindowInfo{Kind: core.WindowBrowser, Title: BrowserTitle})
	}
	if a.explorerOpen {
		out = append(out, core.WindowInfo{Kind: core.WindowFileExplorer, Title: ExplorerTitle})
	}
	return out, nil
}
