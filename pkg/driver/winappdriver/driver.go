package winappdriver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

// scrollStep is the pixel offset of one wheel notch.
const scrollStep = 120

// WebDriver key codes.
var keyCodes = map[core.Key]string{
	core.KeyEnter:  "\uE007",
	core.KeyEscape: "\uE00C",
	core.KeyTab:    "\uE004",
	core.KeyDelete: "\uE017",
	core.KeyAltF4:  "\uE00A\uE034\uE000", // Alt down, F4, release modifiers
}

// WindowMatch locates a top-level window from the desktop session. ClassName
// wins when both are set.
type WindowMatch struct {
	Name      string `yaml:"name"`
	ClassName string `yaml:"class_name"`
}

// Options configures the driver.
type Options struct {
	URL string

	// Windows maps each window kind to its locator. The notification window
	// is the first nested Window element of the main window and needs no entry.
	Windows map[core.WindowKind]WindowMatch
}

// DefaultWindows returns the locators for a stock Windows desktop.
func DefaultWindows() map[core.WindowKind]WindowMatch {
	return map[core.WindowKind]WindowMatch{
		core.WindowMain:         {Name: "Proton Mail Bridge"},
		core.WindowBrowser:      {ClassName: "Chrome_WidgetWin_1"},
		core.WindowFileExplorer: {ClassName: "CabinetWClass"},
	}
}

// snapshot remembers which session produced a tree so input on its nodes
// goes to the right window.
type snapshot struct {
	root   *uitree.Node
	client *Client
}

// Driver implements core.Driver over a WinAppDriver server. It holds one
// desktop ("Root") session for window discovery and one attached session per
// top-level window.
type Driver struct {
	opts Options
	root *Client

	mu        sync.Mutex
	attached  map[string]*Client // by native window handle
	snapshots map[core.WindowKind]snapshot
	focused   *Client
}

var _ core.Driver = (*Driver)(nil)

// NewDriver opens the desktop session.
func NewDriver(ctx context.Context, opts Options) (*Driver, error) {
	if opts.Windows == nil {
		opts.Windows = DefaultWindows()
	}
	root := NewClient(opts.URL)
	if err := root.Connect(ctx, capabilities("Root")); err != nil {
		return nil, err
	}
	if err := root.SetImplicitWait(ctx, 0); err != nil {
		logger.Warn("Failed to clear implicit wait on desktop session: %v", err)
	}
	logger.Info("WinAppDriver desktop session %s at %s", root.SessionID(), opts.URL)

	return &Driver{
		opts:      opts,
		root:      root,
		attached:  make(map[string]*Client),
		snapshots: make(map[core.WindowKind]snapshot),
	}, nil
}

// Close ends every session.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for handle, c := range d.attached {
		if err := c.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("window %s: %w", handle, err))
		}
	}
	d.attached = make(map[string]*Client)
	d.snapshots = make(map[core.WindowKind]snapshot)
	d.focused = nil
	if err := d.root.Disconnect(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func capabilities(app string) map[string]interface{} {
	return map[string]interface{}{
		"platformName":             "Windows",
		"appium:automationName":    "Windows",
		"appium:deviceName":        "WindowsPC",
		"appium:app":               app,
		"appium:newCommandTimeout": 0,
	}
}

// Tree implements core.Driver.
func (d *Driver) Tree(ctx context.Context, window core.WindowKind) (*uitree.Node, error) {
	host := window
	if window == core.WindowNotification {
		host = core.WindowMain
	}
	info, err := d.findWindow(ctx, host)
	if err != nil {
		return nil, err
	}
	c, err := d.session(ctx, info)
	if err != nil {
		return nil, err
	}
	src, err := c.Source(ctx)
	if err != nil {
		d.forget(info.Handle, err)
		return nil, err
	}
	tree, err := uitree.Parse(src)
	if err != nil {
		return nil, err
	}

	if window == core.WindowNotification {
		popup := findPopup(tree)
		if popup == nil {
			return nil, core.ErrElementNotFound.WithMessage("no notification window")
		}
		popup.Parent = nil
		popup.Depth = 0
		popup.Link()
		tree = popup
	}

	d.mu.Lock()
	d.snapshots[window] = snapshot{root: tree, client: c}
	d.mu.Unlock()
	return tree, nil
}

// findPopup returns the first Window nested inside a window tree.
func findPopup(tree *uitree.Node) *uitree.Node {
	for _, n := range tree.Descendants() {
		if n.Role == uitree.RoleWindow && !n.Offscreen {
			return n
		}
	}
	return nil
}

// Click implements core.Driver.
func (d *Driver) Click(ctx context.Context, ref *uitree.Node) error {
	c, id, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	return c.ClickElement(ctx, id)
}

// SetText implements core.Driver.
func (d *Driver) SetText(ctx context.Context, ref *uitree.Node, text string) error {
	c, id, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := c.ClearElement(ctx, id); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return c.SendElementKeys(ctx, id, text)
}

// Toggle implements core.Driver. A click flips both check boxes and
// QML switches.
func (d *Driver) Toggle(ctx context.Context, ref *uitree.Node) error {
	return d.Click(ctx, ref)
}

// MoveTo implements core.Driver.
func (d *Driver) MoveTo(ctx context.Context, ref *uitree.Node) error {
	c, id, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	return c.MoveTo(ctx, id)
}

// Scroll implements core.Driver.
func (d *Driver) Scroll(ctx context.Context, ref *uitree.Node, delta int) error {
	c, id, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	return c.Scroll(ctx, id, 0, delta*scrollStep)
}

// PressKey implements core.Driver. Keys go to the last focused window, or
// the main window when nothing was focused yet.
func (d *Driver) PressKey(ctx context.Context, key core.Key) error {
	code, ok := keyCodes[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}

	d.mu.Lock()
	c := d.focused
	d.mu.Unlock()
	if c == nil {
		info, err := d.findWindow(ctx, core.WindowMain)
		if err != nil {
			return err
		}
		if c, err = d.session(ctx, info); err != nil {
			return err
		}
	}
	return c.SendKeys(ctx, code)
}

// FocusWindow implements core.Driver.
func (d *Driver) FocusWindow(ctx context.Context, window core.WindowKind) error {
	host := window
	if window == core.WindowNotification {
		host = core.WindowMain
	}
	info, err := d.findWindow(ctx, host)
	if err != nil {
		return err
	}
	c, err := d.session(ctx, info)
	if err != nil {
		return err
	}
	if err := c.SwitchToWindow(ctx, info.Handle); err != nil {
		d.forget(info.Handle, err)
		return err
	}
	d.mu.Lock()
	d.focused = c
	d.mu.Unlock()
	return nil
}

// Windows implements core.Driver. The notification window is listed when
// the main window hosts a popup.
func (d *Driver) Windows(ctx context.Context) ([]core.WindowInfo, error) {
	var out []core.WindowInfo
	for _, kind := range []core.WindowKind{core.WindowMain, core.WindowBrowser, core.WindowFileExplorer} {
		if _, ok := d.opts.Windows[kind]; !ok {
			continue
		}
		info, err := d.findWindow(ctx, kind)
		if errors.Is(err, core.ErrElementNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, info)

		if kind == core.WindowMain {
			if popup, err := d.Tree(ctx, core.WindowNotification); err == nil {
				out = append(out, core.WindowInfo{
					Kind:   core.WindowNotification,
					Title:  popup.Name,
					Handle: info.Handle,
					Bounds: popup.Bounds,
				})
			}
		}
	}
	return out, nil
}

// findWindow looks a top-level window up from the desktop session.
func (d *Driver) findWindow(ctx context.Context, kind core.WindowKind) (core.WindowInfo, error) {
	m, ok := d.opts.Windows[kind]
	if !ok {
		return core.WindowInfo{}, fmt.Errorf("no locator for %s window", kind)
	}
	strategy, value := ByName, m.Name
	if m.ClassName != "" {
		strategy, value = ByClassName, m.ClassName
	}

	ids, err := d.root.FindElements(ctx, strategy, value)
	if err != nil {
		return core.WindowInfo{}, err
	}
	if len(ids) == 0 {
		return core.WindowInfo{}, core.ErrElementNotFound.WithMessagef("no %s window", kind)
	}
	id := ids[0]

	raw, err := d.root.GetElementAttribute(ctx, id, "NativeWindowHandle")
	if err != nil {
		return core.WindowInfo{}, err
	}
	hwnd, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || hwnd == 0 {
		return core.WindowInfo{}, core.ErrStaleElement.WithMessagef("%s window has no native handle (%q)", kind, raw)
	}
	title, err := d.root.GetElementAttribute(ctx, id, "Name")
	if err != nil {
		return core.WindowInfo{}, err
	}
	x, y, w, h, err := d.root.GetElementRect(ctx, id)
	if err != nil {
		return core.WindowInfo{}, err
	}

	return core.WindowInfo{
		Kind:   kind,
		Title:  title,
		Handle: "0x" + strconv.FormatInt(hwnd, 16),
		Bounds: uitree.Bounds{X: x, Y: y, Width: w, Height: h},
	}, nil
}

// session returns the session attached to a window, creating it on first use.
func (d *Driver) session(ctx context.Context, info core.WindowInfo) (*Client, error) {
	d.mu.Lock()
	c, ok := d.attached[info.Handle]
	d.mu.Unlock()
	if ok {
		return c, nil
	}

	caps := capabilities("")
	delete(caps, "appium:app")
	caps["appium:appTopLevelWindow"] = info.Handle

	c = NewClient(d.opts.URL)
	if err := c.Connect(ctx, caps); err != nil {
		return nil, fmt.Errorf("attach to %s window %s: %w", info.Kind, info.Handle, err)
	}
	if err := c.SetImplicitWait(ctx, 0); err != nil {
		logger.Warn("Failed to clear implicit wait on %s window: %v", info.Kind, err)
	}
	logger.Debug("Attached session %s to %s window %s", c.SessionID(), info.Kind, info.Handle)

	d.mu.Lock()
	existing, ok := d.attached[info.Handle]
	if !ok {
		d.attached[info.Handle] = c
	}
	d.mu.Unlock()
	if ok {
		// Lost a race with another caller; keep theirs.
		_ = c.Disconnect(ctx)
		return existing, nil
	}
	return c, nil
}

// forget drops a window session whose window went away.
func (d *Driver) forget(handle string, err error) {
	if !errors.Is(err, core.ErrSessionUnavailable) && !errors.Is(err, core.ErrStaleElement) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.attached[handle]
	if !ok {
		return
	}
	delete(d.attached, handle)
	if d.focused == c {
		d.focused = nil
	}
	for kind, s := range d.snapshots {
		if s.client == c {
			delete(d.snapshots, kind)
		}
	}
}

// resolve finds the live element behind a snapshot node. A node whose
// control no longer exists yields ErrStaleElement.
func (d *Driver) resolve(ctx context.Context, ref *uitree.Node) (*Client, string, error) {
	if ref == nil {
		return nil, "", core.ErrStaleElement.WithMessage("nil element reference")
	}
	top := ref
	for top.Parent != nil {
		top = top.Parent
	}

	d.mu.Lock()
	var c *Client
	for _, s := range d.snapshots {
		if s.root == top {
			c = s.client
			break
		}
	}
	d.mu.Unlock()
	if c == nil {
		return nil, "", core.ErrStaleElement.WithMessagef("%s is not from a current snapshot", ref.Label())
	}

	var strategy, value string
	switch {
	case ref.RuntimeID != "":
		strategy, value = ByXPath, fmt.Sprintf("//*[@RuntimeId='%s']", ref.RuntimeID)
	case ref.AutomationID != "":
		strategy, value = ByAccessibilityID, ref.AutomationID
	case ref.Name != "":
		strategy, value = ByName, ref.Name
	default:
		return nil, "", core.ErrStaleElement.WithMessagef("%s has no locator", ref.Path())
	}

	id, err := c.FindElement(ctx, strategy, value)
	if errors.Is(err, core.ErrElementNotFound) {
		return nil, "", core.ErrStaleElement.WithMessagef("%s no longer exists", ref.Label()).WithCause(err)
	}
	if err != nil {
		return nil, "", err
	}
	return c, id, nil
}
