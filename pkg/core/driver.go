package core

import (
	"context"
	"time"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

// Driver is the locator and input-injection capability over the application's
// accessibility tree. Implementations: WinAppDriver, the simulated application.
//
// Tree returns a fresh snapshot on every call. Element references are nodes
// from a snapshot; implementations re-resolve them on use and report
// ErrStaleElement when the control no longer exists.
type Driver interface {
	// Tree captures the accessibility tree of the given window.
	Tree(ctx context.Context, window WindowKind) (*uitree.Node, error)

	// Click performs a left click on the element.
	Click(ctx context.Context, ref *uitree.Node) error

	// SetText replaces the content of an editable element.
	SetText(ctx context.Context, ref *uitree.Node, text string) error

	// Toggle flips a check box or toggle switch.
	Toggle(ctx context.Context, ref *uitree.Node) error

	// PressKey sends a key to the focused window.
	PressKey(ctx context.Context, key Key) error

	// MoveTo hovers the pointer over the element.
	MoveTo(ctx context.Context, ref *uitree.Node) error

	// Scroll scrolls the element by delta wheel notches (negative scrolls up).
	Scroll(ctx context.Context, ref *uitree.Node, delta int) error

	// FocusWindow brings a window of the given kind to the foreground.
	FocusWindow(ctx context.Context, window WindowKind) error

	// Windows lists the top-level windows currently visible.
	Windows(ctx context.Context) ([]WindowInfo, error)
}

// WindowKind identifies a top-level window the harness interacts with.
type WindowKind string

// Window kinds
const (
	WindowMain         WindowKind = "main"          // Bridge main window
	WindowNotification WindowKind = "notification"  // Popup hosted by the main window
	WindowBrowser      WindowKind = "browser"       // Help topics opened in the default browser
	WindowFileExplorer WindowKind = "file-explorer" // Logs folder
)

// WindowInfo describes one top-level window.
type WindowInfo struct {
	Kind   WindowKind    `json:"kind"`
	Title  string        `json:"title"`
	Handle string        `json:"handle,omitempty"`
	Bounds uitree.Bounds `json:"bounds"`
}

// Key is a named key or shortcut.
type Key string

// Keys used by the screens.
const (
	KeyEnter  Key = "enter"
	KeyEscape Key = "escape"
	KeyTab    Key = "tab"
	KeyDelete Key = "delete"
	KeyAltF4  Key = "alt+f4"
)

// LogEntry represents a single log message captured during execution
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`  // debug, info, warn, error
	Source    string    `json:"source"` // runner, session, screen
	Message   string    `json:"message"`
}
