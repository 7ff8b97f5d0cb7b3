package winappdriver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

const mainSource = `<?xml version="1.0" encoding="utf-16"?>
<Window Name="Proton Mail Bridge" RuntimeId="42.1" x="0" y="0" width="800" height="600">
  <Button Name="Sign in" AutomationId="signIn" RuntimeId="42.1.5" IsEnabled="True"/>
  <Edit Name="Username" RuntimeId="42.1.6"/>
  <Text Name="static"/>
  %s
</Window>`

const popupSource = `<Window Name="Notification" RuntimeId="42.1.9" IsOffscreen="False">
    <Text Name="Bridge is up to date" RuntimeId="42.1.9.1"/>
    <Button Name="OK" RuntimeId="42.1.9.2"/>
  </Window>`

// fakeServer emulates the WinAppDriver endpoints the driver uses.
type fakeServer struct {
	t *testing.T

	mu       sync.Mutex
	popup    bool
	explorer bool
	sessions []map[string]interface{} // capabilities per created session
	calls    []string
	keys     []string
	stale    map[string]bool // runtime ids that no longer resolve
}

func newFakeServer(t *testing.T) (*fakeServer, string) {
	f := &fakeServer{t: t, stale: map[string]bool{}}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server.URL
}

func (f *fakeServer) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeServer) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]interface{}
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	path := r.URL.Path

	switch {
	case r.Method == http.MethodPost && path == "/session":
		caps := body["capabilities"].(map[string]interface{})["alwaysMatch"].(map[string]interface{})
		f.sessions = append(f.sessions, caps)
		id := "root"
		if _, ok := caps["appium:appTopLevelWindow"]; ok {
			id = fmt.Sprintf("win%d", len(f.sessions)-1)
		}
		writeJSON(w, map[string]interface{}{"value": map[string]interface{}{"sessionId": id}})

	case r.Method == http.MethodDelete:
		f.record("DELETE " + path)
		writeJSON(w, map[string]interface{}{"value": nil})

	case strings.HasSuffix(path, "/timeouts"):
		writeJSON(w, map[string]interface{}{"value": nil})

	case path == "/session/root/elements":
		var ids []interface{}
		switch body["value"] {
		case "Proton Mail Bridge":
			ids = append(ids, map[string]interface{}{w3cElementKey: "main"})
		case "CabinetWClass":
			if f.explorer {
				ids = append(ids, map[string]interface{}{w3cElementKey: "explorer"})
			}
		}
		writeJSON(w, map[string]interface{}{"value": ids})

	case strings.HasPrefix(path, "/session/root/element/"):
		parts := strings.Split(path, "/")
		elem, rest := parts[4], strings.Join(parts[5:], "/")
		handles := map[string]string{"main": "660", "explorer": "4096"}
		titles := map[string]string{"main": "Proton Mail Bridge", "explorer": "logs"}
		switch rest {
		case "attribute/NativeWindowHandle":
			writeJSON(w, map[string]interface{}{"value": handles[elem]})
		case "attribute/Name":
			writeJSON(w, map[string]interface{}{"value": titles[elem]})
		case "rect":
			writeJSON(w, map[string]interface{}{"value": map[string]interface{}{
				"x": 0.0, "y": 0.0, "width": 800.0, "height": 600.0,
			}})
		default:
			writeError(w, http.StatusNotFound, "unknown command", rest)
		}

	case strings.HasSuffix(path, "/source"):
		popup := ""
		if f.popup {
			popup = popupSource
		}
		writeJSON(w, map[string]interface{}{"value": fmt.Sprintf(mainSource, popup)})

	case strings.HasSuffix(path, "/element"):
		value, _ := body["value"].(string)
		using, _ := body["using"].(string)
		if using == ByXPath {
			rid := strings.TrimSuffix(strings.TrimPrefix(value, "//*[@RuntimeId='"), "']")
			if f.stale[rid] {
				writeError(w, http.StatusNotFound, "no such element", value)
				return
			}
			value = rid
		}
		writeJSON(w, map[string]interface{}{"value": map[string]interface{}{w3cElementKey: value}})

	case strings.HasSuffix(path, "/keys"):
		for _, k := range body["value"].([]interface{}) {
			f.keys = append(f.keys, k.(string))
		}
		f.record("POST " + path)
		writeJSON(w, map[string]interface{}{"value": nil})

	case strings.HasSuffix(path, "/window"):
		f.record(fmt.Sprintf("POST %s %v", path, body["handle"]))
		writeJSON(w, map[string]interface{}{"value": nil})

	case r.Method == http.MethodPost:
		if v, ok := body["yoffset"]; ok {
			f.record(fmt.Sprintf("POST %s %v", path, v))
		} else if v, ok := body["text"]; ok {
			f.record(fmt.Sprintf("POST %s %v", path, v))
		} else {
			f.record("POST " + path)
		}
		writeJSON(w, map[string]interface{}{"value": nil})

	default:
		writeError(w, http.StatusNotFound, "unknown command", path)
	}
}

func newTestDriver(t *testing.T) (*Driver, *fakeServer) {
	t.Helper()
	f, url := newFakeServer(t)
	d, err := NewDriver(context.Background(), Options{URL: url})
	require.NoError(t, err)
	return d, f
}

func TestNewDriver_DesktopSession(t *testing.T) {
	_, f := newTestDriver(t)
	require.Len(t, f.sessions, 1)
	assert.Equal(t, "Root", f.sessions[0]["appium:app"])
	assert.Equal(t, "Windows", f.sessions[0]["platformName"])
}

func TestNewDriver_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewDriver(context.Background(), Options{URL: url})
	assert.True(t, errors.Is(err, core.ErrServerUnreachable), "got %v", err)
}

func TestDriver_Windows(t *testing.T) {
	d, f := newTestDriver(t)
	ctx := context.Background()

	wins, err := d.Windows(ctx)
	require.NoError(t, err)
	require.Len(t, wins, 1)
	assert.Equal(t, core.WindowMain, wins[0].Kind)
	assert.Equal(t, "Proton Mail Bridge", wins[0].Title)
	assert.Equal(t, "0x294", wins[0].Handle)
	assert.Equal(t, 800, wins[0].Bounds.Width)

	f.mu.Lock()
	f.popup, f.explorer = true, true
	f.mu.Unlock()

	wins, err = d.Windows(ctx)
	require.NoError(t, err)
	var kinds []core.WindowKind
	for _, w := range wins {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []core.WindowKind{core.WindowMain, core.WindowNotification, core.WindowFileExplorer}, kinds)
	assert.Equal(t, "0x1000", wins[2].Handle)
}

func TestDriver_TreeAttachesToWindow(t *testing.T) {
	d, f := newTestDriver(t)

	tree, err := d.Tree(context.Background(), core.WindowMain)
	require.NoError(t, err)
	assert.Equal(t, "Proton Mail Bridge", tree.Name)
	assert.Len(t, tree.Children, 3)

	require.Len(t, f.sessions, 2)
	assert.Equal(t, "0x294", f.sessions[1]["appium:appTopLevelWindow"])
	assert.NotContains(t, f.sessions[1], "appium:app")

	// The attached session is reused.
	_, err = d.Tree(context.Background(), core.WindowMain)
	require.NoError(t, err)
	assert.Len(t, f.sessions, 2)
}

func TestDriver_TreeMissingWindow(t *testing.T) {
	d, _ := newTestDriver(t)
	_, err := d.Tree(context.Background(), core.WindowBrowser)
	assert.True(t, errors.Is(err, core.ErrElementNotFound), "got %v", err)
}

func TestDriver_NotificationTree(t *testing.T) {
	d, f := newTestDriver(t)
	ctx := context.Background()

	_, err := d.Tree(ctx, core.WindowNotification)
	assert.True(t, errors.Is(err, core.ErrElementNotFound))

	f.mu.Lock()
	f.popup = true
	f.mu.Unlock()

	popup, err := d.Tree(ctx, core.WindowNotification)
	require.NoError(t, err)
	assert.Equal(t, "Notification", popup.Name)
	assert.Nil(t, popup.Parent)
	assert.Equal(t, 0, popup.Depth)

	ok := popup.Children[1]
	require.NoError(t, d.Click(ctx, ok))
	assert.True(t, f.called("POST /session/win1/element/42.1.9.2/click"))
}

func TestDriver_InputByRuntimeID(t *testing.T) {
	d, f := newTestDriver(t)
	ctx := context.Background()

	tree, err := d.Tree(ctx, core.WindowMain)
	require.NoError(t, err)
	signIn, username := tree.Children[0], tree.Children[1]

	require.NoError(t, d.Click(ctx, signIn))
	require.NoError(t, d.Toggle(ctx, signIn))
	require.NoError(t, d.SetText(ctx, username, "user@pm.me"))
	require.NoError(t, d.MoveTo(ctx, signIn))
	require.NoError(t, d.Scroll(ctx, signIn, -2))

	assert.True(t, f.called("POST /session/win1/element/42.1.5/click"))
	assert.True(t, f.called("POST /session/win1/element/42.1.6/clear"))
	assert.True(t, f.called("POST /session/win1/element/42.1.6/value user@pm.me"))
	assert.True(t, f.called("POST /session/win1/moveto"))
	assert.True(t, f.called("POST /session/win1/touch/scroll -240"))
}

func TestDriver_FallbackLocatorByName(t *testing.T) {
	d, f := newTestDriver(t)
	ctx := context.Background()

	tree, err := d.Tree(ctx, core.WindowMain)
	require.NoError(t, err)
	require.NoError(t, d.Click(ctx, tree.Children[2]))
	assert.True(t, f.called("POST /session/win1/element/static/click"))
}

func TestDriver_StaleElement(t *testing.T) {
	d, f := newTestDriver(t)
	ctx := context.Background()

	tree, err := d.Tree(ctx, core.WindowMain)
	require.NoError(t, err)

	f.mu.Lock()
	f.stale["42.1.5"] = true
	f.mu.Unlock()

	err = d.Click(ctx, tree.Children[0])
	assert.True(t, errors.Is(err, core.ErrStaleElement), "got %v", err)
}

func TestDriver_ForeignNodeIsStale(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	old, err := d.Tree(ctx, core.WindowMain)
	require.NoError(t, err)
	_, err = d.Tree(ctx, core.WindowMain)
	require.NoError(t, err)

	err = d.Click(ctx, old.Children[0])
	assert.True(t, errors.Is(err, core.ErrStaleElement), "got %v", err)
	assert.True(t, errors.Is(d.Click(ctx, nil), core.ErrStaleElement))
}

func TestDriver_FocusAndKeys(t *testing.T) {
	d, f := newTestDriver(t)
	ctx := context.Background()

	require.NoError(t, d.FocusWindow(ctx, core.WindowMain))
	assert.True(t, f.called("POST /session/win1/window 0x294"))

	require.NoError(t, d.PressKey(ctx, core.KeyEnter))
	require.NoError(t, d.PressKey(ctx, core.KeyAltF4))
	assert.Equal(t, []string{"\uE007", "\uE00A", "\uE034", "\uE000"}, f.keys)

	assert.Error(t, d.PressKey(ctx, core.Key("ctrl+z")))
}

func TestDriver_PressKeyWithoutFocus(t *testing.T) {
	d, f := newTestDriver(t)
	require.NoError(t, d.PressKey(context.Background(), core.KeyEscape))
	assert.True(t, f.called("POST /session/win1/keys"))
}

func TestDriver_Close(t *testing.T) {
	d, f := newTestDriver(t)
	ctx := context.Background()

	_, err := d.Tree(ctx, core.WindowMain)
	require.NoError(t, err)
	require.NoError(t, d.Close(ctx))

	assert.True(t, f.called("DELETE /session/win1"))
	assert.True(t, f.called("DELETE /session/root"))
}
