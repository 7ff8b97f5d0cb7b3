package winappdriver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

// writeJSON encodes data as JSON to the response writer.
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, errType, msg string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]interface{}{
		"value": map[string]interface{}{"error": errType, "message": msg},
	})
}

func connected(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient(server.URL + "/")
	c.sessionID = "s1"
	return c
}

func TestClient_Connect(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/session", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"sessionId": "abc"},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	require.NoError(t, c.Connect(context.Background(), map[string]interface{}{
		"platformName": "Windows",
		"appium:app":   "Root",
	}))
	assert.Equal(t, "abc", c.SessionID())

	w3c := body["capabilities"].(map[string]interface{})["alwaysMatch"].(map[string]interface{})
	assert.Equal(t, "Root", w3c["appium:app"])
	legacy := body["desiredCapabilities"].(map[string]interface{})
	assert.Equal(t, "Root", legacy["app"])
	assert.Equal(t, "Windows", legacy["platformName"])
}

func TestClient_ConnectLegacyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"sessionId": "legacy", "status": 0, "value": map[string]interface{}{}})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	require.NoError(t, c.Connect(context.Background(), nil))
	assert.Equal(t, "legacy", c.SessionID())
}

func TestClient_ConnectNoSessionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"value": map[string]interface{}{}})
	}))
	defer server.Close()

	err := NewClient(server.URL).Connect(context.Background(), nil)
	assert.Error(t, err)
}

func TestClient_ServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewClient(url).Connect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrServerUnreachable), "got %v", err)
}

func TestClient_CanceledContext(t *testing.T) {
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"value": nil})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Source(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Disconnect(t *testing.T) {
	deleted := false
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/session/s1" {
			deleted = true
		}
		writeJSON(w, map[string]interface{}{"value": nil})
	})

	require.NoError(t, c.Disconnect(context.Background()))
	assert.True(t, deleted)
	assert.Empty(t, c.SessionID())
	// Second call is a no-op.
	require.NoError(t, c.Disconnect(context.Background()))
}

func TestClient_FindElement(t *testing.T) {
	var using, value string
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		using, value = req["using"], req["value"]
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{w3cElementKey: "42.1"},
		})
	})

	id, err := c.FindElement(context.Background(), ByAccessibilityID, "signIn")
	require.NoError(t, err)
	assert.Equal(t, "42.1", id)
	assert.Equal(t, "accessibility id", using)
	assert.Equal(t, "signIn", value)
}

func TestClient_FindElementLegacyID(t *testing.T) {
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status": 0,
			"value":  map[string]interface{}{"ELEMENT": "7"},
		})
	})

	id, err := c.FindElement(context.Background(), ByName, "OK")
	require.NoError(t, err)
	assert.Equal(t, "7", id)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		errType string
		want    error
	}{
		{"no such element", "no such element", core.ErrElementNotFound},
		{"stale element", "stale element reference", core.ErrStaleElement},
		{"window closed", "no such window", core.ErrStaleElement},
		{"session gone", "invalid session id", core.ErrSessionUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := connected(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusNotFound, tt.errType, "boom")
			})
			err := c.ClickElement(context.Background(), "1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClient_UnknownErrorIsNotRetryable(t *testing.T) {
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusInternalServerError, "unknown error", "COM failure")
	})
	err := c.ClickElement(context.Background(), "1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrElementNotFound))
	assert.Contains(t, err.Error(), "COM failure")
}

func TestClient_LegacyStatusCodes(t *testing.T) {
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status": 7,
			"value":  map[string]interface{}{"message": "An element could not be located"},
		})
	})
	_, err := c.FindElement(context.Background(), ByName, "Nope")
	assert.True(t, errors.Is(err, core.ErrElementNotFound), "got %v", err)
}

func TestClient_FindElementsEmptyOnNotFound(t *testing.T) {
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such element", "none")
	})
	ids, err := c.FindElements(context.Background(), ByClassName, "CabinetWClass")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestClient_SendElementKeys(t *testing.T) {
	var req map[string]interface{}
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/s1/element/e1/value", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, map[string]interface{}{"value": nil})
	})

	require.NoError(t, c.SendElementKeys(context.Background(), "e1", "pä"))
	assert.Equal(t, "pä", req["text"])
	assert.Equal(t, []interface{}{"p", "ä"}, req["value"])
}

func TestClient_AttributeAndRect(t *testing.T) {
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/s1/element/w/attribute/NativeWindowHandle":
			writeJSON(w, map[string]interface{}{"value": "1234"})
		case "/session/s1/element/w/rect":
			writeJSON(w, map[string]interface{}{"value": map[string]interface{}{
				"x": 10.0, "y": 20.0, "width": 800.0, "height": 600.0,
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	v, err := c.GetElementAttribute(context.Background(), "w", "NativeWindowHandle")
	require.NoError(t, err)
	assert.Equal(t, "1234", v)

	x, y, width, height, err := c.GetElementRect(context.Background(), "w")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 800, 600}, []int{x, y, width, height})
}

func TestClient_HTTPErrorWithoutBody(t *testing.T) {
	c := connected(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Source(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
