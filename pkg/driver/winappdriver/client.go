// Package winappdriver implements core.Driver over WinAppDriver (or
// Appium's Windows driver) through the W3C WebDriver protocol.
package winappdriver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Locator strategies understood by WinAppDriver.
const (
	ByName            = "name"
	ByAccessibilityID = "accessibility id"
	ByClassName       = "class name"
	ByXPath           = "xpath"
)

// Client handles HTTP communication with one WinAppDriver session.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
}

// NewClient creates a new client. It has no session until Connect.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second, // Page source of a large window can be slow
		},
	}
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	// WinAppDriver 1.x only reads the legacy field, unprefixed.
	legacy := make(map[string]interface{}, len(capabilities))
	for k, v := range capabilities {
		legacy[strings.TrimPrefix(k, "appium:")] = v
	}
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
		"desiredCapabilities": legacy,
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// W3C nests the id under value; JSONWP puts it at the top level.
	if value, ok := resp["value"].(map[string]interface{}); ok {
		c.sessionID, _ = value["sessionId"].(string)
	}
	if c.sessionID == "" {
		c.sessionID, _ = resp["sessionId"].(string)
	}
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	c.sessionID = ""
	return err
}

// SessionID returns the current session id.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(ctx context.Context, strategy, value string) (string, error) {
	resp, err := c.post(ctx, c.sessionPath()+"/element", map[string]interface{}{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		return "", err
	}
	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", core.ErrElementNotFound.WithMessagef("element not found: %s=%q", strategy, value)
	}
	return extractElementID(elemValue), nil
}

// FindElements finds multiple elements. No match is an empty result.
func (c *Client) FindElements(ctx context.Context, strategy, value string) ([]string, error) {
	resp, err := c.post(ctx, c.sessionPath()+"/elements", map[string]interface{}{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		if errors.Is(err, core.ErrElementNotFound) {
			return nil, nil
		}
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}
	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ClickElement clicks an element.
func (c *Client) ClickElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/clear", map[string]interface{}{})
	return err
}

// SendElementKeys types text into an element.
func (c *Client) SendElementKeys(ctx context.Context, elementID, text string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text":  text,
		"value": splitKeys(text),
	})
	return err
}

// GetElementAttribute returns an element's attribute value.
func (c *Client) GetElementAttribute(ctx context.Context, elementID, name string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/attribute/"+name)
	if err != nil {
		return "", err
	}
	value, _ := resp["value"].(string)
	return value, nil
}

// GetElementRect returns an element's position and size.
func (c *Client) GetElementRect(ctx context.Context, elementID string) (x, y, w, h int, err error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/rect")
	if err != nil {
		return 0, 0, 0, 0, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("invalid rect response")
	}

	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return int(xf), int(yf), int(wf), int(hf), nil
}

// MoveTo hovers the pointer over the center of an element.
func (c *Client) MoveTo(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.sessionPath()+"/moveto", map[string]interface{}{
		"element": elementID,
	})
	return err
}

// Scroll scrolls from an element by the given pixel offsets.
func (c *Client) Scroll(ctx context.Context, elementID string, xoffset, yoffset int) error {
	_, err := c.post(ctx, c.sessionPath()+"/touch/scroll", map[string]interface{}{
		"element": elementID,
		"xoffset": xoffset,
		"yoffset": yoffset,
	})
	return err
}

// SendKeys sends keys to the focused element of the session's window.
func (c *Client) SendKeys(ctx context.Context, keys string) error {
	_, err := c.post(ctx, c.sessionPath()+"/keys", map[string]interface{}{
		"value": splitKeys(keys),
	})
	return err
}

// Window Operations

// SwitchToWindow brings the window with the given handle to the foreground.
func (c *Client) SwitchToWindow(ctx context.Context, handle string) error {
	_, err := c.post(ctx, c.sessionPath()+"/window", map[string]interface{}{
		"name":   handle,
		"handle": handle,
	})
	return err
}

// Source returns the page source XML of the session's window.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Timeouts

// SetImplicitWait sets the implicit wait timeout. The runner polls on its
// own, so it keeps this at zero.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.ErrServerUnreachable.WithMessagef("could not connect to automation server at %s", c.serverURL).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
		}
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, mapError(errType, msg)
		}
	}
	// JSONWP status codes
	if status, ok := result["status"].(float64); ok && status != 0 {
		msg := ""
		if v, ok := result["value"].(map[string]interface{}); ok {
			msg, _ = v["message"].(string)
		}
		return result, mapError(legacyStatus(int(status)), msg)
	}
	if resp.StatusCode >= 400 && result == nil {
		return nil, fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	return result, nil
}

// mapError translates a WebDriver error into the runner's taxonomy so the
// wait engine can tell "not yet" from fatal.
func mapError(errType, msg string) error {
	switch errType {
	case "no such element":
		return core.ErrElementNotFound.WithMessage(msg)
	case "stale element reference", "no such window":
		return core.ErrStaleElement.WithMessage(msg)
	case "invalid session id":
		return core.ErrSessionUnavailable.WithMessage(msg)
	default:
		return fmt.Errorf("%s: %s", errType, msg)
	}
}

func legacyStatus(code int) string {
	switch code {
	case 7:
		return "no such element"
	case 10:
		return "stale element reference"
	case 23:
		return "no such window"
	case 6:
		return "invalid session id"
	default:
		return fmt.Sprintf("status %d", code)
	}
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}

// splitKeys splits text into the per-character array JSONWP expects.
func splitKeys(text string) []string {
	keys := make([]string, 0, len(text))
	for _, r := range text {
		keys = append(keys, string(r))
	}
	return keys
}
