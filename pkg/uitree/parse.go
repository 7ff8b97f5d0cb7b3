package uitree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse builds a tree from WinAppDriver page-source XML.
// Element tag names are UI Automation control types; properties are attributes.
func Parse(xmlData string) (*Node, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))
	// The source arrives as a decoded JSON string even though the declaration says utf-16.
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var parseElement func() (*Node, error)
	parseElement = func() (*Node, error) {
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}

			switch t := token.(type) {
			case xml.StartElement:
				node := &Node{
					Role:    Role(t.Name.Local),
					Enabled: true,
				}
				for _, attr := range t.Attr {
					applyAttr(node, attr.Name.Local, attr.Value)
				}

				for {
					child, err := parseElement()
					if err != nil {
						return nil, err
					}
					if child == nil {
						break
					}
					node.Children = append(node.Children, child)
				}
				return node, nil

			case xml.EndElement:
				return nil, nil
			}
		}
	}

	root, err := parseElement()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid page source: no elements found")
		}
		return nil, fmt.Errorf("invalid page source: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("invalid page source: no elements found")
	}
	root.Link()
	return root, nil
}

func applyAttr(n *Node, name, value string) {
	switch name {
	case "Name":
		n.Name = value
	case "AutomationId":
		n.AutomationID = value
	case "ClassName":
		n.ClassName = value
	case "RuntimeId":
		n.RuntimeID = value
	case "LocalizedControlType":
		if n.Role == "" {
			n.Role = Role(value)
		}
	case "Value", "Value.Value":
		n.Value = value
	case "IsEnabled":
		n.Enabled = parseBool(value)
	case "IsOffscreen":
		n.Offscreen = parseBool(value)
	case "Toggle.ToggleState", "ToggleState":
		n.Checked = value == "On" || value == "1"
	case "SelectionItem.IsSelected", "IsSelected":
		n.Checked = parseBool(value)
	case "x":
		n.Bounds.X = atoi(value)
	case "y":
		n.Bounds.Y = atoi(value)
	case "width":
		n.Bounds.Width = atoi(value)
	case "height":
		n.Bounds.Height = atoi(value)
	}
}

func parseBool(s string) bool {
	return strings.EqualFold(s, "true")
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
