// Package uitree models a snapshot of the application's accessibility tree.
//
// A tree is rebuilt on every fetch. Nodes are only valid for the poll that
// produced them: the application re-renders on state transitions and a node
// kept across polls may describe a control that no longer exists.
package uitree

import (
	"strings"
)

// Role is the control type of a node (UI Automation control type name).
type Role string

// Control types used by the bridge GUI and the incidental OS windows.
const (
	RoleWindow      Role = "Window"
	RolePane        Role = "Pane"
	RoleGroup       Role = "Group"
	RoleButton      Role = "Button"
	RoleText        Role = "Text"
	RoleEdit        Role = "Edit"
	RoleCheckBox    Role = "CheckBox"
	RoleRadioButton Role = "RadioButton"
	RoleList        Role = "List"
	RoleListItem    Role = "ListItem"
	RoleScrollBar   Role = "ScrollBar"
	RoleHyperlink   Role = "Hyperlink"
	RoleDocument    Role = "Document"
	RoleTitleBar    Role = "TitleBar"
	RoleCustom      Role = "Custom"
)

// Bounds represents element position and size.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds.
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds.
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Node is one element of a tree snapshot.
type Node struct {
	Role         Role   `json:"role"`
	Name         string `json:"name,omitempty"`
	AutomationID string `json:"automationId,omitempty"`
	ClassName    string `json:"className,omitempty"`
	RuntimeID    string `json:"runtimeId,omitempty"`
	Value        string `json:"value,omitempty"`

	// Checked is the toggle state of check boxes and the selection state of
	// radio buttons.
	Checked   bool   `json:"checked,omitempty"`
	Enabled   bool   `json:"enabled"`
	Offscreen bool   `json:"offscreen,omitempty"`
	Bounds    Bounds `json:"bounds"`

	Parent   *Node   `json:"-"`
	Children []*Node `json:"children,omitempty"`
	Depth    int     `json:"-"`
}

// New creates an enabled node with the given children attached.
func New(role Role, name string, children ...*Node) *Node {
	n := &Node{Role: role, Name: name, Enabled: true}
	n.Add(children...)
	return n
}

// Add appends children and links them to n.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.Parent = n
		n.Children = append(n.Children, c)
	}
	n.Link()
	return n
}

// Link recomputes Parent and Depth for the subtree rooted at n.
func (n *Node) Link() {
	var link func(node *Node, depth int)
	link = func(node *Node, depth int) {
		node.Depth = depth
		for _, c := range node.Children {
			c.Parent = node
			link(c, depth+1)
		}
	}
	link(n, n.Depth)
}

// Walk visits the subtree in pre-order. Returning false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Descendants returns every node below n in document order.
func (n *Node) Descendants() []*Node {
	var out []*Node
	for _, c := range n.Children {
		c.Walk(func(d *Node) bool {
			out = append(out, d)
			return true
		})
	}
	return out
}

// IsDescendantOf reports whether ancestor is a strict ancestor of n.
func (n *Node) IsDescendantOf(ancestor *Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Text returns the value of editable controls and the name otherwise.
func (n *Node) Text() string {
	if n.Role == RoleEdit || n.Value != "" {
		return n.Value
	}
	return n.Name
}

// Label is a short description used in logs and failure messages.
func (n *Node) Label() string {
	if n == nil {
		return "<nil>"
	}
	if n.Name == "" {
		return string(n.Role)
	}
	return string(n.Role) + "[" + n.Name + "]"
}

// Path returns the labels from the root down to n joined by "/".
func (n *Node) Path() string {
	var parts []string
	for c := n; c != nil; c = c.Parent {
		parts = append(parts, c.Label())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Dump renders the subtree as an indented outline.
func (n *Node) Dump() string {
	var b strings.Builder
	n.Walk(func(c *Node) bool {
		b.WriteString(strings.Repeat("  ", c.Depth-n.Depth))
		b.WriteString(c.Label())
		if c.Value != "" {
			b.WriteString(" value=" + c.Value)
		}
		if c.Checked {
			b.WriteString(" checked")
		}
		if !c.Enabled {
			b.WriteString(" disabled")
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}
