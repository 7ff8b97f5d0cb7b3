package selector

import (
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

// Matches reports whether n satisfies every predicate of s. Index is ignored.
func (s Selector) Matches(n *uitree.Node) bool {
	if n == nil {
		return false
	}
	if s.Role != "" && n.Role != s.Role {
		return false
	}
	if s.Name != "" && n.Name != s.Name {
		return false
	}
	if s.NameContains != "" && !strings.Contains(n.Name, s.NameContains) {
		return false
	}
	if s.NamePrefix != "" && !strings.HasPrefix(n.Name, s.NamePrefix) {
		return false
	}
	if s.NameSuffix != "" && !strings.HasSuffix(n.Name, s.NameSuffix) {
		return false
	}
	if s.AutomationID != "" && n.AutomationID != s.AutomationID {
		return false
	}
	if s.ClassName != "" && n.ClassName != s.ClassName {
		return false
	}

	// State filters
	if s.Enabled != nil && n.Enabled != *s.Enabled {
		return false
	}
	if s.Checked != nil && n.Checked != *s.Checked {
		return false
	}

	// Relative selectors
	if s.ChildOf != nil && !s.ChildOf.Matches(n.Parent) {
		return false
	}
	if s.DescendantOf != nil {
		found := false
		for p := n.Parent; p != nil; p = p.Parent {
			if s.DescendantOf.Matches(p) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FindAll returns every node under root (root included) matching s, in
// document order. Index is ignored.
func FindAll(root *uitree.Node, s Selector) []*uitree.Node {
	if root == nil {
		return nil
	}
	var result []*uitree.Node
	root.Walk(func(n *uitree.Node) bool {
		if s.Matches(n) {
			result = append(result, n)
		}
		return true
	})
	return result
}

// Find returns the first match, or the Index-th one when set.
func Find(root *uitree.Node, s Selector) (*uitree.Node, error) {
	matches := FindAll(root, s)
	idx := 0
	if s.Index != nil {
		idx = *s.Index
	}
	if idx < 0 || idx >= len(matches) {
		return nil, ErrNotFound.WithMessage("no element matching " + s.String())
	}
	return matches[idx], nil
}

// Exists reports whether anything under root matches s.
func Exists(root *uitree.Node, s Selector) bool {
	_, err := Find(root, s)
	return err == nil
}

// Count returns the number of matches under root.
func Count(root *uitree.Node, s Selector) int {
	return len(FindAll(root, s))
}
