// Package selector locates elements in a tree snapshot by predicate.
//
// Lookups prefer stable attributes (control type, accessible name, automation
// id, ancestry). Index is a fallback for repeated controls that share every
// other attribute, and applies after all predicates.
package selector

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

// ErrNotFound is returned when no element matches. It is core.ErrElementNotFound,
// so waits treat it as "not yet".
var ErrNotFound = core.ErrElementNotFound

// Selector represents element selection criteria.
// Pure data structure; zero fields match anything.
type Selector struct {
	Role         uitree.Role
	Name         string // exact accessible name
	NameContains string
	NamePrefix   string
	NameSuffix   string
	AutomationID string
	ClassName    string

	// State filters
	Enabled *bool
	Checked *bool

	// Relative selectors
	ChildOf      *Selector // direct parent matches
	DescendantOf *Selector // some ancestor matches

	// Index picks the n-th match (0-based) when set.
	Index *int
}

// Constructors for the control types the screens use.

// Button matches a button by exact name.
func Button(name string) Selector { return Selector{Role: uitree.RoleButton, Name: name} }

// Text matches a static text by exact name.
func Text(name string) Selector { return Selector{Role: uitree.RoleText, Name: name} }

// TextContaining matches a static text whose name contains sub.
func TextContaining(sub string) Selector {
	return Selector{Role: uitree.RoleText, NameContains: sub}
}

// CheckBox matches a toggle by exact name.
func CheckBox(name string) Selector { return Selector{Role: uitree.RoleCheckBox, Name: name} }

// RadioButton matches a radio button by exact name.
func RadioButton(name string) Selector { return Selector{Role: uitree.RoleRadioButton, Name: name} }

// Edit matches an editable field by exact name.
func Edit(name string) Selector { return Selector{Role: uitree.RoleEdit, Name: name} }

// Window matches a window by exact title.
func Window(name string) Selector { return Selector{Role: uitree.RoleWindow, Name: name} }

// Group matches a group by exact name.
func Group(name string) Selector { return Selector{Role: uitree.RoleGroup, Name: name} }

// Named matches any control type by exact name.
func Named(name string) Selector { return Selector{Name: name} }

// ID matches by automation id.
func ID(id string) Selector { return Selector{AutomationID: id} }

// Under restricts matches to direct children of parent.
func (s Selector) Under(parent Selector) Selector {
	s.ChildOf = &parent
	return s
}

// Inside restricts matches to descendants of ancestor.
func (s Selector) Inside(ancestor Selector) Selector {
	s.DescendantOf = &ancestor
	return s
}

// Nth picks the i-th match.
func (s Selector) Nth(i int) Selector {
	s.Index = &i
	return s
}

// OnlyEnabled restricts matches to enabled controls.
func (s Selector) OnlyEnabled() Selector {
	t := true
	s.Enabled = &t
	return s
}

// WithChecked restricts matches to the given toggle state.
func (s Selector) WithChecked(on bool) Selector {
	s.Checked = &on
	return s
}

// String describes the selector for logs and failure messages.
func (s Selector) String() string {
	var parts []string
	if s.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%q", s.Name))
	}
	if s.NameContains != "" {
		parts = append(parts, fmt.Sprintf("name~%q", s.NameContains))
	}
	if s.NamePrefix != "" {
		parts = append(parts, fmt.Sprintf("name^=%q", s.NamePrefix))
	}
	if s.NameSuffix != "" {
		parts = append(parts, fmt.Sprintf("name$=%q", s.NameSuffix))
	}
	if s.AutomationID != "" {
		parts = append(parts, fmt.Sprintf("id=%q", s.AutomationID))
	}
	if s.ClassName != "" {
		parts = append(parts, fmt.Sprintf("class=%q", s.ClassName))
	}
	if s.Enabled != nil {
		parts = append(parts, fmt.Sprintf("enabled=%t", *s.Enabled))
	}
	if s.Checked != nil {
		parts = append(parts, fmt.Sprintf("checked=%t", *s.Checked))
	}
	if s.Index != nil {
		parts = append(parts, fmt.Sprintf("index=%d", *s.Index))
	}

	role := string(s.Role)
	if role == "" {
		role = "*"
	}
	desc := role + "[" + strings.Join(parts, " ") + "]"
	if s.ChildOf != nil {
		desc += " under " + s.ChildOf.String()
	}
	if s.DescendantOf != nil {
		desc += " inside " + s.DescendantOf.String()
	}
	return desc
}
