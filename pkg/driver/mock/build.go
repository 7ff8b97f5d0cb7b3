package mock

import (
	"strconv"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

// binding holds the input handlers of one element. Handlers run with the app
// lock held and mutate app state directly.
type binding struct {
	click   func() error
	setText func(string) error
	scroll  func(int) error
}

// builder renders app state into a tree and records the input handlers of
// the rendered elements, keyed by runtime id.
type builder struct {
	bindings  map[string]*binding
	seen      map[string]int
	y         int
	offscreen bool
}

func newBuilder() *builder {
	return &builder{bindings: make(map[string]*binding), seen: make(map[string]int)}
}

// root starts a window subtree with a fixed runtime id.
func (b *builder) root(id, title string) *uitree.Node {
	n := &uitree.Node{Role: uitree.RoleWindow, Name: title, RuntimeID: id, Enabled: true}
	n.Bounds = uitree.Bounds{X: 0, Y: b.y, Width: 800, Height: 600}
	b.y += 40
	return n
}

// add appends a child whose runtime id derives from its parent and label, so
// the same logical control keeps its id across renders.
func (b *builder) add(parent *uitree.Node, role uitree.Role, name string, bind *binding) *uitree.Node {
	id := parent.RuntimeID + "/" + string(role) + ":" + name
	if k := b.seen[id]; k > 0 {
		b.seen[id] = k + 1
		id += "#" + strconv.Itoa(k)
	} else {
		b.seen[id] = 1
	}

	n := &uitree.Node{
		Role:      role,
		Name:      name,
		RuntimeID: id,
		Enabled:   true,
		Offscreen: b.offscreen,
		Parent:    parent,
		Depth:     parent.Depth + 1,
	}
	n.Bounds = uitree.Bounds{X: 10 * n.Depth, Y: b.y, Width: 240, Height: 24}
	b.y += 28
	parent.Children = append(parent.Children, n)
	if bind != nil {
		b.bindings[id] = bind
	}
	return n
}

func (b *builder) pane(parent *uitree.Node, name string) *uitree.Node {
	return b.add(parent, uitree.RolePane, name, nil)
}

func (b *builder) group(parent *uitree.Node, name string) *uitree.Node {
	return b.add(parent, uitree.RoleGroup, name, nil)
}

func (b *builder) text(parent *uitree.Node, name string) *uitree.Node {
	return b.add(parent, uitree.RoleText, name, nil)
}

func (b *builder) clickableText(parent *uitree.Node, name string, fn func()) *uitree.Node {
	return b.add(parent, uitree.RoleText, name, &binding{click: wrap(fn)})
}

func (b *builder) button(parent *uitree.Node, name string, fn func()) *uitree.Node {
	return b.add(parent, uitree.RoleButton, name, &binding{click: wrap(fn)})
}

func (b *builder) check(parent *uitree.Node, name string, on bool, fn func()) *uitree.Node {
	n := b.add(parent, uitree.RoleCheckBox, name, &binding{click: wrap(fn)})
	n.Checked = on
	return n
}

func (b *builder) radio(parent *uitree.Node, name string, selected bool, fn func()) *uitree.Node {
	n := b.add(parent, uitree.RoleRadioButton, name, &binding{click: wrap(fn)})
	n.Checked = selected
	return n
}

// edit adds an editable field. A nil set makes it read-only.
func (b *builder) edit(parent *uitree.Node, name, value string, set func(string)) *uitree.Node {
	var bind *binding
	if set != nil {
		bind = &binding{setText: func(s string) error {
			set(s)
			return nil
		}}
	}
	n := b.add(parent, uitree.RoleEdit, name, bind)
	n.Value = value
	return n
}

func wrap(fn func()) func() error {
	if fn == nil {
		return nil
	}
	return func() error {
		fn()
		return nil
	}
}
