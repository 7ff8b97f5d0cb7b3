package selector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

func settingsTree() *uitree.Node {
	beta := uitree.New(uitree.RoleCheckBox, "Beta access toggle")
	beta.Checked = true
	disabled := uitree.New(uitree.RoleButton, "Save")
	disabled.Enabled = false
	imap := uitree.New(uitree.RoleEdit, "IMAP port edit")
	imap.AutomationID = "imapPort"

	return uitree.New(uitree.RoleWindow, "Proton Mail Bridge",
		uitree.New(uitree.RoleGroup, "General",
			uitree.New(uitree.RoleCheckBox, "Automatic updates toggle"),
			beta,
			uitree.New(uitree.RoleText, "Synchronizing (42%)"),
		),
		uitree.New(uitree.RoleGroup, "Ports",
			imap,
			uitree.New(uitree.RoleEdit, "SMTP port edit"),
			uitree.New(uitree.RoleGroup, "",
				disabled,
				uitree.New(uitree.RoleButton, "Cancel"),
			),
		),
		uitree.New(uitree.RoleButton, "Cancel"),
	)
}

func TestFind(t *testing.T) {
	root := settingsTree()

	tests := []struct {
		name     string
		sel      Selector
		wantName string
	}{
		{"exact name", CheckBox("Beta access toggle"), "Beta access toggle"},
		{"contains", TextContaining("Synchronizing"), "Synchronizing (42%)"},
		{"prefix", Selector{NamePrefix: "Automatic"}, "Automatic updates toggle"},
		{"suffix", Selector{Role: uitree.RoleEdit, NameSuffix: "port edit"}, "IMAP port edit"},
		{"automation id", ID("imapPort"), "IMAP port edit"},
		{"checked", Selector{Role: uitree.RoleCheckBox}.WithChecked(true), "Beta access toggle"},
		{"index fallback", Selector{Role: uitree.RoleEdit}.Nth(1), "SMTP port edit"},
		{"named any role", Named("Ports"), "Ports"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Find(root, tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, n.Name)
		})
	}
}

func TestFindAncestry(t *testing.T) {
	root := settingsTree()

	all := FindAll(root, Button("Cancel"))
	require.Len(t, all, 2)

	inPorts, err := Find(root, Button("Cancel").Inside(Group("Ports")))
	require.NoError(t, err)
	assert.Same(t, all[0], inPorts)

	top, err := Find(root, Button("Cancel").Under(Window("Proton Mail Bridge")))
	require.NoError(t, err)
	assert.Same(t, all[1], top)

	_, err = Find(root, Button("Cancel").Under(Group("Ports")))
	assert.Error(t, err, "Cancel is a grandchild of Ports, not a child")
}

func TestFindNotFound(t *testing.T) {
	root := settingsTree()

	tests := []struct {
		name string
		sel  Selector
	}{
		{"missing name", Button("Repair Bridge button")},
		{"wrong role", Button("Beta access toggle")},
		{"disabled", Button("Save").OnlyEnabled()},
		{"index out of range", Button("Cancel").Nth(2)},
		{"negative index", Button("Cancel").Nth(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Find(root, tt.sel)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrElementNotFound))
			assert.Contains(t, err.Error(), tt.sel.String())
		})
	}
}

func TestFindNilRoot(t *testing.T) {
	_, err := Find(nil, Button("Save"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, Exists(nil, Button("Save")))
}

func TestExistsAndCount(t *testing.T) {
	root := settingsTree()
	assert.True(t, Exists(root, Edit("SMTP port edit")))
	assert.False(t, Exists(root, Edit("Port edit")))
	assert.Equal(t, 2, Count(root, Selector{Role: uitree.RoleEdit}))
	assert.Equal(t, 2, Count(root, Selector{Role: uitree.RoleCheckBox}))
}

func TestString(t *testing.T) {
	sel := Button("Save").OnlyEnabled().Inside(Group("Ports"))
	assert.Equal(t, `Button[name="Save" enabled=true] inside Group[name="Ports"]`, sel.String())
	assert.Equal(t, `*[id="x" index=0]`, ID("x").Nth(0).String())
}

func TestBuildersDoNotAlias(t *testing.T) {
	base := Button("OK")
	a := base.Inside(Window("A"))
	b := base.Inside(Window("B"))

	assert.Nil(t, base.DescendantOf)
	assert.Equal(t, "A", a.DescendantOf.Name)
	assert.Equal(t, "B", b.DescendantOf.Name)
}
