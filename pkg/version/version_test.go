package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text    string
		version string
		tag     string
	}{
		{"v3.14.0 (br-0123)", "3.14.0", "0123"},
		{"Bridge v3.15.1 early (br-7f3e2a)", "3.15.1", "7f3e2a"},
		{"  v10.0.0-rc.1 (br-99)  ", "10.0.0-rc.1", "99"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.version, b.Version.String())
			assert.Equal(t, tt.tag, b.Tag)
			assert.False(t, b.IsZero())
		})
	}
}

func TestParseRejectsOtherText(t *testing.T) {
	for _, text := range []string{"", "Help", "v3.14 (br-1)", "v3.14.0 without tag"} {
		_, err := Parse(text)
		require.Error(t, err, text)
		assert.True(t, errors.Is(err, core.ErrTextMismatch), text)
	}
}

func TestCheckUpgrade(t *testing.T) {
	parse := func(s string) Build {
		b, err := Parse(s)
		require.NoError(t, err)
		return b
	}
	before := parse("v3.14.0 (br-0123)")

	tests := []struct {
		name  string
		after string
		ok    bool
	}{
		{"patch bump", "v3.14.1 (br-0124)", true},
		{"minor bump beats lower patch", "v3.15.0 (br-0200)", true},
		{"numeric not lexical", "v3.100.0 (br-1)", true},
		{"same version", "v3.14.0 (br-0124)", false},
		{"lower version", "v3.13.9 (br-0124)", false},
		{"tag unchanged", "v3.14.1 (br-0123)", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUpgrade(before, parse(tt.after))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrVersionNotIncreased))
			assert.Equal(t, core.ErrCategoryAssertion, core.CategoryOf(err))
		})
	}
}

func TestCheckUpgradeNeedsBothBuilds(t *testing.T) {
	err := CheckUpgrade(Build{}, Build{})
	assert.True(t, errors.Is(err, core.ErrPreconditionViolation))
	assert.Equal(t, "<unknown>", Build{}.String())
}
