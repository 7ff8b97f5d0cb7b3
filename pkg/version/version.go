// Package version reads the build line shown on the help page, for example
// "v3.14.0 (br-0123)", and checks that an update moved it strictly forward.
package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

// buildLine matches "v<semver> ... (br-<tag>)". Text between the version and
// the tag (a channel name, a date) is ignored.
var buildLine = regexp.MustCompile(`v(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.+-]*)?)\b.*?\(br-([^)\s]+)\)`)

// Build is a parsed version and build tag.
type Build struct {
	Version *semver.Version
	Tag     string
	Raw     string
}

// Parse extracts the version and build tag from text.
func Parse(text string) (Build, error) {
	m := buildLine.FindStringSubmatch(text)
	if m == nil {
		return Build{}, core.ErrTextMismatch.
			WithMessagef("no version and build tag in %q", text).
			WithDetails(map[string]interface{}{"expected": "v<semver> (br-<tag>)", "observed": text})
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return Build{}, core.ErrTextMismatch.WithMessagef("invalid version %q", m[1]).WithCause(err)
	}
	return Build{Version: v, Tag: m[2], Raw: strings.TrimSpace(text)}, nil
}

// IsZero reports whether b was never parsed.
func (b Build) IsZero() bool {
	return b.Version == nil
}

func (b Build) String() string {
	if b.IsZero() {
		return "<unknown>"
	}
	return fmt.Sprintf("v%s (br-%s)", b.Version, b.Tag)
}

// CheckUpgrade fails unless after has a strictly greater version and a
// different tag than before.
func CheckUpgrade(before, after Build) error {
	if before.IsZero() || after.IsZero() {
		return core.ErrPreconditionViolation.WithMessage("version was not captured before and after the restart")
	}
	details := map[string]interface{}{
		"expected": "greater than " + before.String(),
		"observed": after.String(),
	}
	if !after.Version.GreaterThan(before.Version) {
		return core.ErrVersionNotIncreased.
			WithMessagef("version %s is not greater than %s", after.Version, before.Version).
			WithDetails(details)
	}
	if after.Tag == before.Tag {
		return core.ErrVersionNotIncreased.
			WithMessagef("build tag br-%s did not change", after.Tag).
			WithDetails(details)
	}
	return nil
}
