// Package scenario holds the named test cases and runs them against
// application sessions.
//
// A scenario runs in four phases: setup establishes its preconditions
// (credentials, vault, a launched application), the body drives screens,
// teardown removes the account the body signed in with, and cleanup
// terminates the application. Cleanup always runs.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/credentials"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/screen"
)

// Suite groups scenarios the way the original suites did.
type Suite string

// Suites
const (
	SuiteLogin    Suite = "login"
	SuiteHelp     Suite = "help"
	SuiteSettings Suite = "settings"
	SuiteRollout  Suite = "rollout"
)

// Suites returns every suite in run order.
func Suites() []Suite {
	return []Suite{SuiteLogin, SuiteHelp, SuiteSettings, SuiteRollout}
}

// Credentials resolves provisioned users.
type Credentials interface {
	Get(v credentials.Variant) (credentials.Credential, error)
}

// Vault prepares the application's vault before launch.
type Vault interface {
	PrepareZeroPercentRollout(ctx context.Context) error
}

// Env is what scenarios need beyond the session.
type Env struct {
	Credentials Credentials
	Vault       Vault
}

// Case is handed to a scenario body: the run to drive screens with and the
// user resolved during setup.
type Case struct {
	*screen.Run
	User credentials.Credential
}

// Scenario is one named test case.
type Scenario struct {
	Name  string
	Suite Suite
	Tags  []string

	// User is the provisioned variant resolved in setup and removed in
	// teardown. Empty when the body signs in with nobody.
	User credentials.Variant

	// Rollout stops the application and opts the vault into a zero-percent
	// rollout before launching it.
	Rollout bool

	Body func(c *Case)
}

// HasTag reports whether the scenario carries tag.
func (s Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Registry is an ordered set of scenarios with unique names.
type Registry struct {
	scenarios []Scenario
	byName    map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Default returns a registry with every built-in scenario.
func Default() *Registry {
	r := NewRegistry()
	for _, s := range builtin() {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

func builtin() []Scenario {
	var all []Scenario
	all = append(all, loginScenarios()...)
	all = append(all, helpScenarios()...)
	all = append(all, settingsScenarios()...)
	all = append(all, rolloutScenarios()...)
	return all
}

// Register adds s. Names must be unique and every scenario needs a body.
func (r *Registry) Register(s Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario without a name in suite %q", s.Suite)
	}
	if s.Body == nil {
		return fmt.Errorf("scenario %q has no body", s.Name)
	}
	if _, dup := r.byName[s.Name]; dup {
		return fmt.Errorf("scenario %q registered twice", s.Name)
	}
	r.byName[s.Name] = len(r.scenarios)
	r.scenarios = append(r.scenarios, s)
	return nil
}

// Get returns the scenario called name.
func (r *Registry) Get(name string) (Scenario, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Scenario{}, false
	}
	return r.scenarios[i], true
}

// All returns the scenarios in registration order.
func (r *Registry) All() []Scenario {
	out := make([]Scenario, len(r.scenarios))
	copy(out, r.scenarios)
	return out
}

// Variants returns the user variants the given scenarios need, sorted.
func Variants(scenarios []Scenario) []credentials.Variant {
	seen := make(map[credentials.Variant]bool)
	var out []credentials.Variant
	for _, s := range scenarios {
		if s.User != "" && !seen[s.User] {
			seen[s.User] = true
			out = append(out, s.User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Filter narrows a registry. Empty fields match everything; a scenario must
// match every non-empty field.
type Filter struct {
	Names  []string
	Suites []string
	Tags   []string
}

// Select returns the scenarios matching f in registration order. Unknown
// names and suites are errors rather than empty selections.
func (r *Registry) Select(f Filter) ([]Scenario, error) {
	names := make(map[string]bool, len(f.Names))
	for _, n := range f.Names {
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("unknown scenario %q", n)
		}
		names[n] = true
	}
	suites := make(map[Suite]bool, len(f.Suites))
	for _, s := range f.Suites {
		suite := Suite(strings.ToLower(s))
		if !knownSuite(suite) {
			return nil, fmt.Errorf("unknown suite %q", s)
		}
		suites[suite] = true
	}

	var out []Scenario
	for _, s := range r.scenarios {
		if len(names) > 0 && !names[s.Name] {
			continue
		}
		if len(suites) > 0 && !suites[s.Suite] {
			continue
		}
		if len(f.Tags) > 0 && !anyTag(s, f.Tags) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func knownSuite(s Suite) bool {
	for _, k := range Suites() {
		if k == s {
			return true
		}
	}
	return false
}

func anyTag(s Scenario, tags []string) bool {
	for _, t := range tags {
		if s.HasTag(t) {
			return true
		}
	}
	return false
}
