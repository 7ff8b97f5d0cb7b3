// Package credentials resolves named test users from the environment.
//
// Each variant is one variable, BRIDGE_UI_TEST_<VARIANT>, holding
// colon-separated fields: "user:password", or "user:password:mailboxpassword"
// for two-password accounts. A value with the wrong number of fields is a
// precondition failure, reported before any UI is touched.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

// EnvPrefix prefixes every credential variable.
const EnvPrefix = "BRIDGE_UI_TEST"

// Separator splits the fields of a credential value.
const Separator = ":"

// Variant names a provisioned test user.
type Variant string

// Provisioned variants
const (
	PaidUser        Variant = "PAID_USER"
	FreeUser        Variant = "FREE_USER"
	DisabledUser    Variant = "DISABLED_USER"
	DelinquentUser  Variant = "DELINQUENT_USER"
	TwoPasswordUser Variant = "TWO_PASSWORD_USER"
)

// All returns every provisioned variant.
func All() []Variant {
	return []Variant{PaidUser, FreeUser, DisabledUser, DelinquentUser, TwoPasswordUser}
}

// Fields is the number of separator-delimited fields the variant needs.
func (v Variant) Fields() int {
	if v == TwoPasswordUser {
		return 3
	}
	return 2
}

// EnvVar is the environment variable holding the variant.
func (v Variant) EnvVar() string {
	return EnvPrefix + "_" + string(v)
}

func (v Variant) format() string {
	if v.Fields() == 3 {
		return "user" + Separator + "password" + Separator + "mailboxpassword"
	}
	return "user" + Separator + "password"
}

// Credential is one test user.
type Credential struct {
	Variant         Variant
	Username        string
	Password        string
	MailboxPassword string
}

// String never prints secrets.
func (c Credential) String() string {
	if c.Username == "" {
		return "<empty credential>"
	}
	if c.Variant == "" {
		return c.Username
	}
	return fmt.Sprintf("%s (%s)", c.Username, strings.ToLower(string(c.Variant)))
}

// Empty is the credential with both required fields blank.
func Empty() Credential {
	return Credential{Variant: "EMPTY"}
}

// WithWrongPassword keeps the username and replaces the password.
func (c Credential) WithWrongPassword() Credential {
	c.Password = c.Password + "-wrong"
	c.MailboxPassword = ""
	c.Variant = "INCORRECT"
	return c
}

// Provider looks credentials up through viper.
type Provider struct {
	v *viper.Viper
}

// FromEnv returns a provider reading BRIDGE_UI_TEST_* variables.
func FromEnv() *Provider {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return &Provider{v: v}
}

// New wraps an existing viper instance. Keys are the lower-case variant names;
// the instance decides whether they come from env, flags, or a file.
func New(v *viper.Viper) *Provider {
	return &Provider{v: v}
}

// Get resolves and validates a variant.
func (p *Provider) Get(variant Variant) (Credential, error) {
	raw := strings.TrimSpace(p.v.GetString(strings.ToLower(string(variant))))
	if raw == "" {
		return Credential{}, core.ErrInvalidCredential.
			WithMessagef("%s is not set (expected %s)", variant.EnvVar(), variant.format()).
			WithDetails(map[string]interface{}{"variable": variant.EnvVar()})
	}

	fields := strings.Split(raw, Separator)
	if len(fields) != variant.Fields() {
		return Credential{}, core.ErrInvalidCredential.
			WithMessagef("%s has %d fields, expected %d (%s)", variant.EnvVar(), len(fields), variant.Fields(), variant.format()).
			WithDetails(map[string]interface{}{"variable": variant.EnvVar(), "fields": len(fields)})
	}
	for i, f := range fields {
		if f == "" {
			return Credential{}, core.ErrInvalidCredential.
				WithMessagef("%s field %d is empty (expected %s)", variant.EnvVar(), i+1, variant.format())
		}
	}

	c := Credential{Variant: variant, Username: fields[0], Password: fields[1]}
	if len(fields) == 3 {
		c.MailboxPassword = fields[2]
	}
	return c, nil
}

// Check validates every variant and reports all problems at once.
func (p *Provider) Check(variants ...Variant) error {
	var errs []error
	for _, v := range variants {
		if _, err := p.Get(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
