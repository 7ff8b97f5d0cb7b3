package credentials

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

func TestGetFromEnv(t *testing.T) {
	t.Setenv("BRIDGE_UI_TEST_PAID_USER", "alice@example.com:s3cret")
	t.Setenv("BRIDGE_UI_TEST_TWO_PASSWORD_USER", "bob@example.com:login:mailbox")

	p := FromEnv()

	c, err := p.Get(PaidUser)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", c.Username)
	assert.Equal(t, "s3cret", c.Password)
	assert.Empty(t, c.MailboxPassword)
	assert.Equal(t, PaidUser, c.Variant)

	c, err = p.Get(TwoPasswordUser)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", c.Username)
	assert.Equal(t, "login", c.Password)
	assert.Equal(t, "mailbox", c.MailboxPassword)
}

func TestGetMissing(t *testing.T) {
	t.Setenv("BRIDGE_UI_TEST_FREE_USER", "")
	_, err := FromEnv().Get(FreeUser)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidCredential))
	assert.Equal(t, core.ErrCategoryPrecondition, core.CategoryOf(err))
	assert.Contains(t, err.Error(), "BRIDGE_UI_TEST_FREE_USER")
	assert.Contains(t, err.Error(), "user:password")
}

func TestGetWrongFieldCount(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		value   string
	}{
		{"one field", PaidUser, "alice"},
		{"three fields for two-field variant", DisabledUser, "a:b:c"},
		{"two fields for three-field variant", TwoPasswordUser, "a:b"},
		{"empty field", DelinquentUser, "a:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(strings.ToLower(string(tt.variant)), tt.value)
			_, err := New(v).Get(tt.variant)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidCredential))
			assert.Contains(t, err.Error(), tt.variant.EnvVar())
		})
	}
}

func TestCheckReportsEveryProblem(t *testing.T) {
	v := viper.New()
	v.Set("paid_user", "alice:pw")
	v.Set("free_user", "broken")
	err := New(v).Check(All()...)
	require.Error(t, err)
	msg := err.Error()
	assert.NotContains(t, msg, "BRIDGE_UI_TEST_PAID_USER")
	for _, name := range []string{"FREE_USER", "DISABLED_USER", "DELINQUENT_USER", "TWO_PASSWORD_USER"} {
		assert.Contains(t, msg, "BRIDGE_UI_TEST_"+name)
	}

	v.Set("free_user", "f:pw")
	v.Set("disabled_user", "d:pw")
	v.Set("delinquent_user", "q:pw")
	v.Set("two_password_user", "t:pw:mb")
	assert.NoError(t, New(v).Check(All()...))
}

func TestDerivedCredentials(t *testing.T) {
	e := Empty()
	assert.Empty(t, e.Username)
	assert.Empty(t, e.Password)
	assert.Equal(t, "<empty credential>", e.String())

	c := Credential{Variant: TwoPasswordUser, Username: "bob", Password: "hunter2", MailboxPassword: "mb"}
	w := c.WithWrongPassword()
	assert.Equal(t, "bob", w.Username)
	assert.NotEqual(t, c.Password, w.Password)
	assert.Empty(t, w.MailboxPassword)
	assert.NotContains(t, c.String(), "hunter2")
}
