package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(path string) func() (string, error) {
	return func() (string, error) { return path, nil }
}

func failing() (string, error) { return "", errors.New("unavailable") }

func TestResolveHome(t *testing.T) {
	installed := filepath.Join(t.TempDir(), "bridge-ui")
	tests := []struct {
		name       string
		env        string
		executable func() (string, error)
		getwd      func() (string, error)
		want       Home
	}{
		{"env wins", "/custom/path", fixed(filepath.Join(installed, "bin", "bridge-ui-runner")), fixed("/work"),
			Home{Dir: "/custom/path", Source: HomeFromEnv}},
		{"installed binary", "", fixed(filepath.Join(installed, "bin", "bridge-ui-runner")), fixed("/work"),
			Home{Dir: installed, Source: HomeFromInstall}},
		{"binary outside bin", "", fixed(filepath.Join(installed, "bridge-ui-runner")), fixed("/work"),
			Home{Dir: "/work", Source: HomeFromWorkdir}},
		{"no executable", "", failing, fixed("/work"),
			Home{Dir: "/work", Source: HomeFromWorkdir}},
		{"nothing resolves", "", failing, failing,
			Home{Dir: ".", Source: HomeFromWorkdir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveHome(tt.env, tt.executable, tt.getwd))
		})
	}
}

func TestResolveHomeExpandsTilde(t *testing.T) {
	user, err := homedir.Dir()
	if err != nil {
		t.Skip("no user home directory")
	}
	got := resolveHome("~/bridge-ui", failing, failing)
	assert.Equal(t, filepath.Join(user, "bridge-ui"), got.Dir)
	assert.Equal(t, HomeFromEnv, got.Source)
}

func TestCurrentHomeCached(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv(HomeEnv, "/first")
	first := CurrentHome()

	t.Setenv(HomeEnv, "/second")
	assert.Equal(t, first, CurrentHome())

	ResetHome()
	assert.Equal(t, "/second", GetHome())
}

func TestHomeSubdirectories(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv(HomeEnv, "/test/home")

	require.Equal(t, HomeFromEnv, CurrentHome().Source)
	assert.Equal(t, filepath.Join("/test/home", "reports"), GetReportsDir())
	assert.Equal(t, filepath.Join("/test/home", "logs"), GetLogsDir())
}
