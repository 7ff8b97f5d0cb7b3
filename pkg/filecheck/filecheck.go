// Package filecheck verifies filesystem side effects of UI actions, such as a
// moved cache folder or exported TLS certificates. All paths hang off base
// directories supplied by configuration.
package filecheck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/wait"
)

// Well-known names.
const (
	CertFile       = "cert.pem"
	KeyFile        = "key.pem"
	TLSFolder      = "TLSCertificates"
	NewCacheFolder = "NewCacheFolder"
	cacheSubPath   = "AppData/Roaming/protonmail/bridge-v3/gluon"
)

// DefaultCacheLocation is the cache folder under a user profile.
func DefaultCacheLocation(profileDir string) string {
	return filepath.Join(append([]string{profileDir}, strings.Split(cacheSubPath, "/")...)...)
}

// Paths are the configured base directories.
type Paths struct {
	Profile   string // user profile root
	CacheRoot string // default cache location, derived from Profile when empty
	ExportDir string // where TLS certificates are exported, Profile when empty
}

// Cache returns the default cache location.
func (p Paths) Cache() string {
	if p.CacheRoot != "" {
		return p.CacheRoot
	}
	return DefaultCacheLocation(p.Profile)
}

// Export returns the certificate export root.
func (p Paths) Export() string {
	if p.ExportDir != "" {
		return p.ExportDir
	}
	return p.Profile
}

// IsDir reports whether path is an existing directory.
func IsDir(path string) (bool, error) {
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		return fi.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Missing lists the names under dir that are not regular files.
func Missing(dir string, names ...string) []string {
	var out []string
	for _, n := range names {
		fi, err := os.Stat(filepath.Join(dir, n))
		if err != nil || !fi.Mode().IsRegular() {
			out = append(out, n)
		}
	}
	return out
}

// RequireFiles fails unless every name exists as a file in dir.
func RequireFiles(dir string, names ...string) error {
	if missing := Missing(dir, names...); len(missing) > 0 {
		return core.ErrConditionNotMet.
			WithMessagef("%s is missing %s", dir, strings.Join(missing, ", ")).
			WithDetails(map[string]interface{}{
				"expected": strings.Join(names, ", "),
				"observed": "missing " + strings.Join(missing, ", "),
			})
	}
	return nil
}

// AwaitDir waits until path exists as a directory.
func AwaitDir(ctx context.Context, opts wait.Options, path string) error {
	return wait.Poll(ctx, "directory "+path, opts, func(context.Context) (bool, error) {
		ok, err := IsDir(path)
		if err != nil {
			return false, wait.Break(err)
		}
		return ok, nil
	})
}

// AwaitGone waits until nothing exists at path.
func AwaitGone(ctx context.Context, opts wait.Options, path string) error {
	return wait.Poll(ctx, "removal of "+path, opts, func(context.Context) (bool, error) {
		_, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		if err != nil {
			return false, wait.Break(err)
		}
		return false, nil
	})
}

// RemoveUnder deletes path recursively. It refuses paths outside base so a
// misconfigured location can never wipe unrelated data.
func RemoveUnder(base, path string) error {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return core.ErrPreconditionViolation.WithMessagef("refusing to remove %s: not under %s", path, base)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	logger.Debug("Removed %s", path)
	return nil
}
