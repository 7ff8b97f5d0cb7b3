// Package vault edits the application's encrypted settings through the
// external vault editor, which decrypts on "read" and encrypts from stdin on
// "write". The rollout scenarios use it to opt into the early update channel
// at zero percent rollout.
package vault

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
)

// Editor commands
const (
	CmdRead  = "read"
	CmdWrite = "write"
)

// Rollout settings for the zero-percent update scenario.
const (
	EarlyChannel = "early"
	ZeroRollout  = 0
)

// Runner invokes the vault editor with one argument.
type Runner interface {
	Run(ctx context.Context, arg string, stdin []byte) ([]byte, error)
}

// ExecRunner runs the editor executable.
type ExecRunner struct {
	Path string
}

// Run starts the editor, feeds stdin and returns stdout. A non-zero exit is
// an error carrying stderr.
func (r ExecRunner) Run(ctx context.Context, arg string, stdin []byte) ([]byte, error) {
	if r.Path == "" {
		return nil, core.ErrInvalidConfig.WithMessage("vault editor path is not configured")
	}
	if _, err := os.Stat(r.Path); err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("vault editor not found at %s", r.Path).WithCause(err)
	}

	cmd := exec.CommandContext(ctx, r.Path, arg)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("vault editor %s: %w: %s", arg, err, msg)
		}
		return nil, fmt.Errorf("vault editor %s: %w", arg, err)
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		logger.Warn("vault editor %s wrote to stderr: %s", arg, msg)
	}
	return stdout.Bytes(), nil
}

// codec keeps numbers as written and never escapes characters such as '+'
// in the vault's timestamps.
var codec = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// Document is the decrypted vault. Unknown fields round-trip untouched.
type Document map[string]interface{}

// Settings returns the Settings object.
func (d Document) Settings() (map[string]interface{}, error) {
	s, ok := d["Settings"].(map[string]interface{})
	if !ok {
		return nil, core.ErrPreconditionViolation.WithMessage("vault has no Settings object")
	}
	return s, nil
}

// Editor reads and writes the vault.
type Editor struct {
	runner Runner
	backup string
}

// New creates an editor over r.
func New(r Runner) *Editor {
	return &Editor{runner: r}
}

// WithBackup keeps a copy of the decrypted vault at path after each read.
func (e *Editor) WithBackup(path string) *Editor {
	e.backup = path
	return e
}

// Read decrypts the vault.
func (e *Editor) Read(ctx context.Context) (Document, error) {
	out, err := e.runner.Run(ctx, CmdRead, nil)
	if err != nil {
		return nil, fmt.Errorf("read vault: %w", err)
	}
	if e.backup != "" {
		if err := os.WriteFile(e.backup, out, 0o600); err != nil {
			logger.Warn("Could not write vault backup to %s: %v", e.backup, err)
		} else {
			logger.Debug("Vault backup written to %s", e.backup)
		}
	}
	var doc Document
	if err := codec.Unmarshal(out, &doc); err != nil {
		return nil, core.ErrPreconditionViolation.WithMessage("vault editor output is not valid JSON").WithCause(err)
	}
	return doc, nil
}

// Write encrypts doc back into the vault.
func (e *Editor) Write(ctx context.Context, doc Document) error {
	data, err := codec.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}
	if _, err := e.runner.Run(ctx, CmdWrite, data); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	return nil
}

// PrepareZeroPercentRollout sets Settings.UpdateChannel to early and
// Settings.UpdateRollout to 0. The application must not be running.
func (e *Editor) PrepareZeroPercentRollout(ctx context.Context) error {
	doc, err := e.Read(ctx)
	if err != nil {
		return err
	}
	settings, err := doc.Settings()
	if err != nil {
		return err
	}
	logger.Info("Vault rollout before edit: channel=%v rollout=%v", settings["UpdateChannel"], settings["UpdateRollout"])
	settings["UpdateChannel"] = EarlyChannel
	settings["UpdateRollout"] = ZeroRollout
	return e.Write(ctx, doc)
}
