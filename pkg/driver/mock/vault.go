package mock

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
)

func defaultVault() map[string]interface{} {
	return map[string]interface{}{
		"Settings": map[string]interface{}{
			"UpdateChannel":     "stable",
			"UpdateRollout":     0.61,
			"IMAPPort":          1143,
			"SMTPPort":          1025,
			"LastHeartbeatSent": "2024-05-14T09:12:44.183+02:00",
		},
		"Users": []interface{}{},
	}
}

// VaultEditor is the fake vault editor: "read" prints the vault as JSON,
// "write" replaces it from stdin.
type VaultEditor struct {
	app *App
}

// VaultEditor returns the editor bound to this app.
func (a *App) VaultEditor() *VaultEditor {
	return &VaultEditor{app: a}
}

// Run executes the editor with a single argument.
func (v *VaultEditor) Run(ctx context.Context, arg string, stdin []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := v.app
	a.mu.Lock()
	defer a.mu.Unlock()

	switch arg {
	case "read":
		return json.MarshalIndent(a.vault, "", "  ")
	case "write":
		var doc map[string]interface{}
		if err := json.Unmarshal(stdin, &doc); err != nil {
			return nil, fmt.Errorf("vault-editor: invalid vault JSON: %w", err)
		}
		settings, ok := doc["Settings"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("vault-editor: vault has no Settings object")
		}
		a.vault = doc

		channel, _ := settings["UpdateChannel"].(string)
		rollout, _ := settings["UpdateRollout"].(float64)
		early := channel == "early"
		a.settings.BetaAccess = early
		a.updateEligible = early && rollout == 0
		return nil, nil
	default:
		return nil, fmt.Errorf("vault-editor: unknown command %q", arg)
	}
}
