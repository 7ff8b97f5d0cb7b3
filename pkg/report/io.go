package report

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ensureDir creates dir and its parents.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v to path through a temp file in the same
// directory, so pollers never read a half-written file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// ReadIndex loads report.json from a report directory.
func ReadIndex(outputDir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, "report.json"))
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse report.json: %w", err)
	}
	return &idx, nil
}

// ReadScenario loads one scenario detail file by id.
func ReadScenario(outputDir, id string) (*ScenarioDetail, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, "scenarios", id+".json"))
	if err != nil {
		return nil, err
	}
	var d ScenarioDetail
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", id, err)
	}
	return &d, nil
}
