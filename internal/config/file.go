package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath.Base(path), err)
	}
	return nil
}

// JSONPath is the location of the structured report.
func (c Config) JSONPath() string {
	return filepath.Join(c.Output.Dir, c.Output.JSONFile)
}

// TextPath is the location of the line-oriented report.
func (c Config) TextPath() string {
	return filepath.Join(c.Output.Dir, c.Output.TextFile)
}

// CSVPath is the location of the optional CSV report.
func (c Config) CSVPath() string {
	return filepath.Join(c.Output.Dir, c.Output.CSVFile)
}

// SignaturePath is where the detached signature of the JSON report is written.
func (c Config) SignaturePath() string {
	return c.JSONPath() + ".sig"
}
