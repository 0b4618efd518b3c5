package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Model is one row of the manufacturer/model table
type Model struct {
	Type         int    `yaml:"type"`
	Variant      int    `yaml:"variant"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
}

type modelKey struct {
	deviceType    int
	deviceVariant int
}

// ModelTable maps (deviceType, deviceVariant) pairs to product names
type ModelTable struct {
	rows map[modelKey]Model
}

type modelFile struct {
	Version int     `yaml:"version"`
	Models  []Model `yaml:"models"`
}

func parseModels(data []byte) (*ModelTable, error) {
	table := &ModelTable{rows: make(map[modelKey]Model)}
	if len(data) == 0 {
		return table, nil
	}

	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model table: %w", err)
	}
	if file.Version != definitionVersion {
		return nil, fmt.Errorf("unsupported model table version: %d (expected %d)", file.Version, definitionVersion)
	}

	for _, m := range file.Models {
		key := modelKey{m.Type, m.Variant}
		if _, dup := table.rows[key]; dup {
			return nil, fmt.Errorf("duplicate model entry (%d, %d)", m.Type, m.Variant)
		}
		table.rows[key] = m
	}
	return table, nil
}

// Lookup returns the table row for a device type and variant
func (t *ModelTable) Lookup(deviceType, deviceVariant int) (Model, bool) {
	m, ok := t.rows[modelKey{deviceType, deviceVariant}]
	return m, ok
}

// Manufacturer returns the manufacturer name, or a label carrying the raw
// codes when the pair is not in the table.
func (t *ModelTable) Manufacturer(deviceType, deviceVariant int) string {
	if m, ok := t.Lookup(deviceType, deviceVariant); ok {
		return m.Manufacturer
	}
	return fmt.Sprintf("Unknown Manufacturer (%d, %d)", deviceType, deviceVariant)
}

// ModelName returns the model name, or a label carrying the raw codes when
// the pair is not in the table.
func (t *ModelTable) ModelName(deviceType, deviceVariant int) string {
	if m, ok := t.Lookup(deviceType, deviceVariant); ok {
		return m.Model
	}
	return fmt.Sprintf("Unknown Model (%d, %d)", deviceType, deviceVariant)
}

// Len returns the number of known models
func (t *ModelTable) Len() int {
	return len(t.rows)
}
