package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileOverrides mirrors the YAML parameters file. Absent keys keep the base value.
type fileOverrides struct {
	Coefficient *uint64 `yaml:"coefficient"`
	MinStake    *uint64 `yaml:"min_stake"`
	MaxStake    *uint64 `yaml:"max_stake"`
}

// LoadFile applies the YAML file at path on top of base and validates the result.
func LoadFile(path string, base Snapshot) (snap Snapshot, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read parameters file: %w", err)
	}

	return Parse(raw, base)
}

// Parse applies YAML overrides on top of base.
func Parse(raw []byte, base Snapshot) (snap Snapshot, err error) {
	var overrides fileOverrides
	err = yaml.Unmarshal(raw, &overrides)
	if err != nil {
		return base, fmt.Errorf("decode parameters file: %w", err)
	}

	snap = base
	if overrides.Coefficient != nil {
		snap.Coefficient = *overrides.Coefficient
	}
	if overrides.MinStake != nil {
		snap.MinStake = *overrides.MinStake
	}
	if overrides.MaxStake != nil {
		snap.MaxStake = *overrides.MaxStake
	}

	err = snap.Validate()
	if err != nil {
		return base, fmt.Errorf("validate parameters file: %w", err)
	}

	return snap, nil
}
