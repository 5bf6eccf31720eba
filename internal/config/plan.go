package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/buckleypaul/chipcheck/internal/chip"
)

// PlanUnit is one entry of a batch plan.
type PlanUnit struct {
	Port       string  `yaml:"port"`
	Role       string  `yaml:"role"`
	Kind       string  `yaml:"kind"`
	ID         *uint32 `yaml:"id,omitempty"`
	Target     *uint32 `yaml:"target,omitempty"`
	Companion  string  `yaml:"companion,omitempty"`
	ChipNumber string  `yaml:"chip_number,omitempty"`
	OnlyTest   bool    `yaml:"only_test,omitempty"`
}

// Plan lists units to run one after another.
type Plan struct {
	Units []PlanUnit `yaml:"units"`
}

// LoadPlan reads and validates a YAML plan.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, err
	}
	p, err := ParsePlan(data)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePlan decodes and validates a YAML plan. Unknown fields are rejected.
func ParsePlan(data []byte) (Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Validate checks names and required fields of every unit.
func (p Plan) Validate() error {
	if len(p.Units) == 0 {
		return errors.New("plan has no units")
	}
	var errs []error
	for i, u := range p.Units {
		if err := u.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("unit %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks one unit.
func (u PlanUnit) Validate() error {
	if u.Port == "" {
		return errors.New("port is required")
	}
	role, err := chip.ParseRole(u.Role)
	if err != nil {
		return err
	}
	if _, err := chip.ParseKind(u.Kind); err != nil {
		return err
	}
	if role.IsRelay() && u.ID == nil {
		return fmt.Errorf("%s needs an id", role)
	}
	return nil
}
