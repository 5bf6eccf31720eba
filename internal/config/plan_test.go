package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePlan = `
units:
  - port: /dev/ttyUSB0
    role: master
    kind: green
    target: 10
    chip_number: "101"
  - port: /dev/ttyUSB1
    role: rel-mk1.5
    kind: blue-shiny
    id: 10
    companion: /dev/ttyUSB0
    only_test: true
`

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan([]byte(samplePlan))
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if len(p.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(p.Units))
	}
	if p.Units[0].Target == nil || *p.Units[0].Target != 10 {
		t.Errorf("expected target 10, got %v", p.Units[0].Target)
	}
	if p.Units[0].ID != nil {
		t.Errorf("expected no id for master, got %v", *p.Units[0].ID)
	}
	if !p.Units[1].OnlyTest || p.Units[1].Companion != "/dev/ttyUSB0" {
		t.Errorf("unexpected relay unit %+v", p.Units[1])
	}
}

func TestParsePlanRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "units: []\n",
		"missing port":  "units:\n  - role: master\n    kind: green\n",
		"bad role":      "units:\n  - port: a\n    role: boss\n    kind: green\n",
		"bad kind":      "units:\n  - port: a\n    role: master\n    kind: red\n",
		"relay no id":   "units:\n  - port: a\n    role: rel-mk1\n    kind: green\n",
		"unknown field": "units:\n  - port: a\n    role: master\n    kind: green\n    speed: 9\n",
	}
	for name, doc := range cases {
		if _, err := ParsePlan([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParsePlanReportsEveryBadUnit(t *testing.T) {
	doc := "units:\n  - port: a\n    role: boss\n    kind: green\n  - port: b\n    role: master\n    kind: red\n"
	_, err := ParsePlan([]byte(doc))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unit 1") || !strings.Contains(err.Error(), "unit 2") {
		t.Errorf("expected both units reported, got %v", err)
	}
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	os.WriteFile(path, []byte(samplePlan), 0o644)

	p, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan failed: %v", err)
	}
	if len(p.Units) != 2 {
		t.Errorf("expected 2 units, got %d", len(p.Units))
	}

	if _, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing plan")
	}
}
