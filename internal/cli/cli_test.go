package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/serial"
	"github.com/buckleypaul/chipcheck/internal/station"
	"github.com/buckleypaul/chipcheck/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// --- parseTimeFlag ---

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("2024-03-01_09:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("parseTimeFlag = %v, want %v", got, want)
	}

	if got, err := parseTimeFlag(""); err != nil || !got.IsZero() {
		t.Errorf("empty flag: got %v, %v", got, err)
	}
	if _, err := parseTimeFlag("2024-03-01 09:30"); err == nil {
		t.Error("expected error for space-separated time")
	}
}

// --- root ---

func TestRootRegistersCommands(t *testing.T) {
	cmd := newRootCmd()
	want := []string{"station", "run", "batch", "flash", "test", "ports", "report"}
	for _, name := range want {
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestResolveRootRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveRoot(f); err == nil {
		t.Error("expected error for a file root")
	}
}

// --- run ---

func TestRunRelayNeedsID(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, "run", "--root", root, "--port", "/dev/ttyUSB9", "--role", "rel-mk1")
	if err == nil || !strings.Contains(err.Error(), "needs an id") {
		t.Fatalf("expected id error, got %v", err)
	}
}

func TestRunUnknownKind(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, "run", "--root", root, "--port", "/dev/ttyUSB9", "--kind", "purple")
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestUnitFlagsDefaultPortsFromConfig(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	var uf unitFlags
	uf.bind(cmd, true)
	if err := cmd.ParseFlags([]string{"--role", "rel-mk1.5", "--kind", "blue-shiny", "--id", "12"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.UnitPort = "/dev/ttyUSB1"
	cfg.CompanionPort = "/dev/ttyUSB0"
	u, err := uf.unit(cmd, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Port != "/dev/ttyUSB1" || u.Companion != "/dev/ttyUSB0" {
		t.Errorf("ports = %q/%q", u.Port, u.Companion)
	}
	if u.Role != chip.Relay1_5 || u.Kind != chip.BlueShiny {
		t.Errorf("role/kind = %v/%v", u.Role, u.Kind)
	}
	if u.ID == nil || *u.ID != 12 {
		t.Errorf("id = %v", u.ID)
	}
	if u.Target != nil {
		t.Errorf("expected nil target, got %v", *u.Target)
	}
}

// --- batch ---

func TestBatchRejectsInvalidPlan(t *testing.T) {
	root := t.TempDir()
	plan := filepath.Join(root, "plan.yaml")
	if err := os.WriteFile(plan, []byte("units:\n  - port: /dev/ttyUSB0\n    role: rel-mk1\n    kind: green\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "batch", "--root", root, plan)
	if err == nil || !strings.Contains(err.Error(), "unit 1") {
		t.Fatalf("expected unit 1 error, got %v", err)
	}
}

// --- report ---

func TestReportEmpty(t *testing.T) {
	out, err := execute(t, "report", "--root", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "no units recorded") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestReportWritesSpreadsheet(t *testing.T) {
	root := t.TempDir()
	st := store.New(config.StateDir(root))
	for i, rssi := range []string{"-40", "-60"} {
		chipID, err := st.RegisterChip("green", strconv.Itoa(i+1))
		if err != nil {
			t.Fatal(err)
		}
		flashID, err := st.RegisterFlash(store.FlashRecord{ChipID: chipID, Software: "master", Success: true})
		if err != nil {
			t.Fatal(err)
		}
		if err := st.RegisterOutcome(flashID, map[string]string{"flashed": "true", "rssi": rssi}); err != nil {
			t.Fatal(err)
		}
	}

	xlsx := filepath.Join(root, "out.xlsx")
	out, err := execute(t, "report", "--root", root, "--xlsx", xlsx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Succeeded: 1/2") {
		t.Errorf("expected summary in output, got %q", out)
	}
	if _, err := os.Stat(xlsx); err != nil {
		t.Errorf("expected spreadsheet: %v", err)
	}
}

func TestReportRejectsInvertedWindow(t *testing.T) {
	_, err := execute(t, "report", "--root", t.TempDir(), "--from", "2024-03-02_00:00", "--to", "2024-03-01_00:00")
	if err == nil {
		t.Fatal("expected error for inverted window")
	}
}

// --- printing ---

func TestPrintPorts(t *testing.T) {
	var buf bytes.Buffer
	printPorts(&buf, []serial.PortInfo{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R"},
		{Name: "/dev/ttyS0"},
	})
	out := buf.String()
	if !strings.Contains(out, "/dev/ttyUSB0  0403:6001  FT232R") {
		t.Errorf("missing USB line: %q", out)
	}
	if !strings.Contains(out, "- /dev/ttyS0\n") {
		t.Errorf("missing plain line: %q", out)
	}

	buf.Reset()
	printPorts(&buf, nil)
	if !strings.Contains(buf.String(), "no serial ports") {
		t.Errorf("unexpected empty output: %q", buf.String())
	}
}

func TestPrintResultWithoutStore(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, station.Result{
		Unit:    station.Unit{Port: "/dev/ttyUSB0", Role: chip.Master, Kind: chip.Green, ChipNumber: "101"},
		Outcome: chip.Outcome{"flashed": "true", "rssi": "n/a"},
	}, nil)
	out := buf.String()
	for _, want := range []string{"101", "master", "green", "flashed=true", "rssi=n/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
