package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestVerdictBadge(t *testing.T) {
	if got := VerdictBadge(true); !strings.Contains(got, "PASS") || strings.Contains(got, "NO PASS") {
		t.Errorf("pass badge = %q", got)
	}
	if got := VerdictBadge(false); !strings.Contains(got, "NO PASS") {
		t.Errorf("fail badge = %q", got)
	}
}

func TestRSSIBadge(t *testing.T) {
	if got := RSSIBadge("-42", true); !strings.Contains(got, "RSSI -42 dBm") {
		t.Errorf("rssi badge = %q", got)
	}
	if got := RSSIBadge("", false); !strings.Contains(got, "RSSI n/a") {
		t.Errorf("missing rssi badge = %q", got)
	}
}

func TestPanelWidth(t *testing.T) {
	out := Panel("Ports", "hello", 30, 0, false)
	lines := strings.Split(out, "\n")
	if len(lines) < 3 {
		t.Fatalf("expected border, body and bottom lines, got %d", len(lines))
	}
	for i, line := range lines {
		if w := lipgloss.Width(line); w != 30 {
			t.Errorf("line %d width = %d, want 30", i, w)
		}
	}
}

func TestFieldPadsLabel(t *testing.T) {
	got := Field("Role", "master", 8, false)
	if !strings.HasPrefix(got, "  Role    ") || !strings.HasSuffix(got, "master") {
		t.Errorf("field = %q", got)
	}
}
