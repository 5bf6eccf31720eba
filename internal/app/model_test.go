package app

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/serial"
)

type stubPage struct {
	name string
	msgs []tea.Msg
}

func (p *stubPage) Init() tea.Cmd            { return nil }
func (p *stubPage) View() string             { return p.name }
func (p *stubPage) Name() string             { return p.name }
func (p *stubPage) ShortHelp() []key.Binding { return nil }
func (p *stubPage) SetSize(int, int)         {}

func (p *stubPage) Update(msg tea.Msg) (Page, tea.Cmd) {
	p.msgs = append(p.msgs, msg)
	return p, nil
}

func newTestModel(t *testing.T) (Model, map[PageID]*stubPage, *config.Config, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	stubs := map[PageID]*stubPage{}
	pages := map[PageID]Page{}
	for _, id := range PageOrder {
		s := &stubPage{name: "page"}
		stubs[id] = s
		pages[id] = s
	}
	cfg := config.Defaults()
	root := t.TempDir()
	return New(pages, &cfg, root, "bench-1"), stubs, &cfg, root
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestPortPickerSelectsAndPersists(t *testing.T) {
	m, stubs, cfg, root := newTestModel(t)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if m.picker == nil || cmd == nil {
		t.Fatal("expected picker to open and ports to be listed")
	}

	m, _ = update(t, m, PortsListedMsg{Ports: []serial.PortInfo{
		{Name: "/dev/ttyUSB0", IsUSB: true, Product: "FT232R"},
		{Name: "/dev/ttyUSB1"},
	}})
	if len(m.picker.ports) != 2 {
		t.Fatalf("expected 2 picker ports, got %d", len(m.picker.ports))
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd = update(t, m, cmd())
	if m.picker != nil {
		t.Fatal("expected picker closed after selection")
	}
	m, _ = update(t, m, cmd())

	if m.SelectedPort() != "/dev/ttyUSB1" {
		t.Fatalf("expected selected port, got %q", m.SelectedPort())
	}
	if cfg.UnitPort != "/dev/ttyUSB1" {
		t.Fatalf("expected config updated, got %q", cfg.UnitPort)
	}
	if loaded := config.Load(root); loaded.UnitPort != "/dev/ttyUSB1" {
		t.Fatalf("expected unit port saved, got %q", loaded.UnitPort)
	}

	var seen bool
	for _, msg := range stubs[StationPage].msgs {
		if sel, ok := msg.(PortSelectedMsg); ok && sel.Port == "/dev/ttyUSB1" {
			seen = true
		}
	}
	if !seen {
		t.Fatal("expected PortSelectedMsg broadcast to pages")
	}
}

func TestPickerEscCloses(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := cmd().(PickerClosedMsg); !ok {
		t.Fatal("expected PickerClosedMsg")
	}
}

func TestSidebarNavigationWraps(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.ActivePage() != SettingsPage {
		t.Fatalf("expected wrap to last page, got %d", m.ActivePage())
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.ActivePage() != StationPage {
		t.Fatalf("expected wrap to first page, got %d", m.ActivePage())
	}
}

func TestKeysReachPageOnlyWhenFocused(t *testing.T) {
	m, stubs, _, _ := newTestModel(t)
	r := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}

	m, _ = update(t, m, r)
	if len(stubs[StationPage].msgs) != 0 {
		t.Fatal("sidebar focus must not forward keys")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, r)
	if len(stubs[StationPage].msgs) != 1 {
		t.Fatalf("expected key forwarded to the active page, got %d", len(stubs[StationPage].msgs))
	}
	if len(stubs[MonitorPage].msgs) != 0 {
		t.Fatal("keys must only reach the active page")
	}
}

func TestFuzzyMatch(t *testing.T) {
	cases := []struct {
		s, q string
		want bool
	}{
		{"/dev/ttyusb0", "usb0", true},
		{"/dev/ttyusb0", "tu0", true},
		{"/dev/ttyacm0", "usb", false},
		{"ft232r", "", true},
	}
	for _, c := range cases {
		if got := fuzzyMatch(c.s, c.q); got != c.want {
			t.Errorf("fuzzyMatch(%q, %q) = %v, want %v", c.s, c.q, got, c.want)
		}
	}
}

func pickerPorts() []serial.PortInfo {
	return []serial.PortInfo{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R", SerialNumber: "A10K"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523"},
		{Name: "/dev/ttyS0"},
	}
}

func TestPickerStartsOnCurrentPort(t *testing.T) {
	p := NewPicker("Select Unit Port", "/dev/ttyUSB1")
	p.SetSize(80, 30)
	if !strings.Contains(p.View(), "Scanning ports") {
		t.Fatal("expected scanning hint before ports arrive")
	}
	p.SetPorts(pickerPorts())
	if p.cursor != 1 {
		t.Fatalf("expected cursor on current port, got %d", p.cursor)
	}
	view := p.View()
	for _, want := range []string{"/dev/ttyUSB1 (current)", "USB 0403:6001 FT232R #A10K", "built-in"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestPickerFiltersByVIDPID(t *testing.T) {
	p := NewPicker("Select Unit Port", "")
	p.SetPorts(pickerPorts())
	for _, r := range "1a86" {
		p, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if len(p.filtered) != 1 || p.filtered[0].Name != "/dev/ttyUSB1" {
		t.Fatalf("unexpected filter result: %+v", p.filtered)
	}
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if sel, ok := cmd().(PickerSelectedMsg); !ok || sel.Value != "/dev/ttyUSB1" {
		t.Fatalf("unexpected selection: %#v", sel)
	}
}

func TestStationBarShowsPorts(t *testing.T) {
	out := renderStationBar("bench-1", "/dev/ttyUSB0", "/dev/ttyACM0", 120, false)
	for _, want := range []string{"bench-1", "Unit: /dev/ttyUSB0", "Companion: /dev/ttyACM0"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	out = renderStationBar("bench-1", "", "", 120, true)
	if !strings.Contains(out, "(none)") || strings.Contains(out, "Companion") {
		t.Errorf("unexpected bar without ports: %q", out)
	}
	if !strings.Contains(out, "[p] change unit port") {
		t.Errorf("expected picker hint when the sidebar is focused: %q", out)
	}
}
