package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/buckleypaul/chipcheck/internal/serial"
	"github.com/buckleypaul/chipcheck/internal/ui"
)

// PickerSelectedMsg is sent when the user picks a port.
type PickerSelectedMsg struct {
	Value string
}

// PickerClosedMsg is sent when the user closes the picker without selecting.
type PickerClosedMsg struct{}

// Picker is the unit port overlay. Ports can be filtered by device node,
// VID:PID, product or serial number.
type Picker struct {
	title    string
	current  string
	ports    []serial.PortInfo
	filtered []serial.PortInfo
	scanning bool
	input    textinput.Model
	cursor   int
	width    int
	height   int
}

const maxPickerItems = 8

// NewPicker opens a picker; current is the port in use, marked in the list.
func NewPicker(title, current string) *Picker {
	ti := textinput.New()
	ti.Placeholder = "node, vid:pid or product..."
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 64

	return &Picker{
		title:    title,
		current:  current,
		scanning: true,
		input:    ti,
	}
}

// SetPorts fills the list and moves the cursor onto the current port.
func (p *Picker) SetPorts(ports []serial.PortInfo) {
	p.ports = ports
	p.scanning = false
	p.filter()
	for i, port := range p.filtered {
		if port.Name == p.current {
			p.cursor = i
		}
	}
}

// SetSize sets the available dimensions.
func (p *Picker) SetSize(w, h int) {
	p.width = w
	p.height = h
}

func (p *Picker) Update(msg tea.Msg) (*Picker, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return p, func() tea.Msg { return PickerClosedMsg{} }
		case "enter":
			if p.cursor < len(p.filtered) {
				name := p.filtered[p.cursor].Name
				return p, func() tea.Msg { return PickerSelectedMsg{Value: name} }
			}
			return p, nil
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		case "down":
			if p.cursor < len(p.filtered)-1 {
				p.cursor++
			}
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.filter()
	return p, cmd
}

// usbLine describes the adapter behind a port.
func usbLine(port serial.PortInfo) string {
	if !port.IsUSB {
		return "built-in"
	}
	parts := []string{"USB " + port.VID + ":" + port.PID}
	if port.Product != "" {
		parts = append(parts, port.Product)
	}
	if port.SerialNumber != "" {
		parts = append(parts, "#"+port.SerialNumber)
	}
	return strings.Join(parts, " ")
}

func (p *Picker) View() string {
	boxWidth := p.width - 4
	if boxWidth > 64 {
		boxWidth = 64
	}
	if boxWidth < 34 {
		boxWidth = 34
	}
	innerWidth := boxWidth - 4

	var b strings.Builder
	p.input.Width = innerWidth - 3
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	visible := min(maxPickerItems, len(p.filtered))
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := min(start+visible, len(p.filtered))

	selectedStyle := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true)
	for i := start; i < end; i++ {
		port := p.filtered[i]
		name := port.Name
		if name == p.current {
			name += " (current)"
		}
		name = truncate.StringWithTail(name, uint(innerWidth-2), "…")
		if i == p.cursor {
			b.WriteString(selectedStyle.Render("> " + name))
		} else {
			b.WriteString("  " + name)
		}
		b.WriteString("\n")
		b.WriteString(ui.DimStyle.Render("    " + truncate.StringWithTail(usbLine(port), uint(innerWidth-4), "…")))
		b.WriteString("\n")
	}

	switch {
	case p.scanning:
		b.WriteString(ui.DimStyle.Render("  Scanning ports..."))
		b.WriteString("\n")
	case len(p.ports) == 0:
		b.WriteString(ui.DimStyle.Render("  No serial ports found"))
		b.WriteString("\n")
	case len(p.filtered) == 0:
		b.WriteString(ui.DimStyle.Render("  No matches"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render(fmt.Sprintf("(%d/%d ports)  enter:use  esc:close", len(p.filtered), len(p.ports))))

	box := lipgloss.NewStyle().
		Width(boxWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ui.Primary).
		Padding(1, 1).
		Render(b.String())

	title := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true).Render(p.title)
	return title + "\n" + box
}

func (p *Picker) filter() {
	query := strings.ToLower(strings.TrimSpace(p.input.Value()))
	if query == "" {
		p.filtered = p.ports
	} else {
		p.filtered = nil
		for _, port := range p.ports {
			if portMatches(port, query) {
				p.filtered = append(p.filtered, port)
			}
		}
	}
	if p.cursor >= len(p.filtered) {
		p.cursor = len(p.filtered) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

func portMatches(port serial.PortInfo, query string) bool {
	for _, field := range []string{port.Name, port.VID + ":" + port.PID, port.Product, port.SerialNumber} {
		if fuzzyMatch(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// fuzzyMatch checks if all characters in query appear in s in order.
func fuzzyMatch(s, query string) bool {
	qi := 0
	for i := 0; i < len(s) && qi < len(query); i++ {
		if s[i] == query[qi] {
			qi++
		}
	}
	return qi == len(query)
}
