package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/buckleypaul/chipcheck/internal/app"
	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/serial"
	"github.com/buckleypaul/chipcheck/internal/ui"
)

// PortsPage lists serial ports and assigns them as unit or companion port.
type PortsPage struct {
	ports   []serial.PortInfo
	cursor  int
	loading bool

	cfg  *config.Config
	root string

	width, height int
	message       string
}

func NewPortsPage(cfg *config.Config, root string) *PortsPage {
	return &PortsPage{cfg: cfg, root: root}
}

func (p *PortsPage) Init() tea.Cmd {
	p.loading = true
	return app.ListPorts()
}

func (p *PortsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PortsListedMsg:
		p.loading = false
		if msg.Err != nil {
			p.message = fmt.Sprintf("Error listing ports: %v", msg.Err)
			return p, nil
		}
		p.ports = msg.Ports
		if p.cursor >= len(p.ports) {
			p.cursor = 0
		}
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "down":
			if p.cursor < len(p.ports)-1 {
				p.cursor++
			}
		case "r":
			p.loading = true
			return p, app.ListPorts()
		case "enter":
			if port, ok := p.current(); ok {
				p.message = fmt.Sprintf("Unit port set to %s", port)
				return p, func() tea.Msg { return app.PortSelectedMsg{Port: port} }
			}
		case "c":
			if port, ok := p.current(); ok {
				p.cfg.CompanionPort = port
				if err := config.Save(*p.cfg, p.root, false); err != nil {
					p.message = fmt.Sprintf("Error saving: %v", err)
				} else {
					p.message = fmt.Sprintf("Companion port set to %s", port)
				}
			}
		}
	}
	return p, nil
}

func (p *PortsPage) current() (string, bool) {
	if p.cursor < 0 || p.cursor >= len(p.ports) {
		return "", false
	}
	return p.ports[p.cursor].Name, true
}

// portRows renders the list as table cells; role marks the unit and
// companion ports.
func (p *PortsPage) portRows() [][]string {
	rows := make([][]string, 0, len(p.ports))
	for _, port := range p.ports {
		role := ""
		switch port.Name {
		case p.cfg.UnitPort:
			role = "unit"
		case p.cfg.CompanionPort:
			role = "companion"
		}
		usb := ""
		if port.IsUSB {
			usb = port.VID + ":" + port.PID
		}
		rows = append(rows, []string{port.Name, usb, port.SerialNumber, port.Product, role})
	}
	return rows
}

func (p *PortsPage) View() string {
	var b strings.Builder
	switch {
	case p.loading:
		b.WriteString("Scanning ports...")
	case len(p.ports) == 0:
		b.WriteString(ui.DimStyle.Render("No serial ports found."))
	default:
		headerStyle := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Foreground(ui.Text).Padding(0, 1)
		selected := cellStyle.Foreground(ui.Primary).Bold(true)
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(ui.Subtle)).
			Headers("PORT", "USB", "SERIAL", "PRODUCT", "ROLE").
			Rows(p.portRows()...).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				case row == p.cursor:
					return selected
				}
				return cellStyle
			})
		b.WriteString(t.Render())
	}
	if p.message != "" {
		b.WriteString("\n\n" + p.message)
	}
	return ui.Panel("Ports", b.String(), p.width, 0, false)
}

func (p *PortsPage) Name() string { return "Ports" }

func (p *PortsPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "unit port")),
		key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "companion")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

func (p *PortsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
