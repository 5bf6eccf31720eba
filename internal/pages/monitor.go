package pages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"

	"github.com/buckleypaul/chipcheck/internal/app"
	"github.com/buckleypaul/chipcheck/internal/serial"
	"github.com/buckleypaul/chipcheck/internal/store"
	"github.com/buckleypaul/chipcheck/internal/ui"
)

type monitorState int

const (
	monitorStatePortSelect monitorState = iota
	monitorStateConnected
)

// maxMonitorBytes bounds the scrollback kept in memory.
const maxMonitorBytes = 256 * 1024

type monitorConnectedMsg struct {
	portName string
	baudRate int
	err      error
}

type monitorDataMsg struct {
	data string
}

type monitorErrMsg struct {
	err error
}

type MonitorPage struct {
	monitor  *serial.Monitor
	store    *store.Store
	baudRate int

	state    monitorState
	ports    []serial.PortInfo
	cursor   int
	portName string

	input    textinput.Model
	viewport viewport.Model
	output   strings.Builder
	logFile  *os.File

	width, height int
	message       string
}

func NewMonitorPage(s *store.Store, baudRate int) *MonitorPage {
	ti := textinput.New()
	ti.Placeholder = "type a line, enter to send"
	ti.Prompt = "> "
	ti.CharLimit = 256

	return &MonitorPage{
		monitor:  serial.NewMonitor(),
		store:    s,
		baudRate: baudRate,
		input:    ti,
		viewport: viewport.New(0, 0),
	}
}

func (p *MonitorPage) Init() tea.Cmd {
	return app.ListPorts()
}

func (p *MonitorPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PortsListedMsg:
		if msg.Err != nil {
			p.message = fmt.Sprintf("Error listing ports: %v", msg.Err)
			return p, nil
		}
		p.ports = msg.Ports
		if p.cursor >= len(p.ports) {
			p.cursor = 0
		}
		return p, nil

	case app.PortSelectedMsg:
		for i, port := range p.ports {
			if port.Name == msg.Port {
				p.cursor = i
			}
		}
		return p, nil

	case app.PortReleasedMsg:
		if p.state == monitorStateConnected && msg.Port == p.portName {
			p.disconnected(fmt.Sprintf("Released %s for a unit session", msg.Port))
		}
		return p, nil

	case monitorConnectedMsg:
		if msg.err != nil {
			p.state = monitorStatePortSelect
			p.message = fmt.Sprintf("Failed to connect: %v", msg.err)
			return p, nil
		}
		p.state = monitorStateConnected
		p.portName = msg.portName
		p.message = fmt.Sprintf("Connected to %s @ %d", msg.portName, msg.baudRate)
		p.output.Reset()
		p.openLog(msg.portName, msg.baudRate)
		return p, tea.Batch(p.input.Focus(), p.waitForData())

	case monitorDataMsg:
		if p.state != monitorStateConnected {
			return p, nil
		}
		p.appendOutput(msg.data, msg.data)
		return p, p.waitForData()

	case monitorErrMsg:
		if p.state != monitorStateConnected {
			return p, nil
		}
		p.monitor.Disconnect()
		if serial.IsDisconnect(msg.err) {
			p.disconnected(fmt.Sprintf("%s went away", p.portName))
		} else {
			p.disconnected(fmt.Sprintf("Disconnected: %v", msg.err))
		}
		return p, nil

	case tea.KeyMsg:
		if p.state == monitorStateConnected {
			return p.handleConnectedKey(msg)
		}
		return p.handleSelectKey(msg)
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *MonitorPage) handleSelectKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
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
		return p, app.ListPorts()
	case "enter":
		if len(p.ports) == 0 {
			p.message = "No ports found"
			return p, nil
		}
		return p, p.connect(p.ports[p.cursor].Name)
	}
	return p, nil
}

func (p *MonitorPage) handleConnectedKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	switch msg.String() {
	case "esc":
		p.monitor.Disconnect()
		p.disconnected(fmt.Sprintf("Disconnected from %s", p.portName))
		return p, nil
	case "enter":
		line := p.input.Value()
		p.input.SetValue("")
		if err := p.monitor.Write([]byte(line + "\n")); err != nil {
			p.message = fmt.Sprintf("Send failed: %v", err)
			return p, nil
		}
		p.appendOutput(ui.TxStyle.Render("> "+line)+"\n", "> "+line+"\n")
		return p, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *MonitorPage) connect(name string) tea.Cmd {
	mon, baud := p.monitor, p.baudRate
	p.message = fmt.Sprintf("Connecting to %s...", name)
	return func() tea.Msg {
		err := mon.Connect(name, baud)
		return monitorConnectedMsg{portName: name, baudRate: baud, err: err}
	}
}

func (p *MonitorPage) disconnected(message string) {
	p.state = monitorStatePortSelect
	p.input.Blur()
	p.closeLog()
	p.message = message
}

// Release frees port if the monitor holds it. The page learns about it
// through app.PortReleasedMsg.
func (p *MonitorPage) Release(port string) bool {
	return p.monitor.Release(port)
}

func (p *MonitorPage) waitForData() tea.Cmd {
	mon := p.monitor
	return func() tea.Msg {
		select {
		case data := <-mon.DataChan():
			return monitorDataMsg{data: data}
		case err := <-mon.ErrChan():
			return monitorErrMsg{err: err}
		}
	}
}

func (p *MonitorPage) appendOutput(styled, raw string) {
	p.output.WriteString(styled)
	if p.output.Len() > maxMonitorBytes {
		tail := p.output.String()[p.output.Len()-maxMonitorBytes/2:]
		p.output.Reset()
		p.output.WriteString(tail)
	}
	if p.logFile != nil {
		p.logFile.WriteString(raw)
	}
	atBottom := p.viewport.AtBottom()
	content := p.output.String()
	if p.viewport.Width > 0 {
		content = wrap.String(content, p.viewport.Width)
	}
	p.viewport.SetContent(content)
	if atBottom {
		p.viewport.GotoBottom()
	}
}

func (p *MonitorPage) openLog(port string, baud int) {
	if p.store == nil {
		return
	}
	dir, err := p.store.LogsDir()
	if err != nil {
		p.message += fmt.Sprintf(" (no log: %v)", err)
		return
	}
	ts := time.Now()
	name := fmt.Sprintf("serial-%s-%s.log", filepath.Base(port), ts.Format("20060102-150405"))
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		p.message += fmt.Sprintf(" (no log: %v)", err)
		return
	}
	p.logFile = f
	p.store.AddSerialLog(store.SerialLog{
		Port:      port,
		BaudRate:  baud,
		Timestamp: ts,
		LogFile:   path,
	})
}

func (p *MonitorPage) closeLog() {
	if p.logFile != nil {
		p.logFile.Close()
		p.logFile = nil
	}
}

func (p *MonitorPage) View() string {
	if p.state == monitorStateConnected {
		return p.viewConnected()
	}

	var b strings.Builder
	if len(p.ports) == 0 {
		b.WriteString(ui.DimStyle.Render("No serial ports found. r: refresh"))
	}
	for i, port := range p.ports {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}
		desc := ""
		if port.IsUSB {
			desc = ui.DimStyle.Render(fmt.Sprintf("  %s:%s %s", port.VID, port.PID, port.Product))
		}
		b.WriteString(cursor + port.Name + desc + "\n")
	}
	if p.message != "" {
		b.WriteString("\n" + p.message)
	}
	return ui.Panel(fmt.Sprintf("Monitor @ %d", p.baudRate), b.String(), p.width, 0, true)
}

func (p *MonitorPage) viewConnected() string {
	header := ui.SuccessBadge("CONNECTED") + " " + p.message
	p.viewport.Width = p.width - 4
	p.viewport.Height = p.height - 6
	if p.viewport.Height < 3 {
		p.viewport.Height = 3
	}
	body := ui.Panel(p.portName, p.viewport.View(), p.width, p.viewport.Height+2, false)
	p.input.Width = p.width - 4
	return lipgloss.JoinVertical(lipgloss.Left, header, body, p.input.View())
}

func (p *MonitorPage) Name() string { return "Monitor" }

func (p *MonitorPage) ShortHelp() []key.Binding {
	if p.state == monitorStateConnected {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
			key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "disconnect")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

func (p *MonitorPage) InputCaptured() bool {
	return p.state == monitorStateConnected && p.input.Focused()
}

func (p *MonitorPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
