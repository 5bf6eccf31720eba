package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/chipcheck/internal/serial"
)

// PageID identifies each page in the application.
type PageID int

const (
	StationPage PageID = iota
	MonitorPage
	PortsPage
	HistoryPage
	SettingsPage
)

var PageOrder = []PageID{
	StationPage,
	MonitorPage,
	PortsPage,
	HistoryPage,
	SettingsPage,
}

// Page is the interface every page in the application implements.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	Name() string
	ShortHelp() []key.Binding
	SetSize(width, height int)
}

// InputCapturer is an optional interface for pages with text inputs.
// When InputCaptured returns true, the app forwards all keys directly
// to the page instead of processing shortcuts like q, ?, left, etc.
type InputCapturer interface {
	InputCaptured() bool
}

// PortSelectedMsg is broadcast to all pages when a unit port is picked.
type PortSelectedMsg struct {
	Port string
}

// PortReleasedMsg is broadcast after the monitor let go of a port so a
// unit session can open it.
type PortReleasedMsg struct {
	Port string
}

// UnitDoneMsg is broadcast when the station page finishes a unit, so pages
// showing history can refresh.
type UnitDoneMsg struct {
	FlashID int64
}

// PortsListedMsg carries the result of ListPorts.
type PortsListedMsg struct {
	Ports []serial.PortInfo
	Err   error
}

// ListPorts enumerates serial ports in the background.
func ListPorts() tea.Cmd {
	return func() tea.Msg {
		ports, err := serial.ListPorts()
		return PortsListedMsg{Ports: ports, Err: err}
	}
}
