package pages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/chipcheck/internal/app"
	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/ui"
)

type settingField struct {
	label string
	key   string
}

var settingFields = []settingField{
	{"Station", "station"},
	{"Companion Port", "companion_port"},
	{"Serial Baud Rate", "serial_baud_rate"},
	{"RSSI Samples", "samples"},
	{"Programmer", "programmer"},
	{"Programmer Port", "programmer_port"},
	{"Hex Directory", "hex_dir"},
	{"Tool Directory", "tool_dir"},
	{"Flash Retries", "flash_retries"},
	{"MQTT Broker", "mqtt_broker"},
	{"MQTT Topic Prefix", "mqtt_topic_prefix"},
}

type SettingsPage struct {
	cfg           *config.Config
	root          string
	cursor        int
	editing       bool
	input         textinput.Model
	width, height int
	message       string
}

func NewSettingsPage(cfg *config.Config, root string) *SettingsPage {
	ti := textinput.New()
	ti.CharLimit = 128
	return &SettingsPage{
		cfg:   cfg,
		root:  root,
		input: ti,
	}
}

func (p *SettingsPage) Init() tea.Cmd { return nil }

func (p *SettingsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if p.editing {
			switch msg.String() {
			case "enter":
				p.applyValue(p.input.Value())
				p.editing = false
				p.input.Blur()
				return p, nil
			case "esc":
				p.editing = false
				p.input.Blur()
				return p, nil
			}
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return p, cmd
		}

		switch msg.String() {
		case "down":
			if p.cursor < len(settingFields)-1 {
				p.cursor++
			}
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "enter", "e":
			p.editing = true
			p.input.SetValue(p.getValue(p.cursor))
			p.input.Focus()
			return p, p.input.Focus()
		case "s":
			if err := config.Save(*p.cfg, p.root, false); err != nil {
				p.message = fmt.Sprintf("Error saving: %v", err)
			} else {
				p.message = "Settings saved to " + config.StateDir(p.root)
			}
		case "S":
			if err := config.Save(*p.cfg, p.root, true); err != nil {
				p.message = fmt.Sprintf("Error saving: %v", err)
			} else {
				p.message = "Settings saved globally"
			}
		}
	}
	return p, nil
}

func (p *SettingsPage) View() string {
	var inner strings.Builder

	for i, f := range settingFields {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		val := p.getValue(i)
		if val == "" {
			val = ui.DimStyle.Render("(not set)")
		}

		line := fmt.Sprintf("%s%-20s %s", cursor, f.label, val)
		inner.WriteString(line)
		inner.WriteString("\n")
	}

	if p.editing {
		inner.WriteString("\n")
		inner.WriteString(fmt.Sprintf("  Edit %s:\n", settingFields[p.cursor].label))
		inner.WriteString("  " + p.input.View())
		inner.WriteString("\n")
	}

	if p.message != "" {
		inner.WriteString("\n  " + p.message)
	}

	return ui.Panel("Settings", inner.String(), p.width, 0, false)
}

func (p *SettingsPage) Name() string { return "Settings" }

func (p *SettingsPage) ShortHelp() []key.Binding {
	if p.editing {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "save global")),
	}
}

func (p *SettingsPage) InputCaptured() bool {
	return p.editing
}

func (p *SettingsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}

func (p *SettingsPage) getValue(idx int) string {
	switch settingFields[idx].key {
	case "station":
		return p.cfg.Station
	case "companion_port":
		return p.cfg.CompanionPort
	case "serial_baud_rate":
		return strconv.Itoa(p.cfg.SerialBaudRate)
	case "samples":
		return strconv.Itoa(p.cfg.Samples)
	case "programmer":
		return p.cfg.Programmer
	case "programmer_port":
		return p.cfg.ProgrammerPort
	case "hex_dir":
		return p.cfg.HexDir
	case "tool_dir":
		return p.cfg.ToolDir
	case "flash_retries":
		return strconv.Itoa(p.cfg.FlashRetries)
	case "mqtt_broker":
		return p.cfg.MQTT.Broker
	case "mqtt_topic_prefix":
		return p.cfg.MQTT.TopicPrefix
	}
	return ""
}

func (p *SettingsPage) applyValue(val string) {
	label := settingFields[p.cursor].label
	switch settingFields[p.cursor].key {
	case "station":
		p.cfg.Station = val
	case "companion_port":
		p.cfg.CompanionPort = val
	case "serial_baud_rate":
		if !setPositive(&p.cfg.SerialBaudRate, val) {
			p.message = fmt.Sprintf("%s must be a positive number", label)
			return
		}
	case "samples":
		if !setPositive(&p.cfg.Samples, val) {
			p.message = fmt.Sprintf("%s must be a positive number", label)
			return
		}
	case "programmer":
		p.cfg.Programmer = val
	case "programmer_port":
		p.cfg.ProgrammerPort = val
	case "hex_dir":
		p.cfg.HexDir = val
	case "tool_dir":
		p.cfg.ToolDir = val
	case "flash_retries":
		if !setPositive(&p.cfg.FlashRetries, val) {
			p.message = fmt.Sprintf("%s must be a positive number", label)
			return
		}
	case "mqtt_broker":
		p.cfg.MQTT.Broker = val
	case "mqtt_topic_prefix":
		p.cfg.MQTT.TopicPrefix = val
	}
	p.message = fmt.Sprintf("%s updated", label)
}

func setPositive(dst *int, val string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n <= 0 {
		return false
	}
	*dst = n
	return true
}
