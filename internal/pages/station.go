package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"

	"github.com/buckleypaul/chipcheck/internal/app"
	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/report"
	"github.com/buckleypaul/chipcheck/internal/station"
	"github.com/buckleypaul/chipcheck/internal/store"
	"github.com/buckleypaul/chipcheck/internal/ui"
)

// RunFunc processes one unit. station.Runner.Run satisfies it.
type RunFunc func(ctx context.Context, u station.Unit) (station.Result, error)

type stationField int

const (
	fieldPort stationField = iota
	fieldRole
	fieldKind
	fieldID
	fieldTarget
	fieldCompanion
	fieldChip
	fieldOnlyTest
	fieldCount
)

var stationLabels = [fieldCount]string{
	"Port", "Role", "Kind", "ID", "Target", "Companion", "Chip no.", "Only test",
}

type stationState int

const (
	stationStateIdle stationState = iota
	stationStateRunning
	stationStateDone
)

const labelWidth = 11

type stationDoneMsg struct {
	result station.Result
	err    error
}

type stationLineMsg struct {
	line string
}

type StationPage struct {
	// Form
	inputs   [fieldCount]*textinput.Model
	role     chip.Role
	kind     chip.Kind
	onlyTest bool
	focused  stationField

	// Run
	state    stationState
	output   strings.Builder
	viewport viewport.Model
	cancel   context.CancelFunc
	started  time.Time
	last     *station.Result
	verdict  *report.Row
	runErr   error

	// Dependencies
	run     RunFunc
	lines   <-chan string
	release func(port string) bool
	store   *store.Store
	cfg     *config.Config
	root    string

	width, height int
	message       string
}

// NewStationPage builds the unit form. lines streams programmer output and
// release frees a port held by the serial monitor; both may be nil.
func NewStationPage(run RunFunc, lines <-chan string, release func(string) bool, s *store.Store, cfg *config.Config, root string) *StationPage {
	p := &StationPage{
		run:      run,
		lines:    lines,
		release:  release,
		store:    s,
		cfg:      cfg,
		root:     root,
		viewport: viewport.New(0, 0),
	}
	placeholders := map[stationField]string{
		fieldPort:      "/dev/ttyUSB0",
		fieldID:        "decimal, required for relays",
		fieldTarget:    "master only: id to ping",
		fieldCompanion: "relay only: master port",
		fieldChip:      "printed on the chip",
	}
	for f := fieldPort; f < fieldCount; f++ {
		if f == fieldRole || f == fieldKind || f == fieldOnlyTest {
			continue
		}
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 128
		ti.Placeholder = placeholders[f]
		p.inputs[f] = &ti
	}
	p.inputs[fieldPort].SetValue(cfg.UnitPort)
	p.inputs[fieldCompanion].SetValue(cfg.CompanionPort)
	p.inputs[fieldPort].Focus()
	return p
}

func (p *StationPage) Init() tea.Cmd {
	return p.waitForLine()
}

func (p *StationPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PortSelectedMsg:
		if p.state != stationStateRunning {
			p.inputs[fieldPort].SetValue(msg.Port)
		}
		return p, nil

	case stationLineMsg:
		if p.state == stationStateRunning {
			p.output.WriteString(msg.line + "\n")
			p.updateViewportContent()
			p.viewport.GotoBottom()
		}
		return p, p.waitForLine()

	case stationDoneMsg:
		return p, p.complete(msg)

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *StationPage) handleKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	keyStr := msg.String()

	if p.state == stationStateRunning {
		if keyStr == "esc" && p.cancel != nil {
			p.cancel()
			p.message = "Cancelling..."
			return p, nil
		}
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	}

	switch keyStr {
	case "tab", "down":
		p.advanceField(1)
		return p, nil
	case "shift+tab", "up":
		p.advanceField(-1)
		return p, nil
	case "ctrl+r":
		return p, p.start()
	case "esc":
		if p.state == stationStateDone {
			p.reset()
			return p, nil
		}
		p.blurAll()
		return p, nil
	}

	if in := p.inputs[p.focused]; in != nil && in.Focused() {
		if keyStr == "enter" {
			return p, p.start()
		}
		var cmd tea.Cmd
		*in, cmd = in.Update(msg)
		return p, cmd
	}

	switch keyStr {
	case "enter", " ":
		switch p.focused {
		case fieldRole:
			p.role = chip.Roles()[(int(p.role)+1)%len(chip.Roles())]
		case fieldKind:
			p.kind = chip.Kinds()[(int(p.kind)+1)%len(chip.Kinds())]
		case fieldOnlyTest:
			p.onlyTest = !p.onlyTest
		default:
			p.focusCurrent()
		}
	case "r":
		return p, p.start()
	}
	return p, nil
}

func (p *StationPage) advanceField(dir int) {
	p.blurAll()
	p.focused = stationField((int(p.focused) + int(fieldCount) + dir) % int(fieldCount))
	p.focusCurrent()
}

func (p *StationPage) blurAll() {
	for _, in := range p.inputs {
		if in != nil {
			in.Blur()
		}
	}
}

func (p *StationPage) focusCurrent() {
	if in := p.inputs[p.focused]; in != nil {
		in.Focus()
	}
}

func (p *StationPage) reset() {
	p.state = stationStateIdle
	p.output.Reset()
	p.updateViewportContent()
	p.last, p.verdict, p.runErr = nil, nil, nil
	p.message = ""
}

// unit turns the form into a validated unit.
func (p *StationPage) unit() (station.Unit, error) {
	pu := config.PlanUnit{
		Port:       strings.TrimSpace(p.inputs[fieldPort].Value()),
		Role:       p.role.String(),
		Kind:       p.kind.String(),
		Companion:  strings.TrimSpace(p.inputs[fieldCompanion].Value()),
		ChipNumber: strings.TrimSpace(p.inputs[fieldChip].Value()),
		OnlyTest:   p.onlyTest,
	}
	var err error
	if pu.ID, err = parseNodeID(p.inputs[fieldID].Value()); err != nil {
		return station.Unit{}, fmt.Errorf("id: %w", err)
	}
	if pu.Target, err = parseNodeID(p.inputs[fieldTarget].Value()); err != nil {
		return station.Unit{}, fmt.Errorf("target: %w", err)
	}
	if err := pu.Validate(); err != nil {
		return station.Unit{}, err
	}
	return station.UnitFromPlan(pu, *p.cfg)
}

func parseNodeID(s string) (*uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%q is not a node id", s)
	}
	v := uint32(n)
	return &v, nil
}

func (p *StationPage) start() tea.Cmd {
	if p.run == nil {
		p.message = "No station runner configured"
		return nil
	}
	u, err := p.unit()
	if err != nil {
		p.message = err.Error()
		return nil
	}

	var cmds []tea.Cmd
	if p.release != nil {
		for _, port := range []string{u.Port, u.Companion} {
			if port != "" && p.release(port) {
				released := port
				cmds = append(cmds, func() tea.Msg { return app.PortReleasedMsg{Port: released} })
			}
		}
	}

	p.blurAll()
	p.reset()
	p.state = stationStateRunning
	p.started = time.Now()

	label := fmt.Sprintf("Testing %s (%s, %s) on %s", chipLabel(u.ChipNumber), u.Role, u.Kind, u.Port)
	if !u.OnlyTest {
		label = fmt.Sprintf("Flashing and testing %s (%s, %s) on %s", chipLabel(u.ChipNumber), u.Role, u.Kind, u.Port)
	}
	p.output.WriteString(label + "...\n\n")
	p.updateViewportContent()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	run := p.run
	cmds = append(cmds, func() tea.Msg {
		res, err := run(ctx, u)
		return stationDoneMsg{result: res, err: err}
	})
	return tea.Batch(cmds...)
}

func (p *StationPage) complete(msg stationDoneMsg) tea.Cmd {
	if p.state != stationStateRunning {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state = stationStateDone
	res := msg.result
	p.last = &res
	p.runErr = msg.err

	elapsed := time.Since(p.started).Round(time.Millisecond)
	if msg.err != nil {
		p.output.WriteString(fmt.Sprintf("\nFailed after %s: %v\n", elapsed, msg.err))
		p.updateViewportContent()
		p.viewport.GotoBottom()
		if res.FlashID == 0 {
			return nil
		}
		return unitDone(res.FlashID)
	}

	p.output.WriteString(fmt.Sprintf("\nDone in %s: %s\n", elapsed, formatOutcome(res.Outcome)))
	p.updateViewportContent()
	p.viewport.GotoBottom()

	if p.store != nil {
		if units, err := p.store.Units(time.Time{}, time.Time{}); err == nil {
			if row, ok := report.Build(units).Find(res.FlashID); ok {
				p.verdict = &row
			}
		}
	}

	p.cfg.UnitPort = res.Unit.Port
	config.Save(*p.cfg, p.root, false)
	p.bumpChipNumber()
	return unitDone(res.FlashID)
}

func unitDone(flashID int64) tea.Cmd {
	return func() tea.Msg { return app.UnitDoneMsg{FlashID: flashID} }
}

// bumpChipNumber advances a numeric chip number for the next unit.
func (p *StationPage) bumpChipNumber() {
	in := p.inputs[fieldChip]
	if n, err := strconv.Atoi(in.Value()); err == nil {
		in.SetValue(strconv.Itoa(n + 1))
	}
}

func (p *StationPage) waitForLine() tea.Cmd {
	if p.lines == nil {
		return nil
	}
	lines := p.lines
	return func() tea.Msg {
		line, ok := <-lines
		if !ok {
			return nil
		}
		return stationLineMsg{line: line}
	}
}

func chipLabel(number string) string {
	if number == "" {
		return "unit"
	}
	return "chip " + number
}

func formatOutcome(out chip.Outcome) string {
	if !out.Flashed() {
		return "not flashed"
	}
	if v, ok := out.RSSI(); ok {
		return fmt.Sprintf("flashed, rssi %d", v)
	}
	return "flashed, rssi " + chip.RSSIUnavailable
}

func (p *StationPage) View() string {
	formHeight := int(fieldCount) + 8
	outputHeight := p.height - formHeight - 1
	if outputHeight < 5 {
		outputHeight = 5
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		p.viewForm(p.width),
		p.viewOutput(p.width, outputHeight),
	)
}

func (p *StationPage) viewForm(width int) string {
	var b strings.Builder
	b.WriteString(ui.Title("Station"))
	b.WriteString("\n")

	inputWidth := width - labelWidth - 4
	if inputWidth < 10 {
		inputWidth = 10
	}

	for f := fieldPort; f < fieldCount; f++ {
		var value string
		switch f {
		case fieldRole:
			value = p.role.String()
		case fieldKind:
			value = p.kind.String()
		case fieldOnlyTest:
			value = "[ ]"
			if p.onlyTest {
				value = "[x]"
			}
		default:
			p.inputs[f].Width = inputWidth
			value = p.inputs[f].View()
		}
		b.WriteString(ui.Field(stationLabels[f], value, labelWidth, p.focused == f))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(p.viewStatus())
	b.WriteString("\n")
	return b.String()
}

func (p *StationPage) viewStatus() string {
	switch {
	case p.message != "":
		return ui.ErrorStyle.Render(p.message)
	case p.state == stationStateRunning:
		return ui.DimStyle.Render("Running... esc: cancel")
	case p.state == stationStateDone && p.runErr != nil:
		return ui.ErrorBadge("ERROR") + " " + p.runErr.Error()
	case p.state == stationStateDone && p.last != nil:
		out := p.last.Outcome
		parts := []string{ui.ErrorBadge("NOT FLASHED")}
		if out.Flashed() {
			parts = []string{ui.SuccessBadge("FLASHED")}
		}
		rssi, ok := out.RSSI()
		parts = append(parts, ui.RSSIBadge(strconv.Itoa(rssi), ok))
		if p.verdict != nil {
			parts = append(parts, ui.VerdictBadge(p.verdict.Pass))
			if p.verdict.HasRSSI {
				parts = append(parts, ui.DimStyle.Render(fmt.Sprintf("%d dB vs best", p.verdict.DBVsBest)))
			}
		}
		return strings.Join(parts, " ")
	}
	return ui.DimStyle.Render("ctrl+r: run  tab: next field  space: change")
}

func (p *StationPage) viewOutput(width, height int) string {
	contentWidth := width - 3
	contentHeight := height - 2
	if contentWidth < 10 {
		contentWidth = 10
	}
	if contentHeight < 3 {
		contentHeight = 3
	}

	oldWidth := p.viewport.Width
	p.viewport.Width = contentWidth
	p.viewport.Height = contentHeight
	if oldWidth != contentWidth && p.output.Len() > 0 {
		p.updateViewportContent()
	}

	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderTop(true).
		BorderForeground(ui.Surface).
		PaddingLeft(1)

	if p.output.Len() == 0 {
		return style.Render(ui.DimStyle.Render("Programmer output will appear here..."))
	}
	return style.Render(p.viewport.View())
}

func (p *StationPage) updateViewportContent() {
	if p.viewport.Width <= 0 {
		p.viewport.SetContent(p.output.String())
		return
	}
	// Hard wrap: programmer paths have no spaces to break on.
	lines := strings.Split(wrap.String(p.output.String(), p.viewport.Width), "\n")
	for i, line := range lines {
		if ansi.PrintableRuneWidth(line) > p.viewport.Width {
			lines[i] = truncate.String(line, uint(p.viewport.Width))
		}
	}
	p.viewport.SetContent(strings.Join(lines, "\n"))
}

func (p *StationPage) Name() string { return "Station" }

func (p *StationPage) ShortHelp() []key.Binding {
	if p.state == stationStateRunning {
		return []key.Binding{
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	bindings := []key.Binding{
		key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "run")),
	}
	if p.state == stationStateDone {
		bindings = append(bindings, key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")))
	}
	return bindings
}

func (p *StationPage) InputCaptured() bool {
	if p.state == stationStateRunning {
		return false
	}
	in := p.inputs[p.focused]
	return in != nil && in.Focused()
}

func (p *StationPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
