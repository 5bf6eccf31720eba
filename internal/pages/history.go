package pages

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/chipcheck/internal/app"
	"github.com/buckleypaul/chipcheck/internal/report"
	"github.com/buckleypaul/chipcheck/internal/store"
	"github.com/buckleypaul/chipcheck/internal/ui"
)

type historyWindow int

const (
	windowAll historyWindow = iota
	windowToday
	windowWeek
	windowCount
)

func (w historyWindow) String() string {
	switch w {
	case windowToday:
		return "today"
	case windowWeek:
		return "last 7 days"
	}
	return "all time"
}

type historyLoadedMsg struct {
	report report.Report
	err    error
}

type historyExportedMsg struct {
	path string
	err  error
}

// HistoryPage shows the pass/fail report over recorded units.
type HistoryPage struct {
	store  *store.Store
	root   string
	now    func() time.Time
	window historyWindow

	report   report.Report
	loaded   bool
	viewport viewport.Model

	width, height int
	message       string
}

func NewHistoryPage(s *store.Store, root string) *HistoryPage {
	return &HistoryPage{
		store:    s,
		root:     root,
		now:      time.Now,
		viewport: viewport.New(0, 0),
	}
}

func (p *HistoryPage) Init() tea.Cmd {
	return p.load()
}

// bounds returns the flash time window; zero values are open.
func (p *HistoryPage) bounds() (time.Time, time.Time) {
	now := p.now()
	switch p.window {
	case windowToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), time.Time{}
	case windowWeek:
		return now.AddDate(0, 0, -7), time.Time{}
	}
	return time.Time{}, time.Time{}
}

func (p *HistoryPage) load() tea.Cmd {
	if p.store == nil {
		return nil
	}
	st := p.store
	from, to := p.bounds()
	return func() tea.Msg {
		units, err := st.Units(from, to)
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		return historyLoadedMsg{report: report.Build(units)}
	}
}

func (p *HistoryPage) export() tea.Cmd {
	rep := p.report
	path := filepath.Join(p.root, fmt.Sprintf("report-%s.xlsx", p.now().Format("2006-01-02_15-04")))
	return func() tea.Msg {
		return historyExportedMsg{path: path, err: report.WriteXLSX(path, rep)}
	}
}

func (p *HistoryPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Error loading history: %v", msg.err)
			return p, nil
		}
		p.report = msg.report
		p.loaded = true
		p.viewport.SetContent(report.Table(p.report))
		return p, nil

	case historyExportedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Export failed: %v", msg.err)
		} else {
			p.message = "Wrote " + msg.path
		}
		return p, nil

	case app.UnitDoneMsg:
		return p, p.load()

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return p, p.load()
		case "f":
			p.window = (p.window + 1) % windowCount
			p.message = ""
			return p, p.load()
		case "x":
			if len(p.report.Rows) == 0 {
				p.message = "Nothing to export"
				return p, nil
			}
			return p, p.export()
		}
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *HistoryPage) View() string {
	var b strings.Builder
	b.WriteString(ui.Title("History"))
	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render("Window: " + p.window.String()))
	b.WriteString("\n\n")

	switch {
	case !p.loaded && p.message == "":
		b.WriteString("Loading...")
	case p.loaded && len(p.report.Rows) == 0:
		b.WriteString(ui.DimStyle.Render("No units recorded in this window."))
	case p.loaded:
		p.viewport.Width = p.width
		p.viewport.Height = p.height - 6
		if p.viewport.Height < 3 {
			p.viewport.Height = 3
		}
		b.WriteString(p.viewport.View())
	}
	if p.message != "" {
		b.WriteString("\n" + p.message)
	}
	return b.String()
}

func (p *HistoryPage) Name() string { return "History" }

func (p *HistoryPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "window")),
		key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export xlsx")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

func (p *HistoryPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
