package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/chipcheck/internal/app"
	"github.com/buckleypaul/chipcheck/internal/pages"
	"github.com/buckleypaul/chipcheck/internal/station"
)

func stationCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "station",
		Short: "Open the interactive station (default)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStation(g)
		},
	}
}

func runStation(g *globalFlags) error {
	// The TUI owns the terminal, so logs only go to the file.
	e, err := loadEnv(g, nil)
	if err != nil {
		return err
	}
	defer e.close()

	lines := make(chan string, 256)
	onLine := func(line string) {
		select {
		case lines <- line:
		default:
		}
	}

	runner, closePub := station.NewRunner(e.cfg, e.store, onLine, e.log)
	defer closePub()

	cfg := e.cfg
	monitor := pages.NewMonitorPage(e.store, cfg.SerialBaudRate)
	pageMap := map[app.PageID]app.Page{
		app.StationPage:  pages.NewStationPage(runner.Run, lines, monitor.Release, e.store, &cfg, e.root),
		app.MonitorPage:  monitor,
		app.PortsPage:    pages.NewPortsPage(&cfg, e.root),
		app.HistoryPage:  pages.NewHistoryPage(e.store, e.root),
		app.SettingsPage: pages.NewSettingsPage(&cfg, e.root),
	}

	model := app.New(pageMap, &cfg, e.root, runner.Station)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}
