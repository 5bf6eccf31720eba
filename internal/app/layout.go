package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/chipcheck/internal/ui"
)

const sidebarWidth = 22 // 20 content + 2 border/padding

// renderStationBar shows which station this is and which ports a unit run
// will use.
func renderStationBar(station, port, companion string, width int, sidebarFocused bool) string {
	parts := []string{
		"Station: " + ui.BoldStyle.Render(station),
		"Unit: " + portOrNone(port),
	}
	if companion != "" {
		parts = append(parts, "Companion: "+companion)
	}
	content := strings.Join(parts, "  │  ")
	if sidebarFocused {
		content += ui.DimStyle.Render("  [p] change unit port")
	}
	return ui.StatusBarStyle.Width(width).Render(content)
}

func portOrNone(port string) string {
	if port == "" {
		return ui.DimStyle.Render("(none)")
	}
	return port
}

func renderSidebar(pages []PageID, active PageID, pageMap map[PageID]Page, height int, focused bool) string {
	var b strings.Builder
	title := ui.TitleStyle.Render("chipcheck")
	if focused {
		title = ui.BoldStyle.Render("chipcheck [FOCUSED]")
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	for _, id := range pages {
		p := pageMap[id]
		if id == active {
			b.WriteString(ui.SidebarActiveStyle.Render("▸ " + p.Name()))
		} else {
			b.WriteString(ui.SidebarItemStyle.Render("  " + p.Name()))
		}
		b.WriteString("\n")
	}

	style := ui.SidebarStyle.Height(height)
	if focused {
		style = style.BorderForeground(ui.Primary)
	}
	return style.Render(b.String())
}

func renderStatusBar(pageHelp []key.Binding, width int, focus FocusArea) string {
	var parts []string

	// Focus-specific instructions
	if focus == FocusSidebar {
		parts = append(parts,
			ui.StatusKey("↑/↓", "navigate"),
			ui.StatusKey("enter", "select"),
			ui.StatusKey("p", "port"),
		)
	} else {
		// Page-specific keys when content is focused
		for _, kb := range pageHelp {
			if kb.Enabled() {
				parts = append(parts, ui.StatusKey(kb.Help().Key, kb.Help().Desc))
			}
		}
	}

	// Always add global keys
	parts = append(parts,
		ui.StatusKey("tab", "focus"),
		ui.StatusKey("?", "help"),
		ui.StatusKey("q", "quit"),
	)

	line := strings.Join(parts, "  ")
	return ui.StatusBarStyle.Width(width).Render(line)
}

func renderLayout(stationBar, sidebar, content, statusBar string) string {
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, stationBar, main, statusBar)
}
