package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/buckleypaul/chipcheck/internal/ui"
)

// TextRows returns the report as text cells in Headers order followed by the
// derived columns.
func (r Report) TextRows() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		cells := make([]string, 0, len(r.Headers)+2)
		for _, h := range r.Headers {
			cells = append(cells, row.Values[h])
		}
		if row.HasRSSI && r.HasTop5 {
			cells = append(cells, strconv.Itoa(row.DBVsBest))
		} else {
			cells = append(cells, notAvail)
		}
		if row.Pass {
			cells = append(cells, "PASS")
		} else {
			cells = append(cells, "NO PASS")
		}
		out = append(out, cells)
	}
	return out
}

// Table renders the report for a terminal.
func Table(r Report) string {
	headers := append(append([]string{}, r.Headers...), ColDBVsBest, ColPass)
	rows := r.TextRows()
	passCol := len(headers) - 1

	headerStyle := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Foreground(ui.Text).Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.Subtle)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == passCol && row >= 0 && row < len(r.Rows) {
				if r.Rows[row].Pass {
					return cellStyle.Foreground(ui.Success)
				}
				return cellStyle.Foreground(ui.Error)
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(Summary(r))
	return b.String()
}

// Summary is the footer line: reference average and pass count.
func Summary(r Report) string {
	top := notAvail
	if r.HasTop5 {
		top = fmt.Sprintf("%.1f", r.Top5Average)
	}
	return fmt.Sprintf("Top 5dB average: %s   Succeeded: %d/%d (%.0f%%)",
		top, r.Passed, len(r.Rows), r.PassRate()*100)
}
