package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName = "REPORT"
	// highlight marks unflashed units and missing RSSI.
	highlight = "FD5421"
)

// WriteXLSX saves rep as a workbook. Derived columns are written as live
// formulas so edits to RSSI in the sheet recompute the verdicts.
func WriteXLSX(path string, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}
	headers := append(append([]string{}, rep.Headers...), ColDBVsBest, ColPass)

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	col := map[string]string{}
	for i, h := range headers {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		col[h] = name
	}

	fill, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{highlight}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	n := len(rep.Rows)
	top5Cell := fmt.Sprintf("$B$%d", n+3)

	for i, row := range rep.Rows {
		r := i + 2
		for _, h := range rep.Headers {
			cell := fmt.Sprintf("%s%d", col[h], r)
			var v interface{} = row.Values[h]
			if h == keyRSSI && row.HasRSSI {
				v = row.RSSI
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}

		flashedCell := fmt.Sprintf("%s%d", col[keyFlashed], r)
		rssiCell := fmt.Sprintf("%s%d", col[keyRSSI], r)
		dbCell := fmt.Sprintf("%s%d", col[ColDBVsBest], r)
		passCell := fmt.Sprintf("%s%d", col[ColPass], r)

		if !row.Flashed() {
			if err := f.SetCellStyle(sheetName, flashedCell, flashedCell, fill); err != nil {
				return err
			}
		}
		if !row.HasRSSI {
			if err := f.SetCellStyle(sheetName, rssiCell, rssiCell, fill); err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, dbCell, notAvail); err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, passCell, "NO PASS"); err != nil {
				return err
			}
			continue
		}

		if err := f.SetCellFormula(sheetName, dbCell,
			fmt.Sprintf("=ROUNDDOWN(%s-%s, -1)", rssiCell, top5Cell)); err != nil {
			return err
		}
		if err := f.SetCellFormula(sheetName, passCell,
			fmt.Sprintf(`=IF(AND(%s="true", %s>=%d), "PASS", "NO PASS")`, flashedCell, dbCell, PassMargin)); err != nil {
			return err
		}
	}

	if n > 0 {
		if err := writeFooter(f, col, n); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", col[ColPass], 12); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeFooter(f *excelize.File, col map[string]string, n int) error {
	rssi := fmt.Sprintf("%[1]s2:%[1]s%[2]d", col[keyRSSI], n+1)
	pass := fmt.Sprintf("%[1]s$2:%[1]s%[2]d", col[ColPass], n+1)

	cells := []struct {
		row     int
		label   string
		formula string
	}{
		{n + 3, "Top 5dB average:", fmt.Sprintf(`=AVERAGEIF(%s,CONCATENATE(">",MAX(%s)-%d))`, rssi, rssi, topWindow)},
		{n + 5, "Succeeded units:", fmt.Sprintf(`=COUNTIF(%s,"PASS")`, pass)},
		{n + 6, "Succeeded rate:", fmt.Sprintf("=B%d/%d", n+5, n)},
	}
	for _, c := range cells {
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", c.row), c.label); err != nil {
			return err
		}
		if err := f.SetCellFormula(sheetName, fmt.Sprintf("B%d", c.row), c.formula); err != nil {
			return err
		}
	}
	return nil
}
