// Package report turns stored units into a pass/fail sheet.
package report

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/buckleypaul/chipcheck/internal/store"
)

const (
	ColChipNumber  = "chip_number"
	ColSoftware    = "software"
	ColChipType    = "chip_type"
	ColFlashedID   = "flashed_id"
	ColFlashedTime = "flashed_time"
	ColDBVsBest    = "db_vs_best"
	ColPass        = "PASS"

	keyFlashed = "flashed"
	keyRSSI    = "rssi"
	notAvail   = "n/a"

	// PassMargin is how far below the top-5dB average a unit may be.
	PassMargin = -10
	topWindow  = 5

	TimeLayout = "2006-01-02 15:04"
)

// StaticHeaders are the columns every report starts with.
var StaticHeaders = []string{ColChipNumber, ColSoftware, ColChipType, ColFlashedID, ColFlashedTime}

// Row is one unit with its derived columns.
type Row struct {
	FlashID  int64
	Values   map[string]string
	RSSI     int
	HasRSSI  bool
	DBVsBest int
	Pass     bool
}

// Flashed reports the unit's flashed test value.
func (r Row) Flashed() bool {
	return r.Values[keyFlashed] == "true"
}

// Report is the computed sheet.
type Report struct {
	// Headers are the static headers followed by every test key seen.
	Headers     []string
	Rows        []Row
	Top5Average float64
	HasTop5     bool
	Passed      int
}

// PassRate is Passed over the number of rows.
func (r Report) PassRate() float64 {
	if len(r.Rows) == 0 {
		return 0
	}
	return float64(r.Passed) / float64(len(r.Rows))
}

// Find returns the row for a flash.
func (r Report) Find(flashID int64) (Row, bool) {
	for _, row := range r.Rows {
		if row.FlashID == flashID {
			return row, true
		}
	}
	return Row{}, false
}

// Build computes a report. RSSI values within topWindow dB of the best form
// the reference average; each unit passes when it was flashed and its RSSI,
// rounded toward zero to tens of dB below that reference, is within
// PassMargin.
func Build(units []store.UnitRow) Report {
	keySet := map[string]bool{keyFlashed: true, keyRSSI: true}
	for _, u := range units {
		for k := range u.Tests {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rep := Report{Headers: append(append([]string{}, StaticHeaders...), keys...)}

	for _, u := range units {
		vals := map[string]string{
			ColChipNumber:  u.ChipNumber,
			ColSoftware:    u.Software,
			ColChipType:    u.Kind,
			ColFlashedID:   u.FlashedID,
			ColFlashedTime: formatTime(u.FlashedTime),
		}
		for k, v := range u.Tests {
			vals[k] = v
		}
		if _, ok := vals[keyFlashed]; !ok {
			vals[keyFlashed] = "false"
		}
		row := Row{FlashID: u.FlashID, Values: vals}
		if v, err := strconv.Atoi(vals[keyRSSI]); err == nil {
			row.RSSI, row.HasRSSI = v, true
		} else {
			vals[keyRSSI] = notAvail
		}
		rep.Rows = append(rep.Rows, row)
	}

	rep.Top5Average, rep.HasTop5 = top5Average(rep.Rows)
	for i := range rep.Rows {
		row := &rep.Rows[i]
		if !row.HasRSSI || !rep.HasTop5 {
			continue
		}
		row.DBVsBest = roundDownTens(float64(row.RSSI) - rep.Top5Average)
		row.Pass = row.Flashed() && row.DBVsBest >= PassMargin
		if row.Pass {
			rep.Passed++
		}
	}
	return rep
}

func top5Average(rows []Row) (float64, bool) {
	best := math.MinInt
	for _, r := range rows {
		if r.HasRSSI && r.RSSI > best {
			best = r.RSSI
		}
	}
	if best == math.MinInt {
		return 0, false
	}
	var sum, n int
	for _, r := range rows {
		if r.HasRSSI && r.RSSI > best-topWindow {
			sum += r.RSSI
			n++
		}
	}
	return float64(sum) / float64(n), true
}

// roundDownTens matches the spreadsheet ROUNDDOWN(x, -1).
func roundDownTens(x float64) int {
	return int(math.Trunc(x/10) * 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeLayout)
}
