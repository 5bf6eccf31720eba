package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/report"
	"github.com/buckleypaul/chipcheck/internal/station"
	"github.com/buckleypaul/chipcheck/internal/store"
)

// unitFlags describe one unit on the command line.
type unitFlags struct {
	port      string
	role      string
	kind      string
	id        uint32
	target    uint32
	companion string
	chip      string
	onlyTest  bool
}

func (f *unitFlags) bind(cmd *cobra.Command, withOnlyTest bool) {
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "unit serial port (defaults to the configured unit port)")
	cmd.Flags().StringVar(&f.role, "role", chip.Master.String(), "firmware role: "+roleNames())
	cmd.Flags().StringVar(&f.kind, "kind", chip.Green.String(), "board kind: "+kindNames())
	cmd.Flags().Uint32Var(&f.id, "id", 0, "node id written to the unit (required for relays)")
	cmd.Flags().Uint32Var(&f.target, "target", 0, "node id a master pings")
	cmd.Flags().StringVar(&f.companion, "companion", "", "master port used to measure a relay (defaults to the configured companion)")
	cmd.Flags().StringVar(&f.chip, "chip", "", "number printed on the chip")
	if withOnlyTest {
		cmd.Flags().BoolVar(&f.onlyTest, "only-test", false, "skip flashing")
	}
}

// unit validates the flags. Unset --id and --target stay nil.
func (f *unitFlags) unit(cmd *cobra.Command, cfg config.Config) (station.Unit, error) {
	pu := config.PlanUnit{
		Port:       f.port,
		Role:       f.role,
		Kind:       f.kind,
		Companion:  f.companion,
		ChipNumber: f.chip,
		OnlyTest:   f.onlyTest,
	}
	if pu.Port == "" {
		pu.Port = cfg.UnitPort
	}
	if cmd.Flags().Changed("id") {
		id := f.id
		pu.ID = &id
	}
	if cmd.Flags().Changed("target") {
		t := f.target
		pu.Target = &t
	}
	if err := pu.Validate(); err != nil {
		return station.Unit{}, err
	}
	return station.UnitFromPlan(pu, cfg)
}

func roleNames() string {
	var names []string
	for _, r := range chip.Roles() {
		names = append(names, r.String())
	}
	return strings.Join(names, "|")
}

func kindNames() string {
	var names []string
	for _, k := range chip.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, "|")
}

// printResult writes one line per unit, with the verdict against every
// recorded unit when st is set.
func printResult(w io.Writer, res station.Result, st *store.Store) {
	label := res.Unit.ChipNumber
	if label == "" {
		label = res.Unit.Port
	}
	fmt.Fprintf(w, "%-10s %-10s %-15s flashed=%-5t rssi=%s",
		label, res.Unit.Role, res.Unit.Kind, res.Outcome.Flashed(), rssiText(res.Outcome))

	if st != nil {
		if units, err := st.Units(time.Time{}, time.Time{}); err == nil {
			if row, ok := report.Build(units).Find(res.FlashID); ok {
				verdict := "NO PASS"
				if row.Pass {
					verdict = "PASS"
				}
				fmt.Fprintf(w, "  %s", verdict)
				if row.HasRSSI {
					fmt.Fprintf(w, " (%d dB vs best)", row.DBVsBest)
				}
			}
		}
	}
	fmt.Fprintln(w)
}

func rssiText(out chip.Outcome) string {
	if v, ok := out.RSSI(); ok {
		return fmt.Sprint(v)
	}
	if out.Flashed() {
		return chip.RSSIUnavailable
	}
	return "-"
}
