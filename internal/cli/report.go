package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/chipcheck/internal/report"
)

// timeFlagLayout is how --from and --to are written, e.g. 2024-03-01_09:30.
const timeFlagLayout = "2006-01-02_15:04"

func reportCmd(g *globalFlags) *cobra.Command {
	var from, to, xlsx string

	c := &cobra.Command{
		Use:   "report",
		Short: "Show the pass/fail report and optionally write it as a spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromT, err := parseTimeFlag(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toT, err := parseTimeFlag(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if !fromT.IsZero() && !toT.IsZero() && toT.Before(fromT) {
				return fmt.Errorf("--to %s is before --from %s", to, from)
			}

			e, err := loadEnv(g, nil)
			if err != nil {
				return err
			}
			defer e.close()

			units, err := e.store.Units(fromT, toT)
			if err != nil {
				return err
			}
			rep := report.Build(units)
			printReport(cmd.OutOrStdout(), rep)

			if xlsx != "" {
				if err := report.WriteXLSX(xlsx, rep); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", xlsx)
			}
			return nil
		},
	}

	c.Flags().StringVar(&from, "from", "", "only units flashed at or after this time ("+timeFlagLayout+")")
	c.Flags().StringVar(&to, "to", "", "only units flashed at or before this time ("+timeFlagLayout+")")
	c.Flags().StringVar(&xlsx, "xlsx", "", "write the report to this .xlsx file")
	return c
}

func parseTimeFlag(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(timeFlagLayout, v, time.Local)
}

func printReport(w io.Writer, rep report.Report) {
	if len(rep.Rows) == 0 {
		fmt.Fprintln(w, "(no units recorded)")
		return
	}
	fmt.Fprintln(w, report.Table(rep))
}
