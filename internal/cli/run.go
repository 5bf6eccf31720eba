package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/station"
)

func runCmd(g *globalFlags) *cobra.Command {
	var f unitFlags
	var verbose bool

	c := &cobra.Command{
		Use:   "run",
		Short: "Flash, test and record one unit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(g, os.Stderr)
			if err != nil {
				return err
			}
			defer e.close()

			u, err := f.unit(cmd, e.cfg)
			if err != nil {
				return err
			}

			runner, closePub := station.NewRunner(e.cfg, e.store, programmerOutput(cmd, verbose), e.log)
			defer closePub()

			res, err := runner.Run(cmd.Context(), u)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res, e.store)
			return nil
		},
	}

	f.bind(c, true)
	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "print programmer output")
	return c
}

func batchCmd(g *globalFlags) *cobra.Command {
	var verbose bool

	c := &cobra.Command{
		Use:   "batch <plan.yaml>",
		Short: "Run every unit of a plan, one after another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := config.LoadPlan(args[0])
			if err != nil {
				return err
			}

			e, err := loadEnv(g, os.Stderr)
			if err != nil {
				return err
			}
			defer e.close()

			units := make([]station.Unit, 0, len(plan.Units))
			for _, pu := range plan.Units {
				u, err := station.UnitFromPlan(pu, e.cfg)
				if err != nil {
					return err
				}
				units = append(units, u)
			}

			runner, closePub := station.NewRunner(e.cfg, e.store, programmerOutput(cmd, verbose), e.log)
			defer closePub()

			out := cmd.OutOrStdout()
			_, err = runner.RunAll(cmd.Context(), units, func(res station.Result, err error) {
				if err != nil {
					fmt.Fprintf(out, "%-10s error: %v\n", res.Unit.Port, err)
					return
				}
				printResult(out, res, e.store)
			})
			return err
		},
	}

	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "print programmer output")
	return c
}

func programmerOutput(cmd *cobra.Command, verbose bool) func(string) {
	if !verbose {
		return nil
	}
	w := cmd.ErrOrStderr()
	return func(line string) { fmt.Fprintln(w, line) }
}
