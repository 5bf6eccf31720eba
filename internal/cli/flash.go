package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/protocol"
	"github.com/buckleypaul/chipcheck/internal/station"
)

func flashCmd(g *globalFlags) *cobra.Command {
	var f unitFlags

	c := &cobra.Command{
		Use:   "flash",
		Short: "Program firmware and EEPROM without testing or recording",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(g, os.Stderr)
			if err != nil {
				return err
			}
			defer e.close()

			role, err := chip.ParseRole(f.role)
			if err != nil {
				return err
			}
			kind, err := chip.ParseKind(f.kind)
			if err != nil {
				return err
			}
			var id *protocol.NodeID
			if cmd.Flags().Changed("id") {
				v := protocol.NodeID(f.id)
				id = &v
			}

			out := cmd.OutOrStdout()
			flasher := station.NewFlasher(e.cfg, func(line string) { fmt.Fprintln(out, line) }, e.log)
			res, err := flasher.Flash(cmd.Context(), kind, role, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "flashed %s %s in %s (%d attempt(s))\n", kind, role, res.Duration.Round(time.Millisecond), res.Attempts)
			return nil
		},
	}

	c.Flags().StringVar(&f.role, "role", chip.Master.String(), "firmware role: "+roleNames())
	c.Flags().StringVar(&f.kind, "kind", chip.Green.String(), "board kind: "+kindNames())
	c.Flags().Uint32Var(&f.id, "id", 0, "node id written to the EEPROM (required for relays)")
	return c
}

func testCmd(g *globalFlags) *cobra.Command {
	var f unitFlags

	c := &cobra.Command{
		Use:   "test",
		Short: "Measure an already flashed unit and print the outcome as JSON",
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

			session, err := chip.New(u.Port, u.ID, u.Role, u.Kind,
				chip.WithBaudRate(e.cfg.SerialBaudRate),
				chip.WithSamples(e.cfg.Samples),
				chip.WithLogger(e.log),
			)
			if err != nil {
				return err
			}
			defer session.Close()

			outcome, err := session.RunTest(u.Target, true, u.Companion)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		},
	}

	f.bind(c, false)
	return c
}
