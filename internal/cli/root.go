// Package cli is the chipcheck command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	root  string
	debug bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:          "chipcheck",
		Short:        "Flash radio units and check their signal strength",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStation(g)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.root, "root", "r", "", "directory holding .chipcheck/ (defaults to the working directory)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "log every line read and every sample")

	cmd.AddCommand(
		stationCmd(g),
		runCmd(g),
		batchCmd(g),
		flashCmd(g),
		testCmd(g),
		portsCmd(),
		reportCmd(g),
	)
	return cmd
}
