package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/chipcheck/internal/serial"
)

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports, USB adapters first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := serial.ListPorts()
			if err != nil {
				return err
			}
			printPorts(cmd.OutOrStdout(), ports)
			return nil
		},
	}
}

func printPorts(w io.Writer, ports []serial.PortInfo) {
	if len(ports) == 0 {
		fmt.Fprintln(w, "(no serial ports found)")
		return
	}
	for _, p := range ports {
		if !p.IsUSB {
			fmt.Fprintf(w, "- %s\n", p.Name)
			continue
		}
		fmt.Fprintf(w, "- %s  %s:%s", p.Name, p.VID, p.PID)
		if p.Product != "" {
			fmt.Fprintf(w, "  %s", p.Product)
		}
		if p.SerialNumber != "" {
			fmt.Fprintf(w, "  sn=%s", p.SerialNumber)
		}
		fmt.Fprintln(w)
	}
}
