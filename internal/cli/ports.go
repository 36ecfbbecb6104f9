package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	isp "github.com/tocurd/xfr-isp"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := isp.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s", p.Name)
				if p.IsUSB {
					fmt.Fprintf(cmd.OutOrStdout(), "  USB %s:%s %s %s", p.VID, p.PID, p.SerialNumber, p.Product)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}
