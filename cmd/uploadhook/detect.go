package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	detectWait    bool
	detectProbe   bool
	detectTimeout time.Duration
)

var detectCmd = &cobra.Command{
	Use:   "detect-port",
	Short: "Print the upload port of the connected board",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fc, err := boardConfig(true)
		if err != nil {
			return err
		}
		if detectTimeout > 0 {
			fc.PortWait = detectTimeout
		}
		// detection ignores the configured port
		fc.Port = ""
		b := newBoard(fc)

		port, err := b.ResolvePort(cmd.Context(), detectWait)
		if err != nil {
			return err
		}
		if detectProbe {
			if err := b.Probe(); err != nil {
				return err
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), port)
		return nil
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports, marking the ones detect-port would pick",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fc, err := boardConfig(true)
		if err != nil {
			return err
		}
		d := newBoard(fc).Detector()

		ports, err := d.Lister.ListPorts()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tPORT\tUSB\tVID:PID\tSERIAL")
		for _, p := range ports {
			mark := ""
			if d.Matches(p) {
				mark = "*"
			}
			ids := ""
			if p.IsUSB {
				ids = p.VID + ":" + p.PID
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n", mark, p.Name, p.IsUSB, ids, p.SerialNumber)
		}
		return w.Flush()
	},
}

func init() {
	detectCmd.Flags().BoolVarP(&detectWait, "wait", "w", false, "wait for the board to be connected")
	detectCmd.Flags().BoolVar(&detectProbe, "probe", false, "open the port to check nothing else holds it")
	detectCmd.Flags().DurationVar(&detectTimeout, "timeout", 0, "how long --wait waits (default 30s)")
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(portsCmd)
}
