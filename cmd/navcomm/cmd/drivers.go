package cmd

import (
	"fmt"

	"github.com/roffe/navcomm"
	"github.com/spf13/cobra"
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "list supported transport/protocol combinations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, d := range navcomm.SupportedCombinations() {
			def := ""
			if d.Default {
				def = green(" (default)")
			}
			fmt.Printf("%-8s %-9s %s%s\n", d.Transport, d.Protocol, yellow(d.Name), def)
			if d.Description != "" {
				fmt.Printf("         %s\n", d.Description)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(driversCmd)
}
