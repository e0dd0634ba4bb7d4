package cmd

import (
	"fmt"

	"github.com/roffe/navcomm"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "list serial ports and CAN interfaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := navcomm.FindSerialPorts()
		if err != nil {
			return err
		}
		fmt.Println("Serial ports:")
		if len(ports) == 0 {
			fmt.Println("  none found")
		}
		for _, p := range ports {
			if p.IsUSB {
				fmt.Printf("  %s %s [%s:%s] %s\n", yellow(p.Name), p.Description, p.VID, p.PID, p.SerialNumber)
			} else {
				fmt.Printf("  %s\n", yellow(p.Name))
			}
		}
		fmt.Println("CAN interfaces:")
		ifaces := navcomm.FindCANInterfaces()
		if len(ifaces) == 0 {
			fmt.Println("  none found")
		}
		for _, i := range ifaces {
			fmt.Printf("  %s\n", yellow(i))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
