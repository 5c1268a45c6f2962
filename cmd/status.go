package cmd

import (
	"fmt"

	"github.com/sergev/swpll/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the bridge",
	Long:  "Check the status of the USB bridge and show the selected configuration profile.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bridge, err := openBridge()
		if err != nil {
			cobra.CheckErr(err)
		}
		defer bridge.Close()

		// Print status information
		bridge.PrintStatus()

		fmt.Printf("\nConfiguration script: %s\n", config.Path)
		fmt.Printf("Profile: %s, %s actuator\n", profile.Name, profile.Actuator)
		fmt.Printf("Target: %.3f MHz, %d cycles per reference edge\n", profile.TargetHz*1.0e-6, profile.PLLRatio)
		fmt.Printf("Loop: update every %d edges, Kp %g, Ki %g, range %d ppm\n",
			profile.LoopRateCount, profile.Kp, profile.Ki, profile.PPMRange)
		if profile.RefExpectedInc != 0 {
			fmt.Printf("Reference compensation: %d timer ticks per edge\n", profile.RefExpectedInc)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
