package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/synth"
	"github.com/spf13/cobra"
)

var (
	simUpdates uint64
	simRefPPM  float64
	simJump    float64
	simJumpAt  uint64
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Simulate the closed loop",
	Long: "Run the control loop against a simulated synthesizer and reference clock,\n" +
		"then print lock time and frequency error statistics.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := newSim(simUpdates * uint64(profile.LoopRateCount))
		if err != nil {
			cobra.CheckErr(err)
		}
		if cmd.Flags().Changed("ref-ppm") {
			s.SetRefPPM(simRefPPM)
		}

		// Simulated time does not need the lock delay
		synth.LockDelay = 0
		cl, err := newControlLoop(profile, s)
		if err != nil {
			cobra.CheckErr(err)
		}
		if cl.Task != nil {
			s.Every(cl.Task.Interval, func() { cl.Task.Step() })
		}

		var updates uint64
		observe := cl.PLL.Observe
		cl.PLL.Observe = func(u pll.Update) {
			observe(u)
			updates++
			if simJump != 0 && updates == simJumpAt {
				s.InjectPhaseJump(simJump)
			}
		}

		err = cl.PLL.Run(context.Background(), s)
		if !errors.Is(err, io.EOF) {
			cobra.CheckErr(fmt.Errorf("simulation failed: %w", err))
		}

		s.PrintStatus()
		fmt.Printf("Final Status: %v, control %d\n\n", cl.PLL.Status(), cl.PLL.Control())
		sum := cl.Recorder.Summary()
		sum.Print(os.Stdout)
		fmt.Printf("Output Error: %+.3f ppm\n", (s.OutputHz()/(s.RefHz()*float64(profile.PLLRatio))-1)*1e6)
	},
}

func init() {
	simCmd.Flags().Uint64VarP(&simUpdates, "updates", "n", 1000, "number of control updates to simulate")
	simCmd.Flags().Float64Var(&simRefPPM, "ref-ppm", 0, "reference clock offset in ppm (default from profile)")
	simCmd.Flags().Float64Var(&simJump, "jump", 0, "inject a phase jump of this many mclk cycles")
	simCmd.Flags().Uint64Var(&simJumpAt, "jump-at", 100, "control update at which the phase jump happens")
	rootCmd.AddCommand(simCmd)
}
