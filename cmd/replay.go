package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/sergev/swpll/synth"
	"github.com/sergev/swpll/trace"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Run the control loop over a recorded trace",
	Long: "Feed the edge samples of a trace file through the control loop of the profile\n" +
		"and report what it would have done. Register writes go to a simulated synthesizer.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r, err := trace.Open(args[0])
		if err != nil {
			cobra.CheckErr(err)
		}
		defer r.Close()

		h := r.Header()
		if ratio := h.PLLRatio(); ratio != 0 && ratio != profile.PLLRatio {
			glog.Warningf("Trace has %d mclk cycles per edge, profile %q expects %d", ratio, profile.Name, profile.PLLRatio)
		}

		sink, err := newSim(0)
		if err != nil {
			cobra.CheckErr(err)
		}
		synth.LockDelay = 0
		cl, err := newControlLoop(profile, sink)
		if err != nil {
			cobra.CheckErr(err)
		}

		err = cl.PLL.Run(context.Background(), r)
		if !errors.Is(err, io.EOF) {
			cobra.CheckErr(fmt.Errorf("replay failed: %w", err))
		}

		_, writes := sink.Counters()
		fmt.Printf("Trace: %d Hz reference, %d Hz mclk\n", h.RefHz, h.MclkHz)
		fmt.Printf("Final Status: %v, control %d, %d register writes\n\n", cl.PLL.Status(), cl.PLL.Control(), writes)
		cl.Recorder.Summary().Print(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
