package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sergev/swpll/adapter"
	"github.com/sergev/swpll/appll"
	"github.com/sergev/swpll/synth"
	"github.com/sergev/swpll/trace"
	"github.com/spf13/cobra"
)

var captureEdges uint64

var captureCmd = &cobra.Command{
	Use:   "capture FILE",
	Short: "Record reference edge samples to a trace file",
	Long: "Program the synthesizer at its nominal frequency and record the timer values\n" +
		"captured at each reference edge, without closing the loop. A FILE name\n" +
		"ending in .gz is compressed.",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := openBridge()
		if err != nil {
			return err
		}
		defer bridge.Close()

		s, nominal, err := solve(profile)
		if err != nil {
			return err
		}
		if err := synth.Init(bridge, s.CtlReg(), s.DivReg(), nominal); err != nil {
			return fmt.Errorf("failed to initialize synthesizer: %w", err)
		}
		fmt.Printf("Synthesizer at %.3f Hz\n", s.OutputHz(appll.FracEnable|uint32(nominal)))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		n, err := captureTrace(ctx, bridge, args[0], captureEdges)
		if err != nil {
			return err
		}
		fmt.Printf("Captured %d edges to %s\n", n, args[0])
		return nil
	},
}

// captureTrace records up to edges samples, or until ctx is cancelled, to
// a trace file. The file is closed with its sample count on every path.
func captureTrace(ctx context.Context, bridge adapter.Bridge, filename string, edges uint64) (n uint32, err error) {
	w, err := trace.Create(filename, traceHeader())
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close trace: %w", cerr)
		}
		n = w.Count()
	}()

	if err := bridge.StartCapture(); err != nil {
		return 0, fmt.Errorf("failed to start capture: %w", err)
	}
	defer func() {
		if serr := bridge.StopCapture(); serr != nil {
			fmt.Printf("Warning: failed to stop capture: %v\n", serr)
		}
	}()

	for edges == 0 || uint64(w.Count()) < edges {
		sample, err := bridge.NextEdge(ctx)
		if ctx.Err() != nil || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("capture failed after %d edges: %w", w.Count(), err)
		}
		if err := w.Write(sample); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

func init() {
	captureCmd.Flags().Uint64VarP(&captureEdges, "edges", "n", 48000, "number of edges to record (0 records until interrupted)")
	rootCmd.AddCommand(captureCmd)
}
