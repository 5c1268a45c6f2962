package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
	"github.com/sergev/swpll/adapter"
	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/sim"
	"github.com/sergev/swpll/trace"
	"github.com/spf13/cobra"
)

var (
	runUpdates uint64
	runRecord  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Lock the synthesizer to the reference clock",
	Long: "Program the synthesizer at its nominal frequency, start the edge capture\n" +
		"and run the control loop until interrupted.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := openBridge()
		if err != nil {
			return err
		}
		defer bridge.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Running profile %q with %s actuator, press Ctrl-C to stop\n", profile.Name, profile.Actuator)
		cl, err := runControl(ctx, bridge, runUpdates, runRecord)
		if cl != nil {
			fmt.Println()
			cl.Recorder.Summary().Print(os.Stdout)
		}
		return err
	},
}

// runControl runs the loop over the bridge until ctx is cancelled, the
// source ends or the given number of updates is done. The modulator task
// and the trace recording are finished before it returns, also on error.
func runControl(ctx context.Context, bridge adapter.Bridge, updates uint64, record string) (*controlLoop, error) {
	cl, err := newControlLoop(profile, bridge)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var src pll.EdgeSource = bridge
	if record != "" {
		w, err := trace.Create(record, traceHeader())
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := w.Close(); err != nil {
				glog.Warningf("Failed to close trace %s: %v", record, err)
			}
		}()
		src = trace.Tee(bridge, w)
	}

	var wg sync.WaitGroup
	if cl.Task != nil {
		if s, ok := bridge.(*sim.Sim); ok {
			s.Every(cl.Task.Interval, func() { cl.Task.Step() })
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cl.Task.Run(ctx)
			}()
		}
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	var n uint64
	status := cl.PLL.Status()
	observe := cl.PLL.Observe
	cl.PLL.Observe = func(u pll.Update) {
		observe(u)
		if u.Status != status {
			fmt.Printf("%v (error %d, control %d)\n", u.Status, u.Error, u.Control)
			status = u.Status
		}
		n++
		if updates > 0 && n >= updates {
			cancel()
		}
	}

	if err := bridge.StartCapture(); err != nil {
		return cl, fmt.Errorf("failed to start capture: %w", err)
	}
	err = cl.PLL.Run(ctx, src)
	if serr := bridge.StopCapture(); serr != nil {
		fmt.Printf("Warning: failed to stop capture: %v\n", serr)
	}
	if err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		return cl, fmt.Errorf("control loop failed: %w", err)
	}
	return cl, nil
}

// traceHeader describes captures made with the current profile.
func traceHeader() trace.Header {
	refHz := profile.RefHz()
	return trace.Header{
		RefHz:   uint32(refHz + 0.5),
		MclkHz:  uint32(profile.TargetHz + 0.5),
		TimerHz: uint32(float64(profile.RefExpectedInc)*refHz + 0.5),
	}
}

func init() {
	runCmd.Flags().Uint64VarP(&runUpdates, "updates", "n", 0, "stop after this many control updates (0 runs until interrupted)")
	runCmd.Flags().StringVar(&runRecord, "record", "", "record the edge samples to a trace file")
	rootCmd.AddCommand(runCmd)
}
