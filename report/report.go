// Package report collects control loop updates and summarizes how well the
// synthesizer tracked the reference.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sergev/swpll/pll"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Recorder is a pll.PLL observer. The phase error of each update is the
// mclk count over the update interval minus the expected count, so it
// directly gives the average frequency error of that interval.
type Recorder struct {
	expected float64       // mclk ticks per update
	interval time.Duration // time per update

	updates  int
	resyncs  int
	lockedAt int // update at which Locked was first reported, -1 if never
	ppm      []float64
	locked   []float64 // errors from the first lock onward
}

// NewRecorder creates a recorder for a loop expecting mclkPerUpdate ticks
// every interval.
func NewRecorder(mclkPerUpdate uint32, interval time.Duration) *Recorder {
	return &Recorder{
		expected: float64(mclkPerUpdate),
		interval: interval,
		lockedAt: -1,
	}
}

// Observe records one update. Assign it to pll.PLL.Observe.
func (r *Recorder) Observe(u pll.Update) {
	r.updates++
	switch {
	case u.Resync:
		r.resyncs++
		return
	case u.First:
		return
	}
	ppm := float64(u.Error) / r.expected * 1e6
	r.ppm = append(r.ppm, ppm)
	if u.Status == pll.Locked && r.lockedAt < 0 {
		r.lockedAt = r.updates
	}
	if r.lockedAt >= 0 {
		r.locked = append(r.locked, ppm)
	}
}

// Summary holds the frequency error statistics of a run.
type Summary struct {
	Updates   int
	Resyncs   int
	Locked    bool
	LockTime  time.Duration // time until the first Locked report
	Samples   int           // updates the statistics are taken over
	MeanPPM   float64
	StdDevPPM float64
	MinPPM    float64
	MaxPPM    float64
}

// Summary computes statistics over the updates since lock, or over every
// control update when the loop never locked.
func (r *Recorder) Summary() Summary {
	s := Summary{
		Updates: r.updates,
		Resyncs: r.resyncs,
		Locked:  r.lockedAt >= 0,
	}
	x := r.ppm
	if s.Locked {
		s.LockTime = time.Duration(r.lockedAt) * r.interval
		x = r.locked
	}
	s.Samples = len(x)
	if len(x) == 0 {
		return s
	}
	s.MeanPPM, s.StdDevPPM = stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		s.StdDevPPM = 0
	}
	s.MinPPM = floats.Min(x)
	s.MaxPPM = floats.Max(x)
	return s
}

// Print writes the summary in the CLI's plain text style.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Updates: %d (%d resyncs)\n", s.Updates, s.Resyncs)
	if s.Locked {
		fmt.Fprintf(w, "Lock Time: %v\n", s.LockTime)
	} else {
		fmt.Fprintf(w, "Lock Time: never locked\n")
	}
	if s.Samples == 0 {
		return
	}
	fmt.Fprintf(w, "Frequency Error: mean %+.3f ppm, std dev %.3f ppm over %d updates\n",
		s.MeanPPM, s.StdDevPPM, s.Samples)
	fmt.Fprintf(w, "Frequency Error Range: %+.3f .. %+.3f ppm\n", s.MinPPM, s.MaxPPM)
}

// RMS returns the root mean square frequency error.
func (s Summary) RMS() float64 {
	return math.Sqrt(s.MeanPPM*s.MeanPPM + s.StdDevPPM*s.StdDevPPM)
}
