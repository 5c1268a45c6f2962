// Package sim models a bridge, synthesizer and reference clock so the
// control loop can be exercised without hardware.
//
// Simulated time advances one reference period per edge. The synthesizer
// output runs at whatever frequency its registers select, and both port
// timers are sampled at every reference edge exactly as the bridge would.
package sim

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/sergev/swpll/appll"
	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/synth"
)

// Config describes the simulated clocks.
type Config struct {
	Settings appll.Settings // synthesizer dividers at power on
	Frac     uint32         // fractional register at power on
	RefHz    float64        // nominal reference edge rate
	RefPPM   float64        // reference offset from nominal
	TimerHz  float64        // reference timer clock, 0 leaves the timer at zero
	MaxEdges uint64         // NextEdge returns io.EOF after this many edges, 0 for no limit
}

// Validate checks the clock settings.
func (c Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.RefHz <= 0 {
		return fmt.Errorf("sim: reference rate must be positive, got %v", c.RefHz)
	}
	if c.TimerHz < 0 {
		return fmt.Errorf("sim: timer rate must not be negative, got %v", c.TimerHz)
	}
	return nil
}

type ticker struct {
	every time.Duration
	next  float64 // seconds
	f     func()
}

// Sim is a simulated bridge. It is safe for the control loop and the
// modulator task to use it from different goroutines.
type Sim struct {
	mu       sync.Mutex
	cfg      Config
	settings appll.Settings
	enabled  bool
	frac     uint32
	now      float64 // seconds since start
	mclk     float64 // mclk phase in cycles, modulo 1<<16
	refTicks float64 // reference timer phase in ticks, modulo 1<<16
	edges    uint64
	writes   uint64
	tickers  []*ticker
}

const timerWrap = 1 << 16

// wrap reduces a timer phase to [0, 1<<16).
func wrap(x float64) float64 {
	x = math.Mod(x, timerWrap)
	if x < 0 {
		x += timerWrap
	}
	return x
}

// New creates a simulator with the synthesizer running at its power on setting.
func New(cfg Config) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sim{
		cfg:      cfg,
		settings: cfg.Settings,
		enabled:  true,
		frac:     cfg.Frac,
	}, nil
}

// Every calls f each time d of simulated time has passed. Calls happen
// inside NextEdge, before the edge they precede is sampled.
func (s *Sim) Every(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers = append(s.tickers, &ticker{every: d, next: s.now + d.Seconds(), f: f})
}

// OutputHz returns the current synthesizer output frequency.
func (s *Sim) OutputHz() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputHz()
}

func (s *Sim) outputHz() float64 {
	if !s.enabled {
		return 0
	}
	return s.settings.OutputHz(s.frac)
}

// RefHz returns the actual reference edge rate, offset included.
func (s *Sim) RefHz() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refHz()
}

func (s *Sim) refHz() float64 {
	return s.cfg.RefHz * (1 + s.cfg.RefPPM/1e6)
}

// SetRefPPM changes the reference offset, e.g. to model a source switch.
func (s *Sim) SetRefPPM(ppm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.RefPPM = ppm
}

// InjectPhaseJump shifts the mclk timer by the given number of cycles, as
// when the reference stops and restarts with a different phase.
func (s *Sim) InjectPhaseJump(cycles float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mclk = wrap(s.mclk + cycles)
}

// Elapsed returns the simulated time.
func (s *Sim) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.now * float64(time.Second))
}

// Counters returns the number of edges generated and registers written.
func (s *Sim) Counters() (edges, writes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges, s.writes
}

// NextEdge advances simulated time by one reference period and samples
// both timers.
func (s *Sim) NextEdge(ctx context.Context) (pll.Sample, error) {
	if err := ctx.Err(); err != nil {
		return pll.Sample{}, err
	}
	s.mu.Lock()
	if s.cfg.MaxEdges != 0 && s.edges >= s.cfg.MaxEdges {
		s.mu.Unlock()
		return pll.Sample{}, io.EOF
	}

	end := s.now + 1/s.refHz()
	for {
		// Advance to the earliest ticker due before the edge
		var due *ticker
		for _, t := range s.tickers {
			if t.next <= end && (due == nil || t.next < due.next) {
				due = t
			}
		}
		if due == nil {
			break
		}
		s.advance(due.next)
		due.next += due.every.Seconds()

		// f writes registers through this simulator
		s.mu.Unlock()
		due.f()
		s.mu.Lock()
	}
	s.advance(end)
	s.edges++
	sample := pll.Sample{
		Mclk: uint16(s.mclk),
		Ref:  uint16(s.refTicks),
	}
	s.mu.Unlock()
	return sample, nil
}

// advance moves simulated time forward at the current output frequency.
func (s *Sim) advance(to float64) {
	dt := to - s.now
	s.mclk = wrap(s.mclk + s.outputHz()*dt)
	s.refTicks = wrap(s.refTicks + s.cfg.TimerHz*dt)
	s.now = to
}

func (s *Sim) write(reg synth.Register, val uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	switch reg {
	case synth.RegPLLControl:
		d := appll.DecodeCtl(s.settings.InputHz, val, s.settings.DivReg())
		s.settings.F, s.settings.R, s.settings.OD = d.F, d.R, d.OD
		s.enabled = val&appll.CtlEnable != 0
	case synth.RegFracDivider:
		s.frac = val
	case synth.RegClockDivider:
		s.settings.ACD = appll.DecodeCtl(s.settings.InputHz, 0, val).ACD
	default:
		return synth.ErrBadRegister
	}
	return nil
}

// WriteRegister implements synth.RegisterWriter.
func (s *Sim) WriteRegister(reg synth.Register, val uint32) error {
	return s.write(reg, val)
}

// WriteRegisterNoAck implements synth.RegisterWriter.
func (s *Sim) WriteRegisterNoAck(reg synth.Register, val uint32) {
	if err := s.write(reg, val); err != nil {
		glog.Warningf("Failed to write %v register: %v", reg, err)
	}
}

// WriteFractional implements synth.Synthesizer.
func (s *Sim) WriteFractional(val uint32) {
	s.WriteRegisterNoAck(synth.RegFracDivider, val)
}

func (s *Sim) StartCapture() error { return nil }
func (s *Sim) StopCapture() error  { return nil }
func (s *Sim) Close() error        { return nil }

// PrintStatus prints the simulated clocks to stdout
func (s *Sim) PrintStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("Simulated Bridge\n")
	fmt.Printf("Reference: %.3f Hz (%+.2f ppm)\n", s.refHz(), s.cfg.RefPPM)
	fmt.Printf("Synthesizer Output: %.3f Hz\n", s.outputHz())
	fmt.Printf("Elapsed: %v, %d edges, %d register writes\n",
		time.Duration(s.now*float64(time.Second)), s.edges, s.writes)
}
