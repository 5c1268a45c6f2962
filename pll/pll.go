package pll

import (
	"context"
	"fmt"

	"github.com/golang/glog"
)

// Params are the tuning parameters of the loop.
type Params struct {
	Kp, Ki         int32  // 15Q16 gains, see fixed.Q16
	LoopRateCount  int    // reference edges per control update
	PLLRatio       int    // mclk cycles per reference edge
	RefExpectedInc uint32 // reference timer ticks per edge, 0 disables compensation
	PPMRange       int    // controllable range; twice this triggers a resync
	LockCount      int    // in-range updates before reporting Locked
}

// Update describes one control update, for observers.
type Update struct {
	Status  LockStatus
	Error   int16 // phase error in mclk ticks
	Control int32 // controller output
	First   bool  // state was seeded, no control action taken
	Resync  bool  // phase error too large, next update starts over
}

// PLL is the software phase locked loop: phase detector, PI controller,
// lock detector and an actuator. It is driven from a single goroutine.
type PLL struct {
	PFD  PFD
	PI   PI
	Lock Lock

	// Observe, when set, is called after every control update.
	Observe func(Update)

	act           Actuator
	loopRateCount int
	loopCounter   int
	firstLoop     bool
	control       int32
	updates       uint64
	resyncs       uint64
}

// New creates a loop in its first-loop state. It fails when the settings
// exceed the phase detector's arithmetic range.
func New(p Params, act Actuator) (*PLL, error) {
	pfd, err := NewPFD(p.LoopRateCount, p.PLLRatio, p.RefExpectedInc, p.PPMRange)
	if err != nil {
		return nil, fmt.Errorf("failed to set up phase detector: %w", err)
	}
	lockCount := p.LockCount
	if lockCount <= 0 {
		lockCount = DefaultLockCount
	}
	return &PLL{
		PFD:           pfd,
		PI:            NewPI(p.Kp, p.Ki, act.Span()),
		Lock:          NewLock(lockCount),
		act:           act,
		loopRateCount: p.LoopRateCount,
		firstLoop:     true,
	}, nil
}

// Status returns the current lock status.
func (s *PLL) Status() LockStatus {
	return s.Lock.Status
}

// FirstLoop reports whether the next control update will reseed the loop.
func (s *PLL) FirstLoop() bool {
	return s.firstLoop
}

// Control returns the last controller output.
func (s *PLL) Control() int32 {
	return s.control
}

// Counters returns the number of control updates and resyncs so far.
func (s *PLL) Counters() (updates, resyncs uint64) {
	return s.updates, s.resyncs
}

// Reset returns the loop to its first-loop state. The actuator keeps its
// last setting until the loop acts again.
func (s *PLL) Reset() {
	s.loopCounter = 0
	s.firstLoop = true
}

// DoControl is called on every reference edge with the captured timer
// values. Every LoopRateCount edges it runs one control update.
func (s *PLL) DoControl(mclk, ref uint16) LockStatus {
	s.loopCounter++
	if s.loopCounter < s.loopRateCount {
		return s.Lock.Status
	}
	s.loopCounter = 0
	s.updates++

	if s.firstLoop {
		// Start from a clean state. The synthesizer keeps its current
		// setting, which at power on is the nominal one.
		s.PFD.MclkLast = mclk
		s.PFD.RefLast = ref
		s.PI.Reset()
		s.Lock.Reset()
		s.firstLoop = false
		s.notify(Update{Status: s.Lock.Status, First: true})
		return s.Lock.Status
	}

	diff, resync := s.PFD.Compute(mclk, ref)
	s.PFD.MclkLast = mclk
	if resync {
		// Something went badly wrong, e.g. the reference stopped and
		// restarted. Reseed on the next update and keep trying.
		s.firstLoop = true
		s.resyncs++
		s.notify(Update{Status: s.Lock.Status, Error: diff, Resync: true})
		return s.Lock.Status
	}

	s.control = s.PI.Update(diff)
	status := s.Lock.Observe(s.act.Apply(s.control))
	s.notify(Update{Status: status, Error: diff, Control: s.control})
	return status
}

func (s *PLL) notify(u Update) {
	if s.Observe != nil {
		s.Observe(u)
	}
}

// Run is the control task. It waits for each reference edge and feeds it to
// the loop until the source fails or ctx is cancelled.
func (s *PLL) Run(ctx context.Context, src EdgeSource) error {
	glog.Infof("Control loop started: %d edges per update, max phase error %d",
		s.loopRateCount, s.PFD.MaxDiff)

	status := s.Lock.Status
	resyncs := s.resyncs
	for {
		sample, err := src.NextEdge(ctx)
		if err != nil {
			return err
		}
		st := s.DoControl(sample.Mclk, sample.Ref)
		if s.resyncs != resyncs {
			resyncs = s.resyncs
			glog.Warningf("Phase error %d exceeds %d, resynchronizing", s.PFD.LastDiff, s.PFD.MaxDiff)
		}
		if st != status {
			glog.Infof("Lock status: %v", st)
			status = st
		}
	}
}
