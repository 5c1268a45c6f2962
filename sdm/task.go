package sdm

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/sergev/swpll/synth"
)

// DefaultInterval is the modulator update period.
const DefaultInterval = time.Millisecond

// Task runs the modulator on its own fixed tick, independent of the
// reference edge rate. It holds the last control word received and never
// waits for a new one.
type Task struct {
	Modulator *Modulator
	Mailbox   *Mailbox
	Synth     synth.Synthesizer
	Interval  time.Duration

	input atomic.Int32
	ticks atomic.Uint64
}

// NewTask creates a modulator task starting from the given input word.
func NewTask(m *Modulator, mb *Mailbox, s synth.Synthesizer, interval time.Duration, initial int32) *Task {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Task{
		Modulator: m,
		Mailbox:   mb,
		Synth:     s,
		Interval:  interval,
	}
	t.input.Store(initial)
	return t
}

// Input returns the control word currently being modulated.
func (t *Task) Input() int32 {
	return t.input.Load()
}

// Ticks returns the number of register values written so far.
func (t *Task) Ticks() uint64 {
	return t.ticks.Load()
}

// next picks up a new control word if one was published, otherwise keeps
// the previous one, and computes the next register value.
func (t *Task) next() uint32 {
	if v, ok := t.Mailbox.TryReceive(); ok {
		t.input.Store(v)
	}
	return OutToFracReg(t.Modulator.Tick(t.input.Load()), t.Modulator.Levels)
}

// Step performs one modulator tick and writes the result immediately.
func (t *Task) Step() uint32 {
	reg := t.next()
	t.Synth.WriteFractional(reg)
	t.ticks.Add(1)
	return reg
}

// Run ticks until ctx is cancelled. Each register value is computed ahead
// of its tick and written when the tick fires, so write timing does not
// depend on how long the modulator step takes.
func (t *Task) Run(ctx context.Context) error {
	glog.Infof("Sigma-delta task started: order %d, %d levels, interval %v",
		t.Modulator.Order, t.Modulator.Levels, t.Interval)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	reg := t.next()
	for {
		select {
		case <-ctx.Done():
			glog.Infof("Sigma-delta task stopped after %d ticks", t.ticks.Load())
			return ctx.Err()
		case <-ticker.C:
			t.Synth.WriteFractional(reg)
			t.ticks.Add(1)
			reg = t.next()
		}
	}
}
