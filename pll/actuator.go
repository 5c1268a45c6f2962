package pll

import (
	"fmt"

	"github.com/sergev/swpll/appll"
	"github.com/sergev/swpll/sdm"
	"github.com/sergev/swpll/synth"
)

// Actuator turns the control signal into a change of synthesizer frequency.
type Actuator interface {
	// Apply acts on one control signal and reports whether it was within range.
	Apply(control int32) Saturation

	// Span is the width of the actuator range in control signal units.
	Span() int32
}

// LUTActuator selects a fractional divider setting from a lookup table and
// writes it straight to the synthesizer.
type LUTActuator struct {
	LUT   LUT
	Synth synth.Synthesizer
}

// NewLUTActuator wraps a lookup table and the synthesizer it drives.
func NewLUTActuator(lut LUT, s synth.Synthesizer) *LUTActuator {
	return &LUTActuator{LUT: lut, Synth: s}
}

func (a *LUTActuator) Apply(control int32) Saturation {
	value, sat := a.LUT.Select(control)
	a.Synth.WriteFractional(appll.FracEnable | uint32(uint16(value)))
	return sat
}

func (a *LUTActuator) Span() int32 {
	return int32(len(a.LUT.Table))
}

// SDMActuator converts the control signal into a modulator input word and
// publishes it to the sigma-delta task. Like the lookup table, a positive
// control signal lowers the output frequency.
type SDMActuator struct {
	Mailbox *sdm.Mailbox
	Mid     int32 // input word for zero control signal
	Min     int32
	Max     int32
	Last    int32 // last word published
}

// NewSDMActuator creates an actuator for a modulator input range [min, max].
func NewSDMActuator(mb *sdm.Mailbox, mid, min, max int32) (*SDMActuator, error) {
	if min >= max || mid < min || mid > max {
		return nil, fmt.Errorf("invalid modulator range: mid %d, min %d, max %d", mid, min, max)
	}
	return &SDMActuator{Mailbox: mb, Mid: mid, Min: min, Max: max, Last: mid}, nil
}

// DefaultSDMRange returns a range centred in the modulator's input span that
// leaves two quantizer steps of margin at each end for the shaped error.
func DefaultSDMRange(m *sdm.Modulator) (mid, min, max int32) {
	step := m.Step()
	return m.Max() / 2, 2 * step, m.Max() - 2*step
}

func (a *SDMActuator) Apply(control int32) Saturation {
	in := int64(a.Mid) - int64(control)
	sat := InRange
	switch {
	case in < int64(a.Min):
		in = int64(a.Min)
		sat = SaturatedLow
	case in > int64(a.Max):
		in = int64(a.Max)
		sat = SaturatedHigh
	}
	a.Last = int32(in)
	a.Mailbox.Publish(a.Last)
	return sat
}

func (a *SDMActuator) Span() int32 {
	return a.Max - a.Min
}
