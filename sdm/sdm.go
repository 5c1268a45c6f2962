package sdm

import (
	"fmt"
	"math"

	"github.com/sergev/swpll/appll"
)

// Default modulator shape: a first order, 9 level quantizer driving the
// fractional divider in steps of 1/8, with 20 fractional bits of input
// resolution.
const (
	DefaultOrder    = 1
	DefaultLevels   = 9
	DefaultStepBits = 20
)

// Modulator is an error feedback sigma-delta modulator.
//
// The input is a fixed point number of quantizer steps with StepBits
// fractional bits. Each tick the input plus the shaped quantization error of
// previous ticks is rounded to the nearest level, and the new rounding error
// is kept for the following ticks.
//
// With a constant input the output summed over any window of ticks stays
// within one step of the input sum for order 1. Order 2 pushes more of the
// error to high frequencies, but the bound over an arbitrary window grows to
// two steps; only windows starting at reset keep the one step bound.
type Modulator struct {
	Order    int
	Levels   int32
	StepBits uint

	e1, e2 int64 // quantization errors of the last two ticks
}

// New creates a modulator of order 1 or 2.
func New(order int, levels int32, stepBits uint) (*Modulator, error) {
	if order != 1 && order != 2 {
		return nil, fmt.Errorf("unsupported modulator order %d", order)
	}
	if levels < 2 || levels > 257 {
		return nil, fmt.Errorf("modulator levels %d out of range 2..257", levels)
	}
	if stepBits == 0 || stepBits > 30 {
		return nil, fmt.Errorf("modulator step bits %d out of range 1..30", stepBits)
	}
	return &Modulator{Order: order, Levels: levels, StepBits: stepBits}, nil
}

// Step returns the input value of one quantizer step.
func (m *Modulator) Step() int32 {
	return 1 << m.StepBits
}

// Max returns the largest input the quantizer can represent.
func (m *Modulator) Max() int32 {
	return (m.Levels - 1) << m.StepBits
}

// Input returns the input word whose long term average output is the given
// fraction of full scale, clamped to [0, Max].
func (m *Modulator) Input(fraction float64) int32 {
	v := math.Round(fraction * float64(m.Max()))
	return int32(math.Max(0, math.Min(v, float64(m.Max()))))
}

// Reset clears the error history.
func (m *Modulator) Reset() {
	m.e1, m.e2 = 0, 0
}

// Tick modulates one sample and returns the output level in [0, Levels-1].
func (m *Modulator) Tick(x int32) int32 {
	v := int64(x) + m.e1
	if m.Order == 2 {
		v = int64(x) + 2*m.e1 - m.e2
	}

	half := int64(1) << (m.StepBits - 1)
	q := (v + half) >> m.StepBits
	if q < 0 {
		q = 0
	} else if q > int64(m.Levels-1) {
		q = int64(m.Levels - 1)
	}

	m.e2 = m.e1
	m.e1 = v - q<<m.StepBits
	return int32(q)
}

// OutToFracReg converts a modulator output level into a fractional divider
// register value. Level 0 disables the fractional block so the synthesizer
// runs at its integer multiplier; level n selects n/(levels-1).
func OutToFracReg(q, levels int32) uint32 {
	p := uint32(levels - 2)
	if q <= 0 {
		return p
	}
	return appll.FracEnable | uint32(q-1)<<8 | p
}
