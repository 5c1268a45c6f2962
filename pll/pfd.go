package pll

import (
	"errors"
	"fmt"
	"math"

	"github.com/sergev/swpll/fixed"
)

// PreDivBits is the shift width of the pre-computed reference clock divide.
// The compensated increment is (mclkInc * (refInc + refDiff) * numerator) >> PreDivBits
// where numerator = (1 << PreDivBits) / refInc + 1. The width trades precision
// against headroom in the 64-bit product; NewPFD rejects settings that would overflow.
const PreDivBits = 37

// ErrArithmeticWidth is returned when the loop settings would overflow the
// 64-bit intermediate used by the phase detector.
var ErrArithmeticWidth = errors.New("phase detector arithmetic exceeds 64 bits, reduce loop rate count or pll ratio")

// PFD is the phase-frequency detector state. Timer samples live on the 16-bit
// ring of the port timers and are only ever compared through fixed.Diff16.
type PFD struct {
	RefLast  uint16 // last reference timer sample
	MclkLast uint16 // last feedback (mclk) timer sample

	RefExpectedInc   uint32 // expected reference timer increment per update, 0 disables compensation
	MclkExpectedInc  uint32 // expected mclk increment per update
	ScalingNumerator uint64 // (1 << PreDivBits) / RefExpectedInc + 1

	MaxDiff  int32 // largest tolerated phase error before a resync
	LastDiff int16 // most recent phase error
}

// NewPFD builds the detector for a loop that updates every loopRateCount
// reference edges, with pllRatio mclk cycles per reference edge.
func NewPFD(loopRateCount, pllRatio int, refExpectedInc uint32, ppmRange int) (PFD, error) {
	if loopRateCount <= 0 || pllRatio <= 0 {
		return PFD{}, fmt.Errorf("invalid loop rate count %d or pll ratio %d", loopRateCount, pllRatio)
	}
	if ppmRange <= 0 {
		return PFD{}, fmt.Errorf("invalid ppm range %d", ppmRange)
	}

	refInc := uint64(refExpectedInc) * uint64(loopRateCount)
	mclkInc := uint64(loopRateCount) * uint64(pllRatio)
	if refInc > math.MaxUint32 || mclkInc > math.MaxUint32 {
		return PFD{}, ErrArithmeticWidth
	}
	p := PFD{
		RefExpectedInc:  uint32(refInc),
		MclkExpectedInc: uint32(mclkInc),
	}
	if p.RefExpectedInc != 0 {
		// +1 biases the truncated reciprocal so the product rounds up rather than down
		p.ScalingNumerator = (uint64(1)<<PreDivBits)/uint64(p.RefExpectedInc) + 1
	}

	// Nominally twice the controllable range
	p.MaxDiff = int32(uint64(ppmRange) * 2 * uint64(pllRatio) * uint64(loopRateCount) / 1000000)

	// Keep 10% headroom below the 64-bit limit
	limit := float64(math.MaxUint64) / 1.1
	worst := float64(p.RefExpectedInc) * float64(p.ScalingNumerator) * float64(p.MclkExpectedInc)
	if worst >= limit {
		return PFD{}, ErrArithmeticWidth
	}
	return p, nil
}

// Compute turns the current mclk and reference timer samples into a phase
// error. resync is set when the error is too large to be a frequency offset
// and the loop must start over, e.g. after the reference stopped and restarted.
func (p *PFD) Compute(mclk, ref uint16) (diff int16, resync bool) {
	var mclkExpected uint16
	if p.RefExpectedInc != 0 {
		refExpected := p.RefLast + uint16(p.RefExpectedInc)
		refDiff := fixed.Diff16(ref, refExpected)
		p.RefLast = ref

		// Scale the mclk increment by the reference interval actually observed.
		// Multiply by the pre-computed reciprocal instead of dividing by RefExpectedInc.
		interval := uint64(int64(p.RefExpectedInc) + int64(refDiff))
		inc := uint32((uint64(p.MclkExpectedInc) * interval * p.ScalingNumerator) >> PreDivBits)
		mclkExpected = p.MclkLast + uint16(inc)
	} else {
		mclkExpected = p.MclkLast + uint16(p.MclkExpectedInc)
	}

	p.LastDiff = fixed.Diff16(mclk, mclkExpected)
	mag := int32(p.LastDiff)
	if mag < 0 {
		mag = -mag
	}
	return p.LastDiff, mag > p.MaxDiff
}
