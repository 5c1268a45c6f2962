package pll

import (
	"math"

	"github.com/sergev/swpll/fixed"
)

// PI is a proportional-integral controller with 15Q16 gains.
type PI struct {
	Kp, Ki      int32 // 15Q16 gains
	Accumulator int32 // integral of the phase error
	WindupLimit int32 // accumulator is held within +/- WindupLimit
}

// NewPI creates a controller whose integral term alone can move the actuator
// across span control units before the accumulator clamps.
func NewPI(kp, ki, span int32) PI {
	return PI{
		Kp:          kp,
		Ki:          ki,
		WindupLimit: windupLimit(ki, span),
	}
}

func windupLimit(ki, span int32) int32 {
	if ki == 0 {
		return 0
	}
	k := int64(ki)
	if k < 0 {
		k = -k
	}
	limit := (int64(span) << fixed.FracBits) / k
	if limit > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(limit)
}

// Update integrates err and returns the control signal.
// Both products are taken at 64 bits before the single defined shift.
func (pi *PI) Update(err int16) int32 {
	pi.Accumulator = fixed.AccumulateClamped(pi.Accumulator, int32(err), pi.WindupLimit)

	errP := int64(pi.Kp) * int64(err)
	errI := int64(pi.Ki) * int64(pi.Accumulator)
	return fixed.Narrow32((errP + errI) >> fixed.FracBits)
}

// Reset clears the integral term.
func (pi *PI) Reset() {
	pi.Accumulator = 0
}
