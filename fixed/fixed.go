package fixed

import "math"

// FracBits is the number of fractional bits in 15Q16 gain values.
const FracBits = 16

// Q16 converts a floating point value to 15Q16 fixed point.
// Values are truncated toward zero, matching the way gains are tabulated offline.
func Q16(v float64) int32 {
	return int32(v * (1 << FracBits))
}

// FromQ16 converts a 15Q16 value back to floating point.
func FromQ16(v int32) float64 {
	return float64(v) / (1 << FracBits)
}

// TimeAfter16 reports whether timer value a is later than b on the
// modulo-65536 ring of a free running 16-bit port timer.
func TimeAfter16(a, b uint16) bool {
	return int16(b-a) < 0
}

// Diff16 returns the signed distance from b to a on the 16-bit timer ring.
// The ordering is decided first, then the shorter way round is subtracted,
// so the result is correct across counter wraparound.
func Diff16(a, b uint16) int16 {
	if TimeAfter16(a, b) {
		return -int16(b - a)
	}
	return int16(a - b)
}

// AccumulateClamped adds e to acc and saturates the sum into [-limit, limit].
// The sum is formed in 64 bits so it cannot wrap before clamping.
func AccumulateClamped(acc, e, limit int32) int32 {
	sum := int64(acc) + int64(e)
	return int32(Clamp64(sum, -int64(limit), int64(limit)))
}

// Clamp64 limits v to [lo, hi].
func Clamp64(v, lo, hi int64) int64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// Narrow32 saturates a 64-bit value into the int32 range.
func Narrow32(v int64) int32 {
	return int32(Clamp64(v, math.MinInt32, math.MaxInt32))
}

// MulShift multiplies two signed values at double width and applies an
// arithmetic right shift of the given width.
func MulShift(a, b int64, shift uint) int64 {
	return (a * b) >> shift
}
