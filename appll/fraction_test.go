package appll

import (
	"math"
	"testing"
)

func TestNearestFraction(t *testing.T) {
	tests := []struct {
		name           string
		a, b, maxDenom uint64
		wantC, wantD   uint64
	}{
		{"whole number", 63, 9, 10, 7, 1},
		{"zero", 0, 1, 100, 0, 1},
		{"exact", 23, 5, 10, 23, 5},
		{"limited depth", 314159, 100000, 10, 22, 7},
		{"deeper", 314159, 100000, 200, 355, 113},
		{"two fifths", 400000000000, 1000000000000, 256, 2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, d, eps := NearestFraction(tt.a, tt.b, tt.maxDenom)
			if c != tt.wantC || d != tt.wantD {
				t.Errorf("NearestFraction(%d, %d, %d) = %d/%d, want %d/%d", tt.a, tt.b, tt.maxDenom, c, d, tt.wantC, tt.wantD)
			}
			want := float64(tt.a)/float64(tt.b) - float64(c)/float64(d)
			if math.Abs(eps-want) > 1e-15 {
				t.Errorf("eps = %v, want %v", eps, want)
			}
		})
	}
}

// A convergent is at least as close as any fraction with a smaller denominator.
func TestNearestFractionIsBest(t *testing.T) {
	const scale = 1000000
	for _, num := range []uint64{141421, 271828, 577215, 999, 400001} {
		x := float64(num) / scale
		c, d, eps := NearestFraction(num, scale, 64)
		for q := uint64(1); q < d; q++ {
			p := math.Round(x * float64(q))
			if math.Abs(x-p/float64(q)) < math.Abs(eps) {
				t.Errorf("%v: %v/%d beats %d/%d", x, p, q, c, d)
			}
		}
	}
}
