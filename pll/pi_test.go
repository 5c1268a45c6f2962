package pll

import (
	"math/rand"
	"testing"

	"github.com/sergev/swpll/fixed"
)

func TestPIWindupLimit(t *testing.T) {
	tests := []struct {
		name string
		ki   int32
		span int32
		want int32
	}{
		{"integral gain 1.0", fixed.Q16(1.0), 101, 101},
		{"integral gain 32.0", fixed.Q16(32.0), 101, 3},
		{"integral gain 0.5", fixed.Q16(0.5), 100, 200},
		{"no integral term", 0, 101, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pi := NewPI(0, tt.ki, tt.span)
			if pi.WindupLimit != tt.want {
				t.Errorf("WindupLimit = %d, want %d", pi.WindupLimit, tt.want)
			}
		})
	}
}

func TestPIUpdate(t *testing.T) {
	pi := NewPI(fixed.Q16(2.0), fixed.Q16(0.5), 1000)

	// P: 2*10, I: 0.5*10
	if got := pi.Update(10); got != 25 {
		t.Errorf("Update(10) = %d, want 25", got)
	}
	// P: 2*-4, I: 0.5*6
	if got := pi.Update(-4); got != -5 {
		t.Errorf("Update(-4) = %d, want -5", got)
	}
	if pi.Accumulator != 6 {
		t.Errorf("Accumulator = %d, want 6", pi.Accumulator)
	}

	pi.Reset()
	if pi.Accumulator != 0 {
		t.Errorf("Accumulator after Reset = %d", pi.Accumulator)
	}
}

func TestPIAccumulatorBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, ki := range []float64{0.25, 1.0, 32.0} {
		pi := NewPI(fixed.Q16(1.0), fixed.Q16(ki), 101)
		maxErr := int(float64(pi.WindupLimit)/ki) + 1
		for i := 0; i < 10000; i++ {
			e := int16(rng.Intn(2*maxErr+1) - maxErr)
			pi.Update(e)
			if pi.Accumulator > pi.WindupLimit || pi.Accumulator < -pi.WindupLimit {
				t.Fatalf("Ki=%v: accumulator %d outside +/-%d after %d updates", ki, pi.Accumulator, pi.WindupLimit, i+1)
			}
		}
	}
}

func TestPIWideProducts(t *testing.T) {
	// The proportional product exceeds 32 bits before the shift
	pi := NewPI(fixed.Q16(1000.0), fixed.Q16(1000.0), 1<<14)
	pi.Accumulator = pi.WindupLimit - 20000
	got := pi.Update(20000)
	want := int32((int64(fixed.Q16(1000.0))*20000 + int64(fixed.Q16(1000.0))*int64(pi.Accumulator)) >> fixed.FracBits)
	if got != want {
		t.Errorf("Update(20000) = %d, want %d", got, want)
	}
}
