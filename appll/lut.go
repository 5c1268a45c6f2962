package appll

import (
	"fmt"
	"math"
	"sort"
)

// Entry is one fractional divider setting of a lookup table.
type Entry struct {
	Value uint16  `toml:"value" yaml:"value"` // fractional register value without the enable bit
	Hz    float64 `toml:"hz" yaml:"hz"`
	PPM   float64 `toml:"ppm" yaml:"ppm"` // deviation from the target frequency
}

// Table is a lookup table of fractional settings sorted by ascending output
// frequency, together with the settings it was generated for.
type Table struct {
	Settings Settings `toml:"settings" yaml:"settings"`
	TargetHz float64  `toml:"target_hz" yaml:"target_hz"`
	Nominal  int      `toml:"nominal_index" yaml:"nominal_index"`
	Entries  []Entry  `toml:"entry" yaml:"entries"`
}

// Values returns the register values in table order, in the signed 16-bit
// form the control loop indexes.
func (t *Table) Values() []int16 {
	v := make([]int16, len(t.Entries))
	for i, e := range t.Entries {
		v[i] = int16(e.Value)
	}
	return v
}

// StepPPM returns the mean frequency step between adjacent entries.
func (t *Table) StepPPM() float64 {
	if len(t.Entries) < 2 {
		return 0
	}
	return (t.Entries[len(t.Entries)-1].PPM - t.Entries[0].PPM) / float64(len(t.Entries)-1)
}

// GenerateLUT enumerates every fractional setting (f+1)/(p+1) with a
// denominator up to maxDenominator whose output lies within +/- ppmRange of
// targetHz. The integer part F is solved from the target. When maxEntries is
// positive the table is thinned evenly to at most that many entries.
func GenerateLUT(s Settings, targetHz, ppmRange float64, maxDenominator, maxEntries int) (*Table, error) {
	if ppmRange <= 0 {
		return nil, fmt.Errorf("appll: ppm range must be positive, got %v", ppmRange)
	}
	solved, _, _, err := Solve(s, targetHz, uint64(maxDenominator))
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for den := 2; den <= maxDenominator; den++ {
		for num := 1; num < den; num++ {
			if gcd(num, den) != 1 {
				continue // same ratio already seen with a smaller denominator
			}
			value := FracReg(uint8(num-1), uint8(den-1))
			hz := solved.OutputHz(FracEnable | uint32(value))
			ppm := (hz - targetHz) / targetHz * 1e6
			if math.Abs(ppm) > ppmRange {
				continue
			}
			entries = append(entries, Entry{Value: value, Hz: hz, PPM: ppm})
		}
	}
	if len(entries) < 3 {
		return nil, fmt.Errorf("appll: only %d settings within %v ppm of %.0f Hz, increase the ppm range or denominator", len(entries), ppmRange, targetHz)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Hz < entries[j].Hz
	})

	if maxEntries > 0 && len(entries) > maxEntries {
		entries = thin(entries, maxEntries)
	}

	t := &Table{
		Settings: solved,
		TargetHz: targetHz,
		Entries:  entries,
	}
	best := math.Inf(1)
	for i, e := range entries {
		if d := math.Abs(e.PPM); d < best {
			best = d
			t.Nominal = i
		}
	}
	return t, nil
}

// thin keeps n entries spread evenly over the sorted table, always including
// both ends.
func thin(entries []Entry, n int) []Entry {
	if n < 2 {
		n = 2
	}
	out := make([]Entry, 0, n)
	last := -1
	for i := 0; i < n; i++ {
		idx := int(math.Round(float64(i) * float64(len(entries)-1) / float64(n-1)))
		if idx == last {
			continue
		}
		out = append(out, entries[idx])
		last = idx
	}
	return out
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
