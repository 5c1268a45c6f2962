package appll

import (
	"math"
	"testing"
)

func TestGenerateLUT(t *testing.T) {
	table, err := GenerateLUT(defaultSettings, 24.576e6, 150, 256, 0)
	if err != nil {
		t.Fatalf("GenerateLUT() returned error: %v", err)
	}
	if table.Settings.F != 101 {
		t.Errorf("F = %d, want 101", table.Settings.F)
	}
	if len(table.Entries) < 100 {
		t.Fatalf("only %d entries", len(table.Entries))
	}
	for i, e := range table.Entries {
		if math.Abs(e.PPM) > 150 {
			t.Errorf("entry %d at %v ppm", i, e.PPM)
		}
		if i > 0 && e.Hz <= table.Entries[i-1].Hz {
			t.Fatalf("entry %d at %v Hz not above entry %d at %v Hz", i, e.Hz, i-1, table.Entries[i-1].Hz)
		}
		if got := table.Settings.OutputHz(FracEnable | uint32(e.Value)); got != e.Hz {
			t.Errorf("entry %d: OutputHz() = %v, recorded %v", i, got, e.Hz)
		}
	}
	nominal := table.Entries[table.Nominal]
	if nominal.Value != 0x0104 || math.Abs(nominal.PPM) > 1e-6 {
		t.Errorf("nominal entry = %+v, want 2/5 at 0 ppm", nominal)
	}
	if table.StepPPM() <= 0 {
		t.Errorf("StepPPM() = %v", table.StepPPM())
	}
	values := table.Values()
	if len(values) != len(table.Entries) || uint16(values[table.Nominal]) != 0x0104 {
		t.Errorf("Values() does not match entries")
	}
}

func TestGenerateLUTThinned(t *testing.T) {
	full, err := GenerateLUT(defaultSettings, 24.576e6, 150, 256, 0)
	if err != nil {
		t.Fatalf("GenerateLUT() returned error: %v", err)
	}
	table, err := GenerateLUT(defaultSettings, 24.576e6, 150, 256, 51)
	if err != nil {
		t.Fatalf("GenerateLUT() returned error: %v", err)
	}
	if len(table.Entries) != 51 {
		t.Errorf("len(Entries) = %d, want 51", len(table.Entries))
	}
	if table.Entries[0] != full.Entries[0] || table.Entries[50] != full.Entries[len(full.Entries)-1] {
		t.Errorf("thinned table lost its end points")
	}
}

func TestGenerateLUTErrors(t *testing.T) {
	if _, err := GenerateLUT(defaultSettings, 24.576e6, 0, 256, 0); err == nil {
		t.Errorf("GenerateLUT() accepted zero ppm range")
	}
	if _, err := GenerateLUT(defaultSettings, 24.576e6, 0.001, 8, 0); err == nil {
		t.Errorf("GenerateLUT() accepted a range with no settings")
	}
}
