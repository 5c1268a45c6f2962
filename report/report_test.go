package report

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sergev/swpll/pll"
)

func TestSummaryAfterLock(t *testing.T) {
	r := NewRecorder(262144, 10*time.Millisecond)
	r.Observe(pll.Update{First: true, Status: pll.UnlockedLow})
	r.Observe(pll.Update{Status: pll.UnlockedLow, Error: -13})
	r.Observe(pll.Update{Status: pll.UnlockedLow, Error: 26})
	r.Observe(pll.Update{Status: pll.Locked, Error: 1})
	r.Observe(pll.Update{Status: pll.Locked, Error: -1})
	r.Observe(pll.Update{Resync: true, Status: pll.Locked, Error: 500})

	s := r.Summary()
	if s.Updates != 6 || s.Resyncs != 1 || !s.Locked {
		t.Fatalf("Summary() = %+v", s)
	}
	if s.LockTime != 40*time.Millisecond {
		t.Errorf("LockTime = %v, want 40ms", s.LockTime)
	}
	if s.Samples != 2 || s.MeanPPM != 0 {
		t.Errorf("Samples = %d, MeanPPM = %v", s.Samples, s.MeanPPM)
	}
	tick := 1e6 / 262144.0
	if math.Abs(s.MaxPPM-tick) > 1e-9 || math.Abs(s.MinPPM+tick) > 1e-9 {
		t.Errorf("range = %v .. %v, want +/-%v", s.MinPPM, s.MaxPPM, tick)
	}
	if math.Abs(s.StdDevPPM-math.Sqrt2*tick) > 1e-9 {
		t.Errorf("StdDevPPM = %v", s.StdDevPPM)
	}

	var buf bytes.Buffer
	s.Print(&buf)
	if !strings.Contains(buf.String(), "Lock Time: 40ms") {
		t.Errorf("Print() output:\n%s", buf.String())
	}
}

func TestSummaryNeverLocked(t *testing.T) {
	r := NewRecorder(262144, 10*time.Millisecond)
	r.Observe(pll.Update{First: true})
	r.Observe(pll.Update{Status: pll.UnlockedHigh, Error: -13})

	s := r.Summary()
	if s.Locked || s.Samples != 1 || s.StdDevPPM != 0 {
		t.Errorf("Summary() = %+v", s)
	}
	if math.Abs(s.RMS()-13e6/262144) > 1e-9 {
		t.Errorf("RMS() = %v", s.RMS())
	}

	var buf bytes.Buffer
	s.Print(&buf)
	if !strings.Contains(buf.String(), "never locked") {
		t.Errorf("Print() output:\n%s", buf.String())
	}

	if empty := NewRecorder(1, time.Millisecond).Summary(); empty.Samples != 0 {
		t.Errorf("empty Summary() = %+v", empty)
	}
}
