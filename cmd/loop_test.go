package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sergev/swpll/appll"
	"github.com/sergev/swpll/config"
	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/synth"
	"github.com/sergev/swpll/trace"
)

func useProfile(t *testing.T, name string) {
	t.Helper()
	p, err := config.Default(name)
	if err != nil {
		t.Fatalf("config.Default(%q) returned error: %v", name, err)
	}
	profile = p
	synth.LockDelay = 0
}

func TestControlLoopLocks(t *testing.T) {
	for _, name := range []string{"lut", "sdm"} {
		t.Run(name, func(t *testing.T) {
			useProfile(t, name)
			s, err := newSim(300 * uint64(profile.LoopRateCount))
			if err != nil {
				t.Fatalf("newSim() returned error: %v", err)
			}
			cl, err := newControlLoop(profile, s)
			if err != nil {
				t.Fatalf("newControlLoop() returned error: %v", err)
			}
			if (cl.Table != nil) != (name == "lut") || (cl.Task != nil) != (name == "sdm") {
				t.Fatalf("wrong actuator: table %v, task %v", cl.Table != nil, cl.Task != nil)
			}
			if cl.Task != nil {
				s.Every(cl.Task.Interval, func() { cl.Task.Step() })
			}

			if err := cl.PLL.Run(context.Background(), s); !errors.Is(err, io.EOF) {
				t.Fatalf("Run() returned %v, want io.EOF", err)
			}
			sum := cl.Recorder.Summary()
			if !sum.Locked || sum.Resyncs != 0 {
				t.Errorf("summary %+v, want locked without resyncs", sum)
			}
			if math.Abs(sum.MeanPPM) > 2 {
				t.Errorf("mean frequency error %v ppm", sum.MeanPPM)
			}
		})
	}
}

func TestSolveRejectsIntegerTarget(t *testing.T) {
	useProfile(t, "lut")
	p := *profile
	p.TargetHz = 22.8e6
	if _, _, err := solve(&p); err == nil {
		t.Errorf("solve() accepted a target without a fractional part")
	}
}

func TestEncodeTable(t *testing.T) {
	useProfile(t, "lut")
	s, _, err := solve(profile)
	if err != nil {
		t.Fatalf("solve() returned error: %v", err)
	}
	table, err := appll.GenerateLUT(s, profile.TargetHz, 150, 256, 11)
	if err != nil {
		t.Fatalf("GenerateLUT() returned error: %v", err)
	}

	tests := []struct {
		format string
		want   string
	}{
		{"toml", "[[entry]]"},
		{"yaml", "nominal_index:"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := encodeTable(&buf, table, tt.format); err != nil {
			t.Fatalf("encodeTable(%s) returned error: %v", tt.format, err)
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("%s output does not contain %q:\n%s", tt.format, tt.want, buf.String())
		}
	}
	if err := encodeTable(io.Discard, table, "json"); err == nil {
		t.Errorf("encodeTable() accepted an unknown format")
	}
}

func TestReplayMatchesLiveRun(t *testing.T) {
	useProfile(t, "lut")
	filename := filepath.Join(t.TempDir(), "edges.trc.gz")

	// Record a live simulated run
	s, err := newSim(200 * uint64(profile.LoopRateCount))
	if err != nil {
		t.Fatalf("newSim() returned error: %v", err)
	}
	live, err := newControlLoop(profile, s)
	if err != nil {
		t.Fatalf("newControlLoop() returned error: %v", err)
	}
	w, err := trace.Create(filename, traceHeader())
	if err != nil {
		t.Fatalf("trace.Create() returned error: %v", err)
	}
	if err := live.PLL.Run(context.Background(), trace.Tee(s, w)); !errors.Is(err, io.EOF) {
		t.Fatalf("Run() returned %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	// The same samples give the same control decisions offline
	r, err := trace.Open(filename)
	if err != nil {
		t.Fatalf("trace.Open() returned error: %v", err)
	}
	defer r.Close()
	if r.Header().PLLRatio() != profile.PLLRatio {
		t.Errorf("trace ratio %d, want %d", r.Header().PLLRatio(), profile.PLLRatio)
	}
	sink, _ := newSim(0)
	offline, err := newControlLoop(profile, sink)
	if err != nil {
		t.Fatalf("newControlLoop() returned error: %v", err)
	}
	if err := offline.PLL.Run(context.Background(), r); !errors.Is(err, io.EOF) {
		t.Fatalf("replay Run() returned %v", err)
	}
	if offline.PLL.Control() != live.PLL.Control() || offline.PLL.Status() != live.PLL.Status() {
		t.Errorf("replay ended at control %d %v, live run at %d %v",
			offline.PLL.Control(), offline.PLL.Status(), live.PLL.Control(), live.PLL.Status())
	}
	if live.PLL.Status() != pll.Locked {
		t.Errorf("live run status %v, want locked", live.PLL.Status())
	}
}
