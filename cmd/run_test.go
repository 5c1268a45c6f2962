package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/sim"
	"github.com/sergev/swpll/synth"
	"github.com/sergev/swpll/trace"
)

var errUnplugged = errors.New("bridge unplugged")

// hwBridge wraps the simulator so it is driven like a hardware bridge:
// the modulator task runs on its own goroutine, and the edge stream can
// fail part way.
type hwBridge struct {
	*sim.Sim
	failAfter uint64 // edges delivered before NextEdge fails, 0 never fails

	mu     sync.Mutex
	closed bool
	writes int
	late   int // writes after Close
}

func newHWBridge(t *testing.T, failAfter uint64) *hwBridge {
	t.Helper()
	s, err := newSim(0)
	if err != nil {
		t.Fatalf("newSim() returned error: %v", err)
	}
	return &hwBridge{Sim: s, failAfter: failAfter}
}

func (b *hwBridge) WriteRegisterNoAck(reg synth.Register, val uint32) {
	b.mu.Lock()
	b.writes++
	if b.closed {
		b.late++
	}
	b.mu.Unlock()
	b.Sim.WriteRegisterNoAck(reg, val)
}

func (b *hwBridge) NextEdge(ctx context.Context) (pll.Sample, error) {
	if edges, _ := b.Sim.Counters(); b.failAfter != 0 && edges >= b.failAfter {
		return pll.Sample{}, errUnplugged
	}
	return b.Sim.NextEdge(ctx)
}

func (b *hwBridge) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *hwBridge) counts() (writes, late int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes, b.late
}

func TestRunControlStopsModulator(t *testing.T) {
	useProfile(t, "sdm")
	b := newHWBridge(t, 0)

	cl, err := runControl(context.Background(), b, 20, "")
	if err != nil {
		t.Fatalf("runControl() returned error: %v", err)
	}
	if updates, _ := cl.PLL.Counters(); updates != 20 {
		t.Errorf("%d updates, want 20", updates)
	}
	b.Close()

	// The task ticks every 100us; it would have written by now if still running
	before, _ := b.counts()
	time.Sleep(20 * time.Millisecond)
	writes, late := b.counts()
	if writes != before || late != 0 {
		t.Errorf("modulator wrote %d times after the loop returned, %d after Close", writes-before, late)
	}
}

func TestRunControlClosesTraceOnError(t *testing.T) {
	useProfile(t, "lut")
	const edges = 5*512 + 10
	b := newHWBridge(t, edges)
	filename := filepath.Join(t.TempDir(), "edges.trc")

	_, err := runControl(context.Background(), b, 0, filename)
	if !errors.Is(err, errUnplugged) {
		t.Fatalf("runControl() returned %v, want %v", err, errUnplugged)
	}

	r, err := trace.Open(filename)
	if err != nil {
		t.Fatalf("trace.Open() returned error: %v", err)
	}
	defer r.Close()
	if r.Header().Count != edges {
		t.Errorf("trace count = %d, want %d", r.Header().Count, edges)
	}
}

func TestCaptureTrace(t *testing.T) {
	useProfile(t, "lut")
	dir := t.TempDir()

	n, err := captureTrace(context.Background(), newHWBridge(t, 0), filepath.Join(dir, "ok.trc"), 1000)
	if err != nil || n != 1000 {
		t.Errorf("captureTrace() = %d, %v, want 1000 edges", n, err)
	}

	filename := filepath.Join(dir, "failed.trc")
	n, err = captureTrace(context.Background(), newHWBridge(t, 300), filename, 1000)
	if !errors.Is(err, errUnplugged) {
		t.Fatalf("captureTrace() returned %v, want %v", err, errUnplugged)
	}
	if n != 300 {
		t.Errorf("captureTrace() recorded %d edges, want 300", n)
	}
	h, samples, err := trace.Read(filename)
	if err != nil {
		t.Fatalf("trace.Read() returned error: %v", err)
	}
	if h.Count != 300 || len(samples) != 300 {
		t.Errorf("trace holds %d samples, header count %d, want 300", len(samples), h.Count)
	}
}
