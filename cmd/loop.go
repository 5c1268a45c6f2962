package cmd

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/sergev/swpll/appll"
	"github.com/sergev/swpll/config"
	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/report"
	"github.com/sergev/swpll/sdm"
	"github.com/sergev/swpll/sim"
	"github.com/sergev/swpll/synth"
)

// controlLoop is a loop assembled from a profile.
type controlLoop struct {
	PLL      *pll.PLL
	Settings appll.Settings // solved synthesizer dividers
	Nominal  uint16         // fractional register at the target frequency
	Table    *appll.Table   // lookup table, nil for the sigma-delta actuator
	Task     *sdm.Task      // modulator task, nil for the lookup table actuator
	Recorder *report.Recorder
}

// solve picks the synthesizer dividers for the profile's target frequency.
func solve(p *config.Profile) (appll.Settings, uint16, error) {
	s, nominal, residual, err := appll.Solve(p.Synth, p.TargetHz, uint64(p.LUT.MaxDenominator))
	if err != nil {
		return appll.Settings{}, 0, fmt.Errorf("failed to solve synthesizer settings: %w", err)
	}
	if nominal == 0 {
		return appll.Settings{}, 0, fmt.Errorf("target %.0f Hz is an integer multiple of the input, nothing to steer", p.TargetHz)
	}
	glog.V(1).Infof("Synthesizer F=%d R=%d OD=%d ACD=%d frac 0x%04x, residual %.3f Hz",
		s.F, s.R, s.OD, s.ACD, nominal, residual)
	return s, nominal, nil
}

// newControlLoop programs the synthesizer through w and builds the loop
// with the actuator named in the profile.
func newControlLoop(p *config.Profile, w synth.RegisterWriter) (*controlLoop, error) {
	s, nominal, err := solve(p)
	if err != nil {
		return nil, err
	}
	cl := &controlLoop{Settings: s, Nominal: nominal}
	dev := synth.NewDevice(w)

	var act pll.Actuator
	switch p.Actuator {
	case config.ActuatorLUT:
		cl.Table, err = appll.GenerateLUT(s, p.TargetHz, float64(p.PPMRange), p.LUT.MaxDenominator, p.LUT.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to generate lookup table: %w", err)
		}
		cl.Nominal = cl.Table.Entries[cl.Table.Nominal].Value
		lut, err := pll.NewLUT(cl.Table.Values(), cl.Table.Nominal)
		if err != nil {
			return nil, err
		}
		act = pll.NewLUTActuator(lut, dev)

	case config.ActuatorSDM:
		m, err := sdm.New(p.SDM.Order, p.SDM.Levels, p.SDM.StepBits)
		if err != nil {
			return nil, err
		}
		_, min, max := pll.DefaultSDMRange(m)
		mid := m.Input(appll.Fraction(appll.FracEnable | uint32(nominal)))
		mb := sdm.NewMailbox()
		act, err = pll.NewSDMActuator(mb, mid, min, max)
		if err != nil {
			return nil, err
		}
		cl.Task = sdm.NewTask(m, mb, dev, p.SDMInterval(), mid)
	}

	if err := synth.Init(w, s.CtlReg(), s.DivReg(), cl.Nominal); err != nil {
		return nil, fmt.Errorf("failed to initialize synthesizer: %w", err)
	}

	cl.PLL, err = pll.New(p.Params(), act)
	if err != nil {
		return nil, err
	}
	interval := time.Duration(float64(p.LoopRateCount) / p.RefHz() * float64(time.Second))
	cl.Recorder = report.NewRecorder(cl.PLL.PFD.MclkExpectedInc, interval)
	cl.PLL.Observe = cl.Recorder.Observe
	return cl, nil
}

// newSim creates a simulated bridge running at the profile's target
// frequency. A non-zero edges limits the run length.
func newSim(edges uint64) (*sim.Sim, error) {
	s, nominal, err := solve(profile)
	if err != nil {
		return nil, err
	}
	return sim.New(sim.Config{
		Settings: s,
		Frac:     appll.FracEnable | uint32(nominal),
		RefHz:    profile.Sim.RefHz,
		RefPPM:   profile.Sim.RefPPM,
		TimerHz:  profile.Sim.TimerHz,
		MaxEdges: edges,
	})
}
