package appll

import (
	"errors"
	"fmt"
	"math"
)

// Control register layout
const (
	CtlEnable  = 1 << 27
	ctlODShift = 23
	ctlODMask  = 0x7
	ctlFShift  = 8
	ctlFMask   = 0x1fff
	ctlRMask   = 0x3f
)

// Fractional-N divider register layout
const (
	FracEnable = 1 << 31
	fracFShift = 8
	fracFMask  = 0xff
	fracPMask  = 0xff
)

// Output divider register layout
const (
	DivEnable = 1 << 31
	divMask   = 0x1ff
)

// Settings describes the integer part of the synthesizer configuration.
//
//	vco = InputHz * (F + 1 + frac) / 2 / (R + 1)
//	out = vco / (OD + 1) / (2 * (ACD + 1))
//
// where frac = (f + 1) / (p + 1) when the fractional block is enabled.
type Settings struct {
	InputHz float64 `toml:"input_hz" yaml:"input_hz"`
	F       uint32  `toml:"f" yaml:"f"`
	R       uint32  `toml:"r" yaml:"r"`
	OD      uint32  `toml:"od" yaml:"od"`
	ACD     uint32  `toml:"acd" yaml:"acd"`
}

// Validate checks that every field fits its register field.
func (s Settings) Validate() error {
	if s.InputHz <= 0 {
		return errors.New("appll: input frequency must be positive")
	}
	if s.F == 0 || s.F > ctlFMask {
		return fmt.Errorf("appll: F=%d out of range 1..%d", s.F, ctlFMask)
	}
	if s.R > ctlRMask {
		return fmt.Errorf("appll: R=%d out of range 0..%d", s.R, ctlRMask)
	}
	if s.OD > ctlODMask {
		return fmt.Errorf("appll: OD=%d out of range 0..%d", s.OD, ctlODMask)
	}
	if s.ACD > divMask {
		return fmt.Errorf("appll: ACD=%d out of range 0..%d", s.ACD, divMask)
	}
	return nil
}

// CtlReg returns the PLL control register value with the PLL enabled.
func (s Settings) CtlReg() uint32 {
	return CtlEnable | (s.OD&ctlODMask)<<ctlODShift | (s.F&ctlFMask)<<ctlFShift | s.R&ctlRMask
}

// DivReg returns the output divider register value.
func (s Settings) DivReg() uint32 {
	return DivEnable | s.ACD&divMask
}

// DecodeCtl extracts the divider fields from a control register value.
func DecodeCtl(inputHz float64, ctl, div uint32) Settings {
	return Settings{
		InputHz: inputHz,
		F:       (ctl >> ctlFShift) & ctlFMask,
		R:       ctl & ctlRMask,
		OD:      (ctl >> ctlODShift) & ctlODMask,
		ACD:     div & divMask,
	}
}

// FracReg composes a fractional divider value for the fraction (f+1)/(p+1).
// The enable bit is not set; callers add FracEnable when writing.
func FracReg(f, p uint8) uint16 {
	return uint16(f)<<fracFShift | uint16(p)
}

// DecodeFrac splits a fractional divider register value.
func DecodeFrac(reg uint32) (enabled bool, f, p uint8) {
	return reg&FracEnable != 0, uint8(reg >> fracFShift & fracFMask), uint8(reg & fracPMask)
}

// Fraction returns the fractional multiplier selected by a register value.
func Fraction(reg uint32) float64 {
	enabled, f, p := DecodeFrac(reg)
	if !enabled {
		return 0
	}
	return float64(uint32(f)+1) / float64(uint32(p)+1)
}

// OutputHz returns the output frequency for a fractional register value.
func (s Settings) OutputHz(frac uint32) float64 {
	mult := float64(s.F+1) + Fraction(frac)
	vco := s.InputHz * mult / 2 / float64(s.R+1)
	return vco / float64(s.OD+1) / float64(2*(s.ACD+1))
}

// multiplier returns the total feedback multiplier needed to produce hz.
func (s Settings) multiplier(hz float64) float64 {
	return hz * float64(2*(s.ACD+1)) * float64(s.OD+1) * 2 * float64(s.R+1) / s.InputHz
}

// Solve picks F and the closest fractional setting with denominator up to
// maxDenominator for a target output frequency. R, OD and ACD are taken
// from s. The returned error is the residual in Hz.
func Solve(s Settings, targetHz float64, maxDenominator uint64) (Settings, uint16, float64, error) {
	if targetHz <= 0 {
		return Settings{}, 0, 0, errors.New("appll: target frequency must be positive")
	}
	if maxDenominator < 2 || maxDenominator > 256 {
		return Settings{}, 0, 0, fmt.Errorf("appll: max denominator %d out of range 2..256", maxDenominator)
	}
	mult := s.multiplier(targetHz)
	whole := math.Floor(mult)
	if whole < 2 {
		return Settings{}, 0, 0, fmt.Errorf("appll: multiplier %.4f too small", mult)
	}
	s.F = uint32(whole) - 1
	if err := s.Validate(); err != nil {
		return Settings{}, 0, 0, err
	}

	const scale = 1_000_000_000_000
	c, d, _ := NearestFraction(uint64(math.Round((mult-whole)*scale)), scale, maxDenominator)
	var reg uint16
	var frac uint32
	switch {
	case c == 0:
		// integer multiplier, fractional block disabled
	case c >= d:
		s.F++
		if err := s.Validate(); err != nil {
			return Settings{}, 0, 0, err
		}
	default:
		reg = FracReg(uint8(c-1), uint8(d-1))
		frac = FracEnable | uint32(reg)
	}
	return s, reg, targetHz - s.OutputHz(frac), nil
}
