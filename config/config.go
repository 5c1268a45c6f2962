package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sergev/swpll/appll"
	"github.com/sergev/swpll/fixed"
	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/sdm"
)

//go:embed swpll.toml
var defaultConfigData []byte

// Path of the configuration file loaded by Initialize
var Path string

// Actuator kinds
const (
	ActuatorLUT = "lut"
	ActuatorSDM = "sdm"
)

// Config represents the entire TOML configuration structure
type Config struct {
	Default string    `toml:"default"`
	Profile []Profile `toml:"profile"`
}

// Profile is one named set of loop parameters
type Profile struct {
	Name     string  `toml:"name"`
	Backend  string  `toml:"backend"`
	Actuator string  `toml:"actuator"`
	TargetHz float64 `toml:"target_hz"`

	Kp             float64 `toml:"kp"`
	Ki             float64 `toml:"ki"`
	LoopRateCount  int     `toml:"loop_rate_count"`
	PLLRatio       int     `toml:"pll_ratio"`
	RefExpectedInc uint32  `toml:"ref_expected_inc"`
	PPMRange       int     `toml:"ppm_range"`
	LockCount      int     `toml:"lock_count"`

	Synth appll.Settings `toml:"synth"`
	LUT   LUT            `toml:"lut"`
	SDM   SDM            `toml:"sdm"`
	Sim   Sim            `toml:"sim"`
}

// LUT holds the lookup table generation settings
type LUT struct {
	MaxDenominator int `toml:"max_denominator"`
	MaxEntries     int `toml:"max_entries"`
}

// SDM holds the sigma-delta modulator settings
type SDM struct {
	Order      int   `toml:"order"`
	Levels     int32 `toml:"levels"`
	StepBits   uint  `toml:"step_bits"`
	IntervalUs int   `toml:"interval_us"`
}

// Sim holds the simulated reference clock
type Sim struct {
	RefHz   float64 `toml:"ref_hz"`
	RefPPM  float64 `toml:"ref_ppm"`
	TimerHz float64 `toml:"timer_hz"`
}

// configPath determines the config file path based on the operating system
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "swpll")
	default:
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".swpll"), nil
}

// Initialize loads the configuration file and returns the selected profile.
// An empty path selects ~/.swpll, which is created from the embedded default
// if it doesn't exist. An empty name selects the `default` profile.
func Initialize(path, name string) (*Profile, error) {
	if path == "" {
		var err error
		path, err = configPath()
		if err != nil {
			return nil, err
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			configDir := filepath.Dir(path)
			if err := os.MkdirAll(configDir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create config directory %s: %w", configDir, err)
			}
			if err := os.WriteFile(path, defaultConfigData, 0644); err != nil {
				return nil, fmt.Errorf("failed to create default config file at %s: %w", path, err)
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	p, err := Parse(data, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	Path = path
	return p, nil
}

// Default returns a profile from the embedded default configuration.
func Default(name string) (*Profile, error) {
	return Parse(defaultConfigData, name)
}

// Parse decodes a TOML configuration and returns the named profile,
// or the `default` one when name is empty.
func Parse(data []byte, name string) (*Profile, error) {
	var conf Config
	if _, err := toml.Decode(string(data), &conf); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	if name == "" {
		if conf.Default == "" {
			return nil, errors.New("`default` key is missing or empty in config")
		}
		name = conf.Default
	}

	for i := range conf.Profile {
		if conf.Profile[i].Name == name {
			p := conf.Profile[i]
			if err := p.Validate(); err != nil {
				return nil, err
			}
			return &p, nil
		}
	}
	return nil, fmt.Errorf("profile %q not found in profile array", name)
}

// Validate checks the profile fields.
func (p *Profile) Validate() error {
	if p.LoopRateCount <= 0 {
		return fmt.Errorf("profile %q has invalid loop_rate_count: %d (must be positive)", p.Name, p.LoopRateCount)
	}
	if p.PLLRatio <= 0 {
		return fmt.Errorf("profile %q has invalid pll_ratio: %d (must be positive)", p.Name, p.PLLRatio)
	}
	if p.PPMRange <= 0 {
		return fmt.Errorf("profile %q has invalid ppm_range: %d (must be positive)", p.Name, p.PPMRange)
	}
	if p.LockCount < 0 {
		return fmt.Errorf("profile %q has invalid lock_count: %d", p.Name, p.LockCount)
	}
	if p.TargetHz <= 0 {
		return fmt.Errorf("profile %q has invalid target_hz: %v (must be positive)", p.Name, p.TargetHz)
	}
	if p.Synth.InputHz <= 0 {
		return fmt.Errorf("profile %q has invalid synth input_hz: %v (must be positive)", p.Name, p.Synth.InputHz)
	}
	if p.LUT.MaxDenominator < 2 || p.LUT.MaxDenominator > 256 {
		return fmt.Errorf("profile %q has invalid lut max_denominator: %d (must be 2..256)", p.Name, p.LUT.MaxDenominator)
	}

	switch p.Actuator {
	case ActuatorLUT:
	case ActuatorSDM:
		if _, err := sdm.New(p.SDM.Order, p.SDM.Levels, p.SDM.StepBits); err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
		if p.SDM.IntervalUs <= 0 {
			return fmt.Errorf("profile %q has invalid sdm interval_us: %d (must be positive)", p.Name, p.SDM.IntervalUs)
		}
	default:
		return fmt.Errorf("profile %q has unknown actuator %q (must be %q or %q)", p.Name, p.Actuator, ActuatorLUT, ActuatorSDM)
	}
	return nil
}

// Params returns the loop parameters with the gains in 15Q16.
func (p *Profile) Params() pll.Params {
	return pll.Params{
		Kp:             fixed.Q16(p.Kp),
		Ki:             fixed.Q16(p.Ki),
		LoopRateCount:  p.LoopRateCount,
		PLLRatio:       p.PLLRatio,
		RefExpectedInc: p.RefExpectedInc,
		PPMRange:       p.PPMRange,
		LockCount:      p.LockCount,
	}
}

// RefHz returns the nominal reference edge rate.
func (p *Profile) RefHz() float64 {
	return p.TargetHz / float64(p.PLLRatio)
}

// SDMInterval returns the modulator update period.
func (p *Profile) SDMInterval() time.Duration {
	return time.Duration(p.SDM.IntervalUs) * time.Microsecond
}
