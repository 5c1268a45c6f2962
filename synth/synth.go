package synth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/sergev/swpll/appll"
)

// Register identifies one of the synthesizer registers reachable through a bridge.
type Register uint8

const (
	RegPLLControl   Register = 1 // PLL control: F, R, OD dividers and enable bit
	RegFracDivider  Register = 2 // fractional-N divider: enable bit, f, p
	RegClockDivider Register = 3 // output clock divider
)

func (r Register) String() string {
	switch r {
	case RegPLLControl:
		return "pll-ctl"
	case RegFracDivider:
		return "frac-n"
	case RegClockDivider:
		return "clk-div"
	}
	return fmt.Sprintf("reg%d", uint8(r))
}

// ErrBadRegister is returned by bridges for register ids they do not know.
var ErrBadRegister = errors.New("unknown synthesizer register")

// LockDelay is how long the synthesizer needs to settle after Init.
var LockDelay = 10 * time.Millisecond

// RegisterWriter is the register access a bridge device provides.
type RegisterWriter interface {
	// WriteRegister writes a register and waits for the device to acknowledge it.
	WriteRegister(reg Register, val uint32) error

	// WriteRegisterNoAck queues a register write and returns immediately.
	WriteRegisterNoAck(reg Register, val uint32)
}

//go:generate mockgen -destination=../mocks/synth.go -package=mocks github.com/sergev/swpll/synth Synthesizer,RegisterWriter

// Synthesizer is the single write path used by the control loop and the
// modulator. Writes are fire-and-forget.
type Synthesizer interface {
	WriteFractional(val uint32)
}

// Init brings the synthesizer up at its nominal fractional setting.
//
// The control register has to be written with the PLL disabled, then enabled
// twice so the F and R dividers are captured on a running clock, then
// disabled and re-enabled again to get the full reset time with the final
// divider values. Only then are the fractional and output dividers set.
func Init(w RegisterWriter, ctl, div uint32, nominalFrac uint16) error {
	sequence := []struct {
		reg Register
		val uint32
	}{
		{RegPLLControl, ctl &^ appll.CtlEnable},
		{RegPLLControl, ctl},
		{RegPLLControl, ctl},
		{RegPLLControl, ctl &^ appll.CtlEnable},
		{RegPLLControl, ctl},
		{RegFracDivider, appll.FracEnable | uint32(nominalFrac)},
		{RegClockDivider, div},
	}
	for _, s := range sequence {
		if err := w.WriteRegister(s.reg, s.val); err != nil {
			return fmt.Errorf("failed to write %v register: %w", s.reg, err)
		}
	}
	glog.Infof("Synthesizer initialized: ctl=0x%08x div=0x%08x frac=0x%04x", ctl, div, nominalFrac)

	// Wait for the PLL to lock
	time.Sleep(LockDelay)
	return nil
}

// Device routes fractional register updates to a bridge without waiting for
// acknowledgment.
type Device struct {
	w RegisterWriter
}

// NewDevice wraps a register writer as a Synthesizer.
func NewDevice(w RegisterWriter) *Device {
	return &Device{w: w}
}

// WriteFractional writes the fractional-N divider register.
func (d *Device) WriteFractional(val uint32) {
	if glog.V(2) {
		glog.Infof("[frac-write]: 0x%08x", val)
	}
	d.w.WriteRegisterNoAck(RegFracDivider, val)
}
