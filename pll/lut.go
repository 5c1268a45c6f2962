package pll

import "fmt"

// DefaultLockCount is the number of consecutive in-range updates required
// before the loop reports Locked.
const DefaultLockCount = 10

// Saturation tells whether an actuator request landed inside its range.
type Saturation int

const (
	InRange Saturation = iota
	SaturatedLow
	SaturatedHigh
)

// LockStatus is the tri-state lock indicator.
type LockStatus int

const (
	UnlockedLow  LockStatus = -1
	Locked       LockStatus = 0
	UnlockedHigh LockStatus = 1
)

func (s LockStatus) String() string {
	switch s {
	case UnlockedLow:
		return "UNLOCKED LOW"
	case Locked:
		return "LOCKED"
	case UnlockedHigh:
		return "UNLOCKED HIGH"
	}
	return fmt.Sprintf("LockStatus(%d)", int(s))
}

// Lock derives lock status from a stream of actuator saturation reports.
// A single out-of-range update drops the lock; Dwell consecutive in-range
// updates are needed to regain it.
type Lock struct {
	Status    LockStatus
	Countdown int
	Dwell     int
}

// NewLock returns a lock detector in the unlocked state.
func NewLock(dwell int) Lock {
	l := Lock{Dwell: dwell}
	l.Reset()
	return l
}

// Reset restarts the dwell countdown and reports UnlockedLow.
func (l *Lock) Reset() {
	l.Countdown = l.Dwell
	l.Status = UnlockedLow
}

// Observe updates the lock state with the outcome of one control update.
func (l *Lock) Observe(sat Saturation) LockStatus {
	switch sat {
	case SaturatedLow:
		l.Countdown = l.Dwell
		l.Status = UnlockedLow
	case SaturatedHigh:
		l.Countdown = l.Dwell
		l.Status = UnlockedHigh
	default:
		if l.Countdown > 0 {
			// keep the last unlocked direction until the streak completes
			l.Countdown--
		} else {
			l.Status = Locked
		}
	}
	return l.Status
}

// LUT maps a control signal onto a table of fractional divider settings
// ordered by output frequency.
type LUT struct {
	Table        []int16
	NominalIndex int
	CurrentValue int16
}

// NewLUT validates the table and nominal index.
func NewLUT(table []int16, nominalIndex int) (LUT, error) {
	if len(table) == 0 {
		return LUT{}, fmt.Errorf("empty lookup table")
	}
	if nominalIndex < 0 || nominalIndex >= len(table) {
		return LUT{}, fmt.Errorf("nominal index %d outside lookup table of %d entries", nominalIndex, len(table))
	}
	return LUT{
		Table:        table,
		NominalIndex: nominalIndex,
		CurrentValue: table[nominalIndex],
	}, nil
}

// Select picks the table entry for a control signal. A positive control
// signal moves towards lower indices. Requests beyond either end saturate.
func (l *LUT) Select(control int32) (int16, Saturation) {
	index := int64(l.NominalIndex) - int64(control)
	sat := InRange
	switch {
	case index < 0:
		index = 0
		sat = SaturatedLow
	case index >= int64(len(l.Table)):
		index = int64(len(l.Table) - 1)
		sat = SaturatedHigh
	}
	l.CurrentValue = l.Table[index]
	return l.CurrentValue, sat
}
