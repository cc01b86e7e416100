// Package emu provides the virtual-time core of the emulator: the master
// clock value, fixed-frequency views of it, and the sync-point scheduler
// that drives every timing-sensitive device.
package emu

import (
	"log"
	"math"
)

// VTime is an instant on the emulation's master clock, counted in master
// ticks since power-on. It is independent of wall-clock time. All arithmetic
// is integer, so replaying the same register accesses at the same times
// always produces the same results.
type VTime uint64

// Duration is a span of virtual time in master ticks.
type Duration uint64

// TimeInfinity is a time that is never reached.
const TimeInfinity VTime = math.MaxUint64

// Freq defines the type of frequency, in Hz.
type Freq uint64

// Defines the unit of frequency.
const (
	Hz  Freq = 1
	KHz Freq = 1000
	MHz Freq = 1000 * 1000
)

// MainFreq is the frequency of the master clock. It is chosen so that the
// clock rates the devices care about (1 kHz and 1 MHz delay steps, the 5 Hz
// disk rotation) divide it exactly.
const MainFreq = 3456 * MHz

// Add returns the time d master ticks after t.
func (t VTime) Add(d Duration) VTime {
	return t + VTime(d)
}

// Sub returns the duration from earlier to t. Asking for a negative span is
// a programming error.
func (t VTime) Sub(earlier VTime) Duration {
	if earlier > t {
		log.Panicf("time %d is earlier than %d", t, earlier)
	}
	return Duration(t - earlier)
}

// Before returns true if t is strictly earlier than other.
func (t VTime) Before(other VTime) bool {
	return t < other
}

// Seconds converts the time to seconds for presentation only. It must never
// feed back into timing decisions.
func (t VTime) Seconds() float64 {
	return float64(t) / float64(MainFreq)
}

// Period returns the duration between two consecutive ticks at this
// frequency, in master ticks.
func (f Freq) Period() Duration {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}
	return Duration(MainFreq / f)
}

// NTicks returns the duration of n ticks at this frequency.
func (f Freq) NTicks(n uint64) Duration {
	return Duration(n) * f.Period()
}

// TicksIn returns the number of complete ticks at this frequency that fit
// in d.
func (f Freq) TicksIn(d Duration) uint64 {
	return uint64(d / f.Period())
}
