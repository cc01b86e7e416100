package emu

// A Clock is a fixed-frequency view of the master clock with a movable
// origin. Devices use it to derive time-based signals lazily: instead of
// storing "DRQ is asserted", they store the origin of the relevant delay and
// recompute "enough ticks have passed" on every query. Peek and read paths
// must both go through TicksTill so the two can never disagree.
type Clock struct {
	origin VTime
	freq   Freq
}

// NewClock creates a Clock at the given frequency with its origin at start.
func NewClock(freq Freq, start VTime) Clock {
	return Clock{origin: start, freq: freq}
}

// TicksTill returns the number of complete ticks of this clock between the
// origin and now.
func (c *Clock) TicksTill(now VTime) uint64 {
	return c.freq.TicksIn(now.Sub(c.origin))
}

// Advance moves the origin to now. The next TicksTill counts from here.
func (c *Clock) Advance(now VTime) {
	c.origin = now
}

// Origin returns the current origin of the clock.
func (c *Clock) Origin() VTime {
	return c.origin
}

// Freq returns the frequency of the clock.
func (c *Clock) Freq() Freq {
	return c.freq
}

// SetOrigin restores a previously saved origin. It exists for snapshot
// loading only.
func (c *Clock) SetOrigin(t VTime) {
	c.origin = t
}
