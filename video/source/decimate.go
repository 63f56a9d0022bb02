package source

import "math"

// Decimator computes how many frames of a fixed-rate source to skip so the
// accepted frames arrive at a lower target rate. The fractional part lost to
// rounding is carried into the next call, so the long-run ratio is exact.
type Decimator struct {
	Native float64
	Target float64

	carry float64
}

func NewDecimator(native, target float64) *Decimator {
	return &Decimator{Native: native, Target: target}
}

// Active reports whether the source needs decimating at all.
func (d *Decimator) Active() bool {
	return d.Target > 0 && d.Target < d.Native
}

// Next returns the number of frames to discard before the next accepted frame.
func (d *Decimator) Next() int {
	if !d.Active() {
		return 0
	}
	drop := d.Native/d.Target - 1 + d.carry
	skip := math.Round(drop)
	d.carry = drop - skip
	if skip < 0 {
		return 0
	}
	return int(skip)
}

// Carry returns the fractional frame count owed to the next call.
func (d *Decimator) Carry() float64 {
	return d.carry
}
