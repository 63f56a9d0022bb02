package source

import (
	"math"
	"testing"
)

func TestDecimatorConvergesToExactRatio(t *testing.T) {
	d := NewDecimator(30, 7)
	const accepted = 700
	consumed := 0
	for i := 0; i < accepted; i++ {
		consumed += d.Next() + 1
	}
	spacing := float64(consumed) / accepted
	want := 30.0 / 7.0
	if math.Abs(spacing-want) > 0.01 {
		t.Errorf("average spacing %.4f, want %.4f", spacing, want)
	}
	if math.Abs(d.Carry()) > 0.5 {
		t.Errorf("carry %.3f out of range", d.Carry())
	}
}

func TestDecimatorInactive(t *testing.T) {
	for _, c := range []struct {
		native, target float64
	}{
		{30, 0},
		{30, 30},
		{15, 30},
	} {
		d := NewDecimator(c.native, c.target)
		if d.Active() {
			t.Errorf("%v/%v should be inactive", c.native, c.target)
		}
		if n := d.Next(); n != 0 {
			t.Errorf("%v/%v skipped %d frames", c.native, c.target, n)
		}
	}
}

func TestDecimatorIntegerRatio(t *testing.T) {
	d := NewDecimator(30, 10)
	for i := 0; i < 10; i++ {
		if n := d.Next(); n != 2 {
			t.Fatalf("call %d skipped %d frames, want 2", i, n)
		}
	}
}
