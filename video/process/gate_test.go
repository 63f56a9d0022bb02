package process

import (
	"testing"
	"time"
)

const (
	postMotion = time.Second
	maxSilence = 5 * time.Second
)

func at(start time.Time, secs float64) time.Time {
	return start.Add(time.Duration(secs * float64(time.Second)))
}

func TestMotionGateTimeline(t *testing.T) {
	start := time.Unix(1700000000, 0)

	// Frames inside the post-motion window are accepted.
	g := NewMotionGate(postMotion, maxSilence, start)
	if d := g.Evaluate(start, true); d != Motion {
		t.Fatalf("t=0: got %v, want motion", d)
	}
	for _, s := range []float64{0.1, 0.5, 0.99} {
		if d := g.Evaluate(at(start, s), false); d != PostMotion {
			t.Errorf("t=%v: got %v, want post_motion", s, d)
		}
	}

	// Without the trailing frames, the silence timer runs from t=0.
	g = NewMotionGate(postMotion, maxSilence, start)
	g.Evaluate(start, true)
	for _, s := range []float64{1.0, 1.5, 2, 3, 4, 4.99} {
		if d := g.Evaluate(at(start, s), false); d != Reject {
			t.Errorf("t=%v: got %v, want reject", s, d)
		}
	}
	if d := g.Evaluate(at(start, 5.0), false); d != Heartbeat {
		t.Errorf("t=5: got %v, want heartbeat", d)
	}
	// The heartbeat restarts the silence timer.
	if d := g.Evaluate(at(start, 6.0), false); d != Reject {
		t.Errorf("t=6: got %v, want reject", d)
	}
	if d := g.Evaluate(at(start, 10.0), false); d != Heartbeat {
		t.Errorf("t=10: got %v, want heartbeat", d)
	}
}

func TestMotionGateMotionAlwaysAccepted(t *testing.T) {
	start := time.Unix(1700000000, 0)
	g := NewMotionGate(postMotion, maxSilence, start)
	for i := 0; i < 20; i++ {
		if d := g.Evaluate(at(start, float64(i)*0.05), true); d != Motion {
			t.Fatalf("frame %d: got %v, want motion", i, d)
		}
	}
}

func TestMotionGateNoMotionBeforeSilence(t *testing.T) {
	start := time.Unix(1700000000, 0)
	g := NewMotionGate(postMotion, maxSilence, start)
	if d := g.Evaluate(at(start, 0.5), false); d != Reject {
		t.Errorf("got %v, want reject before any motion", d)
	}
	if d := g.Evaluate(at(start, 5), false); d != Heartbeat {
		t.Errorf("got %v, want heartbeat after silence", d)
	}
}

func TestMotionGateSetWindows(t *testing.T) {
	start := time.Unix(1700000000, 0)
	g := NewMotionGate(postMotion, maxSilence, start)
	g.Evaluate(start, true)
	g.SetWindows(3*time.Second, maxSilence)
	if d := g.Evaluate(at(start, 2), false); d != PostMotion {
		t.Errorf("got %v, want post_motion with widened window", d)
	}
	if p, m := g.Windows(); p != 3*time.Second || m != maxSilence {
		t.Errorf("Windows() = %v, %v", p, m)
	}
}

func TestDecidePriority(t *testing.T) {
	for _, c := range []struct {
		motion                    bool
		sinceMotion, sinceForward time.Duration
		want                      Decision
	}{
		{true, 0, 10 * time.Second, Motion},
		{false, 500 * time.Millisecond, 10 * time.Second, PostMotion},
		{false, 2 * time.Second, 5 * time.Second, Heartbeat},
		{false, 2 * time.Second, 4 * time.Second, Reject},
	} {
		if got := Decide(c.motion, c.sinceMotion, c.sinceForward, postMotion, maxSilence); got != c.want {
			t.Errorf("Decide(%v, %v, %v) = %v, want %v", c.motion, c.sinceMotion, c.sinceForward, got, c.want)
		}
		if got := c.want.Accepted(); got != (c.want != Reject) {
			t.Errorf("%v.Accepted() = %v", c.want, got)
		}
	}
}
