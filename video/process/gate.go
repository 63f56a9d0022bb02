package process

import (
	"sync"
	"time"
)

// Decision is the outcome of the motion gate for one frame.
type Decision int

const (
	Reject Decision = iota
	// Motion: motion was detected in this frame.
	Motion
	// PostMotion: still inside the hold window after the last motion.
	PostMotion
	// Heartbeat: nothing has been forwarded for the maximum silence interval.
	Heartbeat
)

func (d Decision) Accepted() bool {
	return d != Reject
}

func (d Decision) String() string {
	switch d {
	case Motion:
		return "motion"
	case PostMotion:
		return "post_motion"
	case Heartbeat:
		return "heartbeat"
	}
	return "reject"
}

// Decide applies the gate rules in priority order.
func Decide(motionNow bool, sinceMotion, sinceForward, postMotion, maxSilence time.Duration) Decision {
	switch {
	case motionNow:
		return Motion
	case sinceMotion < postMotion:
		return PostMotion
	case sinceForward >= maxSilence:
		return Heartbeat
	}
	return Reject
}

// MotionGate tracks the timers Decide needs. Evaluate must be called in frame
// acquisition order.
type MotionGate struct {
	postMotion time.Duration
	maxSilence time.Duration

	lastMotion  time.Time
	lastForward time.Time

	l sync.Mutex
}

// NewMotionGate creates a gate whose silence timer starts at start.
func NewMotionGate(postMotion, maxSilence time.Duration, start time.Time) *MotionGate {
	return &MotionGate{
		postMotion:  postMotion,
		maxSilence:  maxSilence,
		lastForward: start,
	}
}

// SetWindows changes the post-motion window and maximum silence interval.
func (g *MotionGate) SetWindows(postMotion, maxSilence time.Duration) {
	g.l.Lock()
	defer g.l.Unlock()
	g.postMotion = postMotion
	g.maxSilence = maxSilence
}

func (g *MotionGate) Windows() (postMotion, maxSilence time.Duration) {
	g.l.Lock()
	defer g.l.Unlock()
	return g.postMotion, g.maxSilence
}

// Evaluate decides whether the frame observed at now is forwarded. Motion
// resets the motion timer; any accepted frame resets the silence timer.
func (g *MotionGate) Evaluate(now time.Time, motionNow bool) Decision {
	g.l.Lock()
	defer g.l.Unlock()

	sinceMotion := time.Duration(1<<63 - 1)
	if !g.lastMotion.IsZero() {
		sinceMotion = now.Sub(g.lastMotion)
	}
	d := Decide(motionNow, sinceMotion, now.Sub(g.lastForward), g.postMotion, g.maxSilence)
	if d == Motion {
		g.lastMotion = now
	}
	if d.Accepted() {
		g.lastForward = now
	}
	return d
}
