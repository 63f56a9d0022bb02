package source

import (
	"errors"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// fakeCapture records how it is accessed. Every call holds the session for a
// short while so overlapping callers are likely to be observed.
type fakeCapture struct {
	frame  gocv.Mat
	fps    float64
	opened bool

	inUse      atomic.Int32
	overlaps   atomic.Int32
	closed     atomic.Bool
	afterClose atomic.Int32
	grabbed    atomic.Int64
	reads      atomic.Int64
	fail       atomic.Bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		frame:  gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3),
		fps:    30,
		opened: true,
	}
}

func (f *fakeCapture) enter() {
	if f.closed.Load() {
		f.afterClose.Add(1)
	}
	if f.inUse.Add(1) > 1 {
		f.overlaps.Add(1)
	}
	time.Sleep(50 * time.Microsecond)
}

func (f *fakeCapture) exit() {
	f.inUse.Add(-1)
}

func (f *fakeCapture) Grab(skip int) {
	f.enter()
	defer f.exit()
	f.grabbed.Add(int64(skip))
}

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	f.enter()
	defer f.exit()
	f.reads.Add(1)
	if f.fail.Load() {
		return false
	}
	f.frame.CopyTo(m)
	return true
}

func (f *fakeCapture) Get(prop gocv.VideoCaptureProperties) float64 {
	return f.fps
}

func (f *fakeCapture) IsOpened() bool {
	return f.opened
}

func (f *fakeCapture) Close() error {
	f.enter()
	defer f.exit()
	f.closed.Store(true)
	return nil
}

// opener returns an openFunc that always hands out c, counting the opens.
func opener(c *fakeCapture, opens *atomic.Int32) openFunc {
	return func(device interface{}) (capture, error) {
		if opens != nil {
			opens.Add(1)
		}
		c.closed.Store(false)
		return c, nil
	}
}

func failingOpener(device interface{}) (capture, error) {
	return nil, errors.New("connection refused")
}
