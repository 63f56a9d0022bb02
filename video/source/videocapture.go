package source

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// capture is the subset of gocv.VideoCapture used by the sources. It exists so
// tests can substitute a fake session.
type capture interface {
	// Grab advances the session by skip frames without decoding them.
	Grab(skip int)
	// Read advances and decodes the next frame into m.
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	IsOpened() bool
	Close() error
}

type openFunc func(device interface{}) (capture, error)

func openVideoCapture(device interface{}) (capture, error) {
	c, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// connect opens a session and verifies that it is usable.
func connect(open openFunc, device interface{}) (capture, error) {
	c, err := open(device)
	if err != nil {
		return nil, errors.Wrapf(ErrConnection, "%v: %v", device, err)
	}
	if !c.IsOpened() {
		c.Close()
		return nil, errors.Wrapf(ErrConnection, "%v: session not opened", device)
	}
	return c, nil
}

// read decodes one frame from c.
func read(c capture) (*Image, error) {
	i := NewImage()
	if ok := c.Read(&i.Mat); !ok || i.Mat.Empty() {
		i.Close()
		return nil, ErrReadFailed
	}
	i.Time = time.Now()
	return i, nil
}

// VideoCapture reads directly from a local capture device such as a USB
// webcam. Devices do not buffer on behalf of the caller, so each Grab returns
// a fresh frame.
type VideoCapture struct {
	Device int

	cap capture
	l   sync.Mutex
}

func NewVideoCapture(device int) (*VideoCapture, error) {
	return newVideoCapture(device, openVideoCapture)
}

func newVideoCapture(device int, open openFunc) (*VideoCapture, error) {
	c, err := connect(open, device)
	if err != nil {
		return nil, err
	}
	log.WithField("device", device).Debugf("Opened capture device")
	return &VideoCapture{
		Device: device,
		cap:    c,
	}, nil
}

func (v *VideoCapture) Grab() (*Image, error) {
	v.l.Lock()
	defer v.l.Unlock()
	if v.cap == nil {
		return nil, ErrReleased
	}
	start := time.Now()
	i, err := read(v.cap)
	if err != nil {
		return nil, errors.Wrapf(err, "device %d", v.Device)
	}
	log.Debugf("Read frame from device %d in %v", v.Device, time.Since(start))
	return i, nil
}

func (v *VideoCapture) Release() {
	v.l.Lock()
	defer v.l.Unlock()
	if v.cap != nil {
		v.cap.Close()
		v.cap = nil
	}
}
