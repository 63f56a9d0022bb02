package source

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// FileCapture reads frames from a video file. When the requested rate is
// lower than the file's native rate, frames are skipped so that playback
// advances in real time relative to the target rate.
type FileCapture struct {
	Path string

	cap capture
	dec *Decimator
	l   sync.Mutex
}

func NewFileCapture(path string, targetFPS float64) (*FileCapture, error) {
	return newFileCapture(path, targetFPS, openVideoCapture)
}

func newFileCapture(path string, targetFPS float64, open openFunc) (*FileCapture, error) {
	c, err := connect(open, path)
	if err != nil {
		return nil, err
	}
	native := math.Round(c.Get(gocv.VideoCaptureFPS)*100) / 100
	f := &FileCapture{
		Path: path,
		cap:  c,
		dec:  NewDecimator(native, targetFPS),
	}
	log.WithField("file", path).Debugf("Source FPS %.2f, target FPS %.2f", native, targetFPS)
	return f, nil
}

func (f *FileCapture) Grab() (*Image, error) {
	f.l.Lock()
	defer f.l.Unlock()
	if f.cap == nil {
		return nil, ErrReleased
	}

	start := time.Now()
	if skip := f.dec.Next(); skip > 0 {
		f.cap.Grab(skip)
		log.Debugf("Dropped %d frames to meet %.2f FPS target from %.2f FPS source (carry %.2f)",
			skip, f.dec.Target, f.dec.Native, f.dec.Carry())
	}

	i, err := read(f.cap)
	if err != nil {
		// A file that stops yielding frames has reached its end.
		return nil, errors.Wrapf(ErrExhausted, "%s", f.Path)
	}
	log.Debugf("Read frame from file in %v", time.Since(start))
	return i, nil
}

func (f *FileCapture) Release() {
	f.l.Lock()
	defer f.l.Unlock()
	if f.cap != nil {
		f.cap.Close()
		f.cap = nil
	}
}
