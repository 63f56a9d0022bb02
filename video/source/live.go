package source

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultDrainFPS is the drain rate used when LiveOptions.DrainFPS is unset.
// It should be at least the nominal frame rate of the stream.
const DefaultDrainFPS = 30

type LiveOptions struct {
	// KeepOpen keeps the session open for the lifetime of the LiveCapture and
	// drains it in the background. Otherwise a session is opened for every
	// Grab and closed straight after, trading latency for idle bandwidth.
	KeepOpen bool

	// DrainFPS bounds how often the background drain advances the session.
	DrainFPS float64
}

// LiveCapture returns the most recent frame of a push-style live stream such
// as RTSP or HLS. The transport keeps a fixed queue of undecoded frames that
// cannot be flushed on demand, so reading at the caller's cadence would yield
// frames many slots stale. In KeepOpen mode a background goroutine keeps
// advancing the session without decoding, and Grab decodes whatever is
// current.
//
// The session is guarded by a single mutex; the drain loop and Grab never
// touch it concurrently, and nothing touches it after Release returns.
type LiveCapture struct {
	URI  string
	opts LiveOptions
	open openFunc

	l        sync.Mutex
	cap      capture
	released bool

	running atomic.Bool
	done    chan struct{}
}

func NewLiveCapture(uri string, opts LiveOptions) (*LiveCapture, error) {
	return newLiveCapture(uri, opts, openVideoCapture)
}

func newLiveCapture(uri string, opts LiveOptions, open openFunc) (*LiveCapture, error) {
	if opts.DrainFPS <= 0 {
		opts.DrainFPS = DefaultDrainFPS
	}
	c := &LiveCapture{
		URI:  uri,
		opts: opts,
		open: open,
		done: make(chan struct{}),
	}

	cap, err := connect(open, uri)
	if err != nil {
		return nil, err
	}

	if !opts.KeepOpen {
		// Only verifying that the stream is reachable.
		cap.Close()
		close(c.done)
		log.WithField("uri", uri).Debugf("Live capture configured to open per grab")
		return c, nil
	}

	c.cap = cap
	c.running.Store(true)
	go c.drain()
	log.WithField("uri", uri).Debugf("Live capture draining at up to %.1f FPS", opts.DrainFPS)
	return c, nil
}

func (c *LiveCapture) drain() {
	defer close(c.done)
	interval := time.Duration(float64(time.Second) / c.opts.DrainFPS)
	for c.running.Load() {
		c.l.Lock()
		if c.cap != nil {
			c.cap.Grab(1)
		}
		c.l.Unlock()
		time.Sleep(interval)
	}
}

// Grab returns the latest frame. A failed read returns ErrReadFailed; the
// session is left as is and the caller decides whether to retry.
func (c *LiveCapture) Grab() (*Image, error) {
	start := time.Now()
	c.l.Lock()
	defer c.l.Unlock()

	if c.released {
		return nil, ErrReleased
	}

	var i *Image
	var err error
	if c.opts.KeepOpen {
		i, err = read(c.cap)
	} else {
		i, err = c.readOnce()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s", c.URI)
	}
	log.Debugf("Read live frame in %v", time.Since(start))
	return i, nil
}

// readOnce opens a session, reads one frame and closes it. Requires c.l.
func (c *LiveCapture) readOnce() (*Image, error) {
	cap, err := connect(c.open, c.URI)
	if err != nil {
		return nil, err
	}
	defer cap.Close()
	return read(cap)
}

// Release stops the drain loop, closes the session and waits for the drain
// goroutine to exit.
func (c *LiveCapture) Release() {
	c.running.Store(false)

	c.l.Lock()
	if !c.released {
		c.released = true
		if c.cap != nil {
			c.cap.Close()
			c.cap = nil
		}
	}
	c.l.Unlock()

	<-c.done
}

// Wait blocks until the drain loop has exited. It returns immediately for
// captures that open per grab.
func (c *LiveCapture) Wait() {
	<-c.done
}
