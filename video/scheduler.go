package video

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"camstream/dispatch"
	"camstream/metrics"
	"camstream/util"
	"camstream/video/process"
	"camstream/video/sink"
	"camstream/video/source"
)

// DefaultGrabBackoff is how long the loop waits after a failed read.
const DefaultGrabBackoff = 100 * time.Millisecond

// Detector reports whether a frame shows motion. Implemented by
// process.MotionDetector.
type Detector interface {
	Detect(input gocv.Mat) bool
}

type SchedulerOptions struct {
	// FPS is the target capture rate. Zero captures as fast as the source
	// allows.
	FPS float64

	// Crop, if set, is applied before motion detection.
	Crop *process.CropRegion

	// Width and Height resize forwarded frames, see process.ResizeTarget.
	Width, Height int

	GrabBackoff time.Duration
}

// Scheduler pulls frames from a Source at a fixed cadence, filters them
// through the motion gate and queues the survivors for dispatch.
type Scheduler struct {
	Source source.Source
	Queue  *dispatch.Queue

	// Detector and Gate are both required for motion gating; when either is
	// nil every frame is forwarded.
	Detector Detector
	Gate     *process.MotionGate

	// Raw receives every grabbed frame after cropping, Accepted every frame
	// put on the queue. Either may be nil.
	Raw, Accepted sink.Sink

	opts SchedulerOptions
}

func NewScheduler(src source.Source, q *dispatch.Queue, opts SchedulerOptions) *Scheduler {
	if opts.GrabBackoff <= 0 {
		opts.GrabBackoff = DefaultGrabBackoff
	}
	if opts.FPS < 0 {
		opts.FPS = 0
	}
	return &Scheduler{
		Source: src,
		Queue:  q,
		opts:   opts,
	}
}

// Period returns the target time per cycle, or zero when uncapped.
func (s *Scheduler) Period() time.Duration {
	if s.opts.FPS == 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / s.opts.FPS)
}

// Run captures frames until stop is set or the source is exhausted. It
// returns nil on stop and an error wrapping source.ErrExhausted when a finite
// source runs dry.
func (s *Scheduler) Run(stop *util.Event) error {
	period := s.Period()
	if period == 0 {
		log.Info("FPS set to 0. Using maximum stream rate")
	} else {
		log.Infof("Capturing at %.2f FPS (one frame every %v)", s.opts.FPS, period)
	}

	for !stop.HasBeenNotified() {
		start := time.Now()

		err := s.cycle()
		if errors.Is(err, source.ErrExhausted) {
			log.Info("Source has no more frames")
			return err
		}
		if err != nil {
			metrics.GrabFailures.Inc()
			log.Warnf("Failed to grab frame: %v", err)
			if stop.WaitTimeout(s.opts.GrabBackoff) {
				break
			}
			continue
		}

		elapsed := time.Since(start)
		metrics.CycleSeconds.Observe(elapsed.Seconds())
		if period == 0 {
			continue
		}
		if elapsed > period {
			metrics.Backpressure.Inc()
			log.WithField("queue", s.Queue.Len()).Warnf(
				"Capture cycle took %v, longer than the %v frame period; cannot keep up with %.2f FPS",
				elapsed, period, s.opts.FPS)
			continue
		}
		if stop.WaitTimeout(period - elapsed) {
			break
		}
	}
	log.Info("Capture loop stopped")
	return nil
}

// cycle grabs and processes one frame.
func (s *Scheduler) cycle() error {
	img, err := s.Source.Grab()
	if err != nil {
		return err
	}
	if img.Empty() {
		img.Close()
		return source.ErrReadFailed
	}
	metrics.FramesGrabbed.Inc()
	log.Debugf("Grabbed %v frame", img.Size())

	if s.opts.Crop != nil {
		img = process.Crop(img, *s.opts.Crop)
	}
	if s.Raw != nil {
		s.Raw.Put(img)
	}

	if s.Detector != nil && s.Gate != nil {
		d := s.Gate.Evaluate(img.Time, s.Detector.Detect(img.Mat))
		metrics.GateDecisions.WithLabelValues(d.String()).Inc()
		if !d.Accepted() {
			log.Debug("No motion, dropping frame")
			img.Close()
			return nil
		}
		log.Debugf("Forwarding frame (%v)", d)
	}

	img = process.Resize(img, s.opts.Width, s.opts.Height)
	if s.Accepted != nil {
		s.Accepted.Put(img)
	}
	s.Queue.Put(img)
	return nil
}
