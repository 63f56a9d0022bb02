package dispatch

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"camstream/metrics"
	"camstream/util"
	"camstream/video/source"
)

// PollInterval bounds how long an idle worker waits on the queue before
// checking the stop event again.
const PollInterval = time.Second

// Action processes one frame. The frame is closed by the pool once the action
// returns, so an action must not retain it. A returned error or a panic is
// logged and counted; the worker carries on with the next frame.
type Action func(img *source.Image) error

// WorkerCount sizes the pool for the given capture rate: one worker per frame
// per second, or 10 when the rate is uncapped.
func WorkerCount(fps float64) int {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return 10
	}
	return int(math.Ceil(fps))
}

// Pool runs a fixed number of workers that take frames from a Queue and hand
// each to the Action exactly once.
type Pool struct {
	q      *Queue
	n      int
	action Action
	stop   *util.Event

	done []chan struct{}
}

func NewPool(q *Queue, n int, action Action, stop *util.Event) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{
		q:      q,
		n:      n,
		action: action,
		stop:   stop,
	}
}

func (p *Pool) Size() int {
	return p.n
}

func (p *Pool) Start() {
	log.Infof("Starting %d dispatch workers", p.n)
	for i := 0; i < p.n; i++ {
		done := make(chan struct{})
		p.done = append(p.done, done)
		go func(id int) {
			defer close(done)
			p.work(id)
		}(i)
	}
}

func (p *Pool) work(id int) {
	wlog := log.WithField("worker", id)
	wlog.Debug("Worker started")
	for {
		img, ok := p.q.Get(PollInterval)
		if !ok {
			if p.stop.HasBeenNotified() {
				wlog.Debug("Worker exiting")
				return
			}
			continue
		}
		p.run(wlog, img)
	}
}

func (p *Pool) run(wlog *log.Entry, img *source.Image) {
	start := time.Now()
	defer img.Close()

	flog := wlog.WithField("captured", img.Time.Format(time.RFC3339Nano))
	if err := p.invoke(img); err != nil {
		metrics.Dispatched.WithLabelValues("error").Inc()
		flog.Errorf("Dispatch failed: %v", err)
	} else {
		metrics.Dispatched.WithLabelValues("ok").Inc()
	}
	d := time.Since(start)
	metrics.DispatchSeconds.Observe(d.Seconds())
	flog.Debugf("Dispatch took %v", d)
}

func (p *Pool) invoke(img *source.Image) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in dispatch action: %v", r)
		}
	}()
	return p.action(img)
}

// Join waits for the workers to exit, sharing a single deadline between all of
// them. It returns the number of workers still running when the deadline
// passed.
func (p *Pool) Join(timeout time.Duration) int {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for i, done := range p.done {
		select {
		case <-done:
		case <-deadline.C:
			stragglers := 0
			for _, d := range p.done[i:] {
				select {
				case <-d:
				default:
					stragglers++
				}
			}
			log.Warnf("%d dispatch workers did not exit within %v", stragglers, timeout)
			return stragglers
		}
	}
	log.Debug("All dispatch workers exited")
	return 0
}
