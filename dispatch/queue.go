package dispatch

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"camstream/metrics"
	"camstream/video/source"
)

// Queue is an unbounded FIFO of frames waiting for a worker. Put never blocks;
// the capture loop reports backpressure by watching Len.
type Queue struct {
	items []*source.Image
	l     sync.Mutex

	// Holds at most one pending wakeup.
	signal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Put appends img. The queue owns img until a worker takes it.
func (q *Queue) Put(img *source.Image) {
	q.l.Lock()
	q.items = append(q.items, img)
	metrics.QueueDepth.Set(float64(len(q.items)))
	q.l.Unlock()
	q.wake()
}

func (q *Queue) pop() (*source.Image, bool) {
	q.l.Lock()
	defer q.l.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	img := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	metrics.QueueDepth.Set(float64(len(q.items)))
	if len(q.items) > 0 {
		q.wake()
	}
	return img, true
}

// Get removes the oldest frame, waiting up to timeout for one to arrive.
func (q *Queue) Get(timeout time.Duration) (*source.Image, bool) {
	if img, ok := q.pop(); ok {
		return img, true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case <-q.signal:
			if img, ok := q.pop(); ok {
				return img, true
			}
		case <-t.C:
			return q.pop()
		}
	}
}

func (q *Queue) Len() int {
	q.l.Lock()
	defer q.l.Unlock()
	return len(q.items)
}

// Drain closes every frame still queued and returns how many there were.
func (q *Queue) Drain() int {
	q.l.Lock()
	items := q.items
	q.items = nil
	metrics.QueueDepth.Set(0)
	q.l.Unlock()

	for _, img := range items {
		img.Close()
	}
	if len(items) > 0 {
		log.Infof("Discarded %d undispatched frames", len(items))
	}
	return len(items)
}
