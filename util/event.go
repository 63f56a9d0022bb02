package util

import (
	"sync"
	"time"
)

// Event is a one-shot broadcast flag. It starts unset and transitions to set
// exactly once; every goroutine waiting on it is released at that moment.
type Event struct {
	notified bool
	l        sync.Mutex
	c        chan struct{}
}

func NewEvent() *Event {
	return &Event{
		c: make(chan struct{}),
	}
}

// Notify sets the event. Calls after the first are no-ops.
func (e *Event) Notify() {
	e.l.Lock()
	defer e.l.Unlock()
	if !e.notified {
		e.notified = true
		close(e.c)
	}
}

func (e *Event) Wait() {
	<-e.c
}

// WaitTimeout blocks until the event is set or d elapses. It reports whether
// the event was set.
func (e *Event) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return e.HasBeenNotified()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.c:
		return true
	case <-t.C:
		return false
	}
}

// Done returns a channel that is closed once the event is set.
func (e *Event) Done() <-chan struct{} {
	return e.c
}

func (e *Event) HasBeenNotified() bool {
	e.l.Lock()
	defer e.l.Unlock()
	return e.notified
}
