package sink

import (
	"camstream/video/source"
)

// Sink receives a copy of frames as they pass through the capture loop, such
// as a live preview.
type Sink interface {
	// Put offers an image to the sink. The caller keeps ownership; a sink
	// that needs the pixels after Put returns must copy them.
	Put(input *source.Image)

	// Close should be called to finalize the Sink.
	Close()
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) Put(*source.Image) {}
func (Discard) Close()            {}

// Tee forwards every frame to each of its sinks in order.
type Tee []Sink

func (t Tee) Put(input *source.Image) {
	for _, s := range t {
		s.Put(input)
	}
}

func (t Tee) Close() {
	for _, s := range t {
		s.Close()
	}
}
