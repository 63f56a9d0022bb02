package source

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrConnection is returned when a capture session cannot be opened.
	ErrConnection = errors.New("unable to open capture session")
	// ErrReadFailed is returned when a single read yields no frame. It is
	// transient; the caller may retry.
	ErrReadFailed = errors.New("could not read frame")
	// ErrExhausted is returned by finite sources once no frames remain.
	ErrExhausted = errors.New("source exhausted")
	// ErrReleased is returned by Grab after Release.
	ErrReleased = errors.New("source released")
)

// Image is a single decoded frame together with the time it was captured.
// An Image is owned by exactly one stage of the pipeline at a time; whoever
// holds it last must Close it.
type Image struct {
	Mat    gocv.Mat
	Time   time.Time
	closed bool
}

func (i *Image) Close() {
	if i.closed {
		panic("image already closed")
	}
	i.closed = true
	i.Mat.Close()
}

func (i *Image) Clone() *Image {
	return &Image{
		Mat:  i.Mat.Clone(),
		Time: i.Time,
	}
}

// Size returns the frame dimensions as (width, height).
func (i *Image) Size() image.Point {
	return image.Point{X: i.Mat.Cols(), Y: i.Mat.Rows()}
}

func (i *Image) Channels() int {
	return i.Mat.Channels()
}

func (i *Image) Empty() bool {
	return i.Mat.Empty()
}

func NewImage() *Image {
	return &Image{
		Mat:  gocv.NewMat(),
		Time: time.Now(),
	}
}

// WrapMat takes ownership of m, stamping it with the current time.
func WrapMat(m gocv.Mat) *Image {
	return &Image{
		Mat:  m,
		Time: time.Now(),
	}
}

// Source produces frames on demand, such as a camera, a video file or a live
// stream.
type Source interface {
	// Grab returns the next frame. The caller owns the returned Image. A
	// failed read returns an error wrapping ErrReadFailed; finite sources
	// return ErrExhausted once drained.
	Grab() (*Image, error)

	// Release disconnects from the source and frees all resources. It is safe
	// to call more than once.
	Release()
}
