package process

import (
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"camstream/video/source"
)

// ResizeTarget computes the output size for a frame of size src. A zero width
// or height is derived from the other dimension, preserving the aspect ratio.
// Both zero means no resize and returns src. A derived dimension is never
// less than one pixel.
func ResizeTarget(src image.Point, width, height int) image.Point {
	if width == 0 && height == 0 {
		return src
	}
	out := image.Point{X: width, Y: height}
	if width <= 0 {
		out.X = atLeastOne(float64(src.X) * float64(height) / float64(src.Y))
	}
	if height <= 0 {
		out.Y = atLeastOne(float64(src.Y) * float64(width) / float64(src.X))
	}
	return out
}

func atLeastOne(n float64) int {
	if n < 1 {
		return 1
	}
	return int(n)
}

// Resize scales input to the requested width and height, see ResizeTarget.
// When a resize happens the input is closed and a new image returned;
// otherwise input itself is returned.
func Resize(input *source.Image, width, height int) *source.Image {
	src := input.Size()
	dst := ResizeTarget(src, width, height)
	if dst == src {
		return input
	}
	log.Debugf("Resizing from %v to %v", src, dst)
	out := &source.Image{
		Mat:  gocv.NewMat(),
		Time: input.Time,
	}
	gocv.Resize(input.Mat, &out.Mat, dst, 0, 0, gocv.InterpolationLinear)
	input.Close()
	return out
}
