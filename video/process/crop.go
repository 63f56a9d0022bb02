package process

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"camstream/video/source"
)

// CropRegion selects part of a frame, expressed as fractions of the frame's
// width and height.
type CropRegion struct {
	X, Y, W, H float64
}

// FullFrame is the region covering the whole frame.
var FullFrame = CropRegion{X: 0, Y: 0, W: 1, H: 1}

func (r CropRegion) Validate() error {
	for _, n := range []float64{r.X, r.Y, r.W, r.H} {
		if !(n >= 0 && n <= 1) {
			return fmt.Errorf("invalid crop %v: all numbers must be between 0 and 1", r)
		}
	}
	if r.X+r.W > 1 {
		return fmt.Errorf("invalid crop %v: x+w is greater than 1", r)
	}
	if r.Y+r.H > 1 {
		return fmt.Errorf("invalid crop %v: y+h is greater than 1", r)
	}
	if r.W*r.H == 0 {
		return fmt.Errorf("invalid crop %v: width and height must both be >0", r)
	}
	return nil
}

func (r CropRegion) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", r.X, r.Y, r.W, r.H)
}

// ParseCrop parses "x,y,w,h" into a validated CropRegion.
func ParseCrop(s string) (CropRegion, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return CropRegion{}, fmt.Errorf("invalid crop %q: expected four comma separated numbers", s)
	}
	var n [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return CropRegion{}, fmt.Errorf("invalid crop %q: %v", s, err)
		}
		n[i] = f
	}
	r := CropRegion{X: n[0], Y: n[1], W: n[2], H: n[3]}
	if err := r.Validate(); err != nil {
		return CropRegion{}, err
	}
	return r, nil
}

// Rect maps the region onto a frame of the given size.
func (r CropRegion) Rect(size image.Point) image.Rectangle {
	x := int(float64(size.X) * r.X)
	y := int(float64(size.Y) * r.Y)
	return image.Rect(x, y, x+int(float64(size.X)*r.W), y+int(float64(size.Y)*r.H))
}

// Crop returns a new image holding only the region r of input. The input is
// closed.
func Crop(input *source.Image, r CropRegion) *source.Image {
	rect := r.Rect(input.Size())
	region := input.Mat.Region(rect)
	out := &source.Image{
		Mat:  region.Clone(),
		Time: input.Time,
	}
	region.Close()
	input.Close()
	return out
}
