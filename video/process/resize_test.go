package process

import (
	"image"
	"testing"
)

func TestResizeTarget(t *testing.T) {
	src := image.Point{X: 200, Y: 100}
	for _, c := range []struct {
		width, height int
		want          image.Point
	}{
		{50, 0, image.Point{X: 50, Y: 25}},
		{0, 50, image.Point{X: 100, Y: 50}},
		{50, 25, image.Point{X: 50, Y: 25}},
		{30, 90, image.Point{X: 30, Y: 90}},
		{0, 0, src},
		{333, 0, image.Point{X: 333, Y: 166}},
		{1, 0, image.Point{X: 1, Y: 1}},
		{0, 1, image.Point{X: 2, Y: 1}},
	} {
		if got := ResizeTarget(src, c.width, c.height); got != c.want {
			t.Errorf("ResizeTarget(%v, %d, %d) = %v, want %v", src, c.width, c.height, got, c.want)
		}
	}
}

func TestResizeTargetPreservesAspect(t *testing.T) {
	for _, src := range []image.Point{{640, 480}, {1920, 1080}, {101, 37}} {
		for w := 1; w <= 400; w += 13 {
			got := ResizeTarget(src, w, 0)
			exact := float64(src.Y) * float64(w) / float64(src.X)
			if exact < 1 {
				continue
			}
			if d := exact - float64(got.Y); d < 0 || d >= 1 {
				t.Errorf("width %d on %v gave height %d, exact %.2f", w, src, got.Y, exact)
			}
		}
	}
}

func TestResizeTargetNeverZero(t *testing.T) {
	for _, src := range []image.Point{{200, 100}, {100, 200}, {1920, 1}, {1, 1080}} {
		for _, w := range []int{1, 2, 3} {
			if got := ResizeTarget(src, w, 0); got.X < 1 || got.Y < 1 {
				t.Errorf("ResizeTarget(%v, %d, 0) = %v", src, w, got)
			}
			if got := ResizeTarget(src, 0, w); got.X < 1 || got.Y < 1 {
				t.Errorf("ResizeTarget(%v, 0, %d) = %v", src, w, got)
			}
		}
	}

	in := newTestImage(100, 200)
	out := Resize(in, 1, 0)
	if got := out.Size(); got != (image.Point{X: 1, Y: 1}) {
		t.Errorf("Resize to width 1 gave %v", got)
	}
	out.Close()
}

func TestResize(t *testing.T) {
	in := newTestImage(100, 200)
	out := Resize(in, 50, 0)
	if got := out.Size(); got != (image.Point{X: 50, Y: 25}) {
		t.Errorf("got %v", got)
	}
	out.Close()

	in = newTestImage(100, 200)
	out = Resize(in, 0, 0)
	if out != in {
		t.Error("Resize with no target should return the input")
	}
	out.Close()
}
