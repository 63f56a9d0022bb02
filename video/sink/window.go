package sink

import (
	"runtime"

	"gocv.io/x/gocv"

	"camstream/video/source"
)

// Window shows frames in a local HighGUI window, for debugging a camera
// setup. HighGUI calls must stay on the thread that created the window, so a
// dedicated goroutine owns it and Put only hands over the latest frame.
type Window struct {
	name   string
	frames chan *source.Image
	done   chan struct{}
}

func NewWindow(name string) *Window {
	w := &Window{
		name:   name,
		frames: make(chan *source.Image, 1),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Window) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	window := gocv.NewWindow(w.name)
	defer window.Close()

	sizeSet := false
	for img := range w.frames {
		if !sizeSet {
			window.ResizeWindow(img.Mat.Cols(), img.Mat.Rows())
			sizeSet = true
		}
		window.IMShow(img.Mat)
		img.Close()
		window.WaitKey(1)
	}
}

// Put shows a copy of input, replacing any frame not yet displayed.
func (w *Window) Put(input *source.Image) {
	img := input.Clone()
	for {
		select {
		case w.frames <- img:
			return
		default:
		}
		select {
		case stale := <-w.frames:
			stale.Close()
		default:
		}
	}
}

// Close closes the window. Put must not be called afterwards.
func (w *Window) Close() {
	close(w.frames)
	<-w.done
}
