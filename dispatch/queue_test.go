package dispatch

import (
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"camstream/video/source"
)

func frame() *source.Image {
	return source.WrapMat(gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3))
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	var in []*source.Image
	for i := 0; i < 5; i++ {
		img := frame()
		in = append(in, img)
		q.Put(img)
	}
	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}
	for i, want := range in {
		got, ok := q.Get(time.Millisecond)
		if !ok || got != want {
			t.Fatalf("item %d: got %p, %v, want %p", i, got, ok, want)
		}
		got.Close()
	}
	if _, ok := q.Get(10 * time.Millisecond); ok {
		t.Error("Get on empty queue returned an item")
	}
}

func TestQueueGetWakesOnPut(t *testing.T) {
	q := NewQueue()
	img := frame()
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Put(img)
	}()
	start := time.Now()
	got, ok := q.Get(5 * time.Second)
	if !ok || got != img {
		t.Fatalf("got %p, %v", got, ok)
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("Get took %v to notice the item", d)
	}
	got.Close()
}

func TestQueueConcurrentConsumers(t *testing.T) {
	q := NewQueue()
	const n = 200

	var mu sync.Mutex
	seen := make(map[*source.Image]int)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				img, ok := q.Get(50 * time.Millisecond)
				if !ok {
					return
				}
				mu.Lock()
				seen[img]++
				mu.Unlock()
				img.Close()
			}
		}()
	}
	for i := 0; i < n; i++ {
		q.Put(frame())
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("consumed %d distinct frames, want %d", len(seen), n)
	}
	for img, c := range seen {
		if c != 1 {
			t.Errorf("frame %p consumed %d times", img, c)
		}
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue()
	q.Put(frame())
	q.Put(frame())
	if n := q.Drain(); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after Drain = %d", q.Len())
	}
}
