package serve

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"camstream/client"
	_ "camstream/metrics"
	"camstream/video/sink"
	"camstream/video/source"
)

func newServer(t *testing.T) (*httptest.Server, *sink.MJPEGServer, *Events) {
	t.Helper()
	mjpeg := sink.NewMJPEGServer()
	events := NewEvents()
	srv := httptest.NewServer(NewHandler(mjpeg, events))
	t.Cleanup(srv.Close)
	t.Cleanup(events.Close)
	return srv, mjpeg, events
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestHandlerRoutes(t *testing.T) {
	srv, _, _ := newServer(t)

	if code, body := get(t, srv.URL+"/healthz"); code != 200 || body != "ok\n" {
		t.Errorf("/healthz: %d %q", code, body)
	}
	if code, body := get(t, srv.URL+"/metrics"); code != 200 || !strings.Contains(body, "camstream_frames_grabbed_total") {
		t.Errorf("/metrics: %d, missing camstream collectors", code)
	}
	if code, _ := get(t, srv.URL+"/mjpeg"); code != http.StatusBadRequest {
		t.Errorf("/mjpeg without name: %d", code)
	}
	if code, _ := get(t, srv.URL+"/mjpeg?name=nope"); code != http.StatusNotFound {
		t.Errorf("/mjpeg unknown stream: %d", code)
	}
}

func TestMJPEGStream(t *testing.T) {
	srv, mjpeg, _ := newServer(t)
	stream := mjpeg.NewStream("accepted")
	defer stream.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		img := source.WrapMat(gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3))
		defer img.Close()
		for {
			select {
			case <-done:
				return
			case <-time.After(20 * time.Millisecond):
				stream.Put(img)
			}
		}
	}()

	resp, err := http.Get(srv.URL + "/mjpeg?name=accepted")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type %q", ct)
	}
	r := bufio.NewReader(resp.Body)
	var headers []string
	for len(headers) < 3 {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		if line = strings.TrimSpace(line); line != "" {
			headers = append(headers, line)
		}
	}
	if headers[0] != "--MJPEGBOUNDARY" || headers[1] != "Content-Type: image/jpeg" || !strings.HasPrefix(headers[2], "Content-Length: ") {
		t.Errorf("unexpected part headers %q", headers)
	}
}

func TestEventsBroadcast(t *testing.T) {
	srv, _, events := newServer(t)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	// Registration happens asynchronously; publish until something arrives.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(20 * time.Millisecond):
				events.OnResult(client.Result{
					Captured: time.Unix(1700000000, 0),
					Query:    &client.ImageQuery{ID: "iq_1"},
					Latency:  42 * time.Millisecond,
				})
				events.OnResult(client.Result{Err: errors.New("boom")})
			}
		}
	}()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ok, failed bool
	for !(ok && failed) {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		var e Event
		if err := json.Unmarshal(msg, &e); err != nil {
			t.Fatalf("bad event %q: %v", msg, err)
		}
		switch {
		case e.Error == "boom":
			failed = true
		case e.QueryID == "iq_1" && e.LatencyMS == 42:
			ok = true
		default:
			t.Fatalf("unexpected event %+v", e)
		}
	}
}

func TestEventsClose(t *testing.T) {
	srv, _, events := newServer(t)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	events.Close()
	select {
	case <-events.exited:
	case <-time.After(time.Second):
		t.Fatal("broadcaster still running after Close")
	}

	// Publishing after Close must not block.
	for i := 0; i < 2*clientBuffer; i++ {
		events.Publish(Event{QueryID: "late"})
	}

	// Connected clients are disconnected.
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if isTimeout(err) {
				t.Fatalf("client not disconnected: %v", err)
			}
			return
		}
	}
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
