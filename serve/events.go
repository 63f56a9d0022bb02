package serve

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"camstream/client"
)

const (
	// Time allowed to write message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second

	// Messages buffered per client before it is considered too slow.
	clientBuffer = 16
)

// Event is published to websocket clients once per dispatched frame.
type Event struct {
	Captured  time.Time `json:"captured"`
	LatencyMS int64     `json:"latency_ms"`
	QueryID   string    `json:"query_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func EventFromResult(r client.Result) Event {
	e := Event{
		Captured:  r.Captured,
		LatencyMS: r.Latency.Milliseconds(),
	}
	if r.Query != nil {
		e.QueryID = r.Query.ID
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// Events fans dispatch results out to every connected websocket client.
type Events struct {
	upgrader websocket.Upgrader
	cs       map[chan []byte]bool
	addc     chan chan []byte
	delc     chan chan []byte
	notify   chan []byte

	stop     chan struct{}
	stopOnce sync.Once
	exited   chan struct{}
}

func NewEvents() *Events {
	m := &Events{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:     make(map[chan []byte]bool),
		addc:   make(chan chan []byte),
		delc:   make(chan chan []byte),
		notify: make(chan []byte, clientBuffer),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go func() {
		defer close(m.exited)
		for {
			select {
			case <-m.stop:
				return
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case msg := <-m.notify:
				for c := range m.cs {
					select {
					case c <- msg:
					default:
						// Client is behind; drop rather than stall dispatch.
					}
				}
			}
		}
	}()
	return m
}

// Close stops the broadcaster and disconnects every client. Publish is a
// no-op afterwards.
func (m *Events) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.exited
}

// Publish queues e for every connected client. It never blocks.
func (m *Events) Publish(e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		log.Errorf("Failed to encode event: %v", err)
		return
	}
	select {
	case m.notify <- b:
	default:
		log.Debug("Event broadcast backlog full, dropping event")
	}
}

// OnResult adapts Publish to client.Submitter.OnResult.
func (m *Events) OnResult(r client.Result) {
	m.Publish(EventFromResult(r))
}

func (m *Events) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for event stream: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *Events) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to event socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from event socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	msgc := make(chan []byte, clientBuffer)
	select {
	case m.addc <- msgc:
	case <-m.stop:
		return
	}
	defer func() {
		select {
		case m.delc <- msgc:
		case <-m.stop:
		}
	}()

	// Even though we don't care about incoming messages, we need to read from
	// the socket in order to process control messages.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-msgc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-closed:
			return
		case <-m.stop:
			return
		}
	}
}
