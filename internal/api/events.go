package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vibewalk/pkg/audio"
	"vibewalk/pkg/narrator"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + writeWait
)

// Event is one message on the event stream.
type Event struct {
	Type string `json:"type"` // "pipeline" or "audio"
	Data any    `json:"data"`
}

// SnapshotSource publishes pipeline transitions.
type SnapshotSource interface {
	Snapshot() narrator.Snapshot
	Subscribe() (<-chan narrator.Snapshot, func())
}

// AudioFeed fans controller status changes out to event stream clients.
// Register Publish with audio.Controller.SetOnChange.
type AudioFeed struct {
	mu   sync.Mutex
	subs map[int]chan audio.Status
	next int
}

// NewAudioFeed creates an empty feed.
func NewAudioFeed() *AudioFeed {
	return &AudioFeed{subs: make(map[int]chan audio.Status)}
}

// Publish delivers st to every subscriber without blocking.
func (f *AudioFeed) Publish(st audio.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// Subscribe returns a status channel and its cancel function.
func (f *AudioFeed) Subscribe() (<-chan audio.Status, func()) {
	ch := make(chan audio.Status, 16)
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// EventsHandler streams pipeline and audio changes over a WebSocket.
type EventsHandler struct {
	pipeline SnapshotSource
	player   interface{ Status() audio.Status }
	feed     *AudioFeed
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(p SnapshotSource, player interface{ Status() audio.Status }, feed *AudioFeed) *EventsHandler {
	return &EventsHandler{
		pipeline: p,
		player:   player,
		feed:     feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP handles GET /api/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("API: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snapshots, unsubPipeline := h.pipeline.Subscribe()
	defer unsubPipeline()
	statuses, unsubAudio := h.feed.Subscribe()
	defer unsubAudio()

	slog.Debug("API: event stream connected", "remote", r.RemoteAddr)

	// Reader: handles pongs and notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !send(conn, Event{Type: "pipeline", Data: statusResponse(h.pipeline.Snapshot())}) ||
		!send(conn, Event{Type: "audio", Data: newAudioStatus(h.player.Status())}) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			slog.Debug("API: event stream closed", "remote", r.RemoteAddr)
			return
		case s, ok := <-snapshots:
			if !ok || !send(conn, Event{Type: "pipeline", Data: statusResponse(s)}) {
				return
			}
		case st, ok := <-statuses:
			if !ok || !send(conn, Event{Type: "audio", Data: newAudioStatus(st)}) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func send(conn *websocket.Conn, ev Event) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		slog.Debug("API: event write failed", "type", ev.Type, "error", err)
		return false
	}
	return true
}
