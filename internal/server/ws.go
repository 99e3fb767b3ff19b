package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/turquoise5/hand-music/internal/app"
	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/performance"
	"github.com/turquoise5/hand-music/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	// clientBuffer is how many batches a slow client may lag before batches
	// are dropped for it.
	clientBuffer = 64
	writeWait    = time.Second
	maxFrameSize = 64 << 10
)

// EventHub broadcasts emitted events to websocket clients on /api/events.
// It implements synth.Sink so the pipeline delivers to it like any renderer.
type EventHub struct {
	log     logger.Logger
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

type eventsMessage struct {
	Events []performance.Event `json:"events"`
}

// NewEventHub creates an EventHub.
func NewEventHub(l logger.Logger) *EventHub {
	return &EventHub{log: l, clients: make(map[*hubClient]struct{})}
}

// ServeHTTP upgrades the request and streams batches until the client leaves.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	go c.writePump()

	// Reads only detect the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
}

func (c *hubClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *EventHub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *EventHub) unregister(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send implements synth.Sink. It never blocks on a slow client.
func (h *EventHub) Send(ctx context.Context, events []performance.Event) error {
	if len(events) == 0 {
		return nil
	}
	msg, err := json.Marshal(eventsMessage{Events: events})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Debug(ctx, "dropping events for slow client", logger.String("remote", c.conn.RemoteAddr().String()))
		}
	}
	return nil
}

// Close disconnects every client and refuses new ones.
func (h *EventHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}

// FrameHandler accepts detector frames. *app.App satisfies it.
type FrameHandler interface {
	HandleFrame(frame detector.Frame) error
}

// LandmarksHandler accepts detector frames from an external detector, such
// as MediaPipe running in a browser, on /api/landmarks.
type LandmarksHandler struct {
	frames FrameHandler
	log    logger.Logger
}

// NewLandmarksHandler creates a LandmarksHandler.
func NewLandmarksHandler(f FrameHandler, l logger.Logger) *LandmarksHandler {
	return &LandmarksHandler{frames: f, log: l}
}

type wsError struct {
	Error string `json:"error"`
}

// ServeHTTP reads one JSON frame per text message. Malformed messages are
// answered with an error message and the connection stays open.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		frame, err := detector.DecodeFrame(data)
		if err != nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wsError{Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := h.frames.HandleFrame(frame); err != nil {
			if errors.Is(err, app.ErrNotRunning) {
				continue
			}
			h.log.Warn(r.Context(), "frame rejected", logger.Error(err))
		}
	}
}
