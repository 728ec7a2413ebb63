package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MicroGrid/internal/domain/models"
	"MicroGrid/internal/service/metrics"
	"MicroGrid/internal/service/ratelimit"
	"MicroGrid/pkg/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// StreamHub fans every published record out to connected websocket clients.
// Slow clients lose records instead of slowing the loop.
type StreamHub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]*streamClient
	upgrader websocket.Upgrader
	log      *logger.Logger
	limiter  *ratelimit.Limiter
	closed   bool
}

type streamClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewStreamHub(log *logger.Logger) *StreamHub {
	if log == nil {
		log = logger.Nop()
	}
	metrics.Register()
	return &StreamHub{
		clients: make(map[uuid.UUID]*streamClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     log,
		limiter: ratelimit.New(),
	}
}

func (h *StreamHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/records", h.Serve)
}

// Serve upgrades the request and streams records until the client leaves.
func (h *StreamHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return nil
	}

	cl := &streamClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[cl.id] = cl
	h.mu.Unlock()
	metrics.StreamClients.Inc()
	h.log.Debug("stream client connected", logger.String("client", cl.id.String()))

	go h.writePump(cl)
	go h.readPump(cl)
	return nil
}

// Publish encodes rec once and queues it for every client.
func (h *StreamHub) Publish(_ context.Context, rec *models.Record) error {
	if rec == nil {
		return nil
	}
	msg, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			if h.limiter.Every(cl.dropKey(), 5*time.Second) {
				h.log.Warn("stream client too slow, dropping records", logger.String("client", cl.id.String()))
			}
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *StreamHub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*streamClient, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		h.drop(cl)
	}
	return nil
}

func (h *StreamHub) drop(cl *streamClient) {
	cl.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, cl.id)
		h.mu.Unlock()
		h.limiter.Forget(cl.dropKey())
		close(cl.done)
		_ = cl.conn.Close()
		metrics.StreamClients.Dec()
		h.log.Debug("stream client disconnected", logger.String("client", cl.id.String()))
	})
}

func (cl *streamClient) dropKey() string { return "stream_drop:" + cl.id.String() }

// readPump only watches for pongs and close frames.
func (h *StreamHub) readPump(cl *streamClient) {
	defer h.drop(cl)

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writePump(cl *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.drop(cl)
	}()

	for {
		select {
		case msg := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}
