package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/riskibarqy/meme-party/internal/platform/logging"
	"github.com/riskibarqy/meme-party/internal/usecase"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultSendBuffer = 32
	maxInboundBytes   = 1024
)

type Config struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	SendBuffer int
	// CheckOrigin defaults to accepting every origin; the HTTP layer applies CORS.
	CheckOrigin func(r *http.Request) bool
}

// Hub fans game events out to websocket subscribers of a topic. It is an
// usecase.EventPublisher.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*client]struct{}
	closed bool

	upgrader   websocket.Upgrader
	writeWait  time.Duration
	pongWait   time.Duration
	sendBuffer int
	logger     *logging.Logger
}

type client struct {
	conn     *websocket.Conn
	topic    string
	playerID string
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func NewHub(cfg Config, logger *logging.Logger) *Hub {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(*http.Request) bool { return true }
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Hub{
		topics:     make(map[string]map[*client]struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: cfg.CheckOrigin},
		writeWait:  cfg.WriteWait,
		pongWait:   cfg.PongWait,
		sendBuffer: cfg.SendBuffer,
		logger:     logger.Named("realtime"),
	}
}

// Publish encodes the event once and queues it on every subscriber of the
// topic. Subscribers whose buffer is full are disconnected.
func (h *Hub) Publish(ctx context.Context, topic string, event usecase.Event) error {
	payload, err := sonic.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "encode event type=%s", event.Type)
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-c.done:
		case c.send <- payload:
		default:
			h.logger.WarnContext(ctx, "dropping slow websocket subscriber",
				"topic", topic,
				"player_id", c.playerID,
				"event_type", event.Type,
			)
			h.unregister(c)
		}
	}
	return nil
}

// ServeWS upgrades the request and subscribes the connection to topic until
// either side closes it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic, playerID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrade websocket")
	}

	c := &client{
		conn:     conn,
		topic:    topic,
		playerID: playerID,
		send:     make(chan []byte, h.sendBuffer),
		done:     make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.writeWait))
		_ = conn.Close()
		return nil
	}
	h.logger.InfoContext(r.Context(), "websocket subscriber connected", "topic", topic, "player_id", playerID)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// Subscribers returns how many connections listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, clients := range h.topics {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	clients, ok := h.topics[c.topic]
	if !ok {
		clients = make(map[*client]struct{})
		h.topics[c.topic] = clients
	}
	clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if clients, ok := h.topics[c.topic]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.topics, c.topic)
			}
		}
		h.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()
		h.logger.Debug("websocket subscriber disconnected", "topic", c.topic, "player_id", c.playerID)
	})
}

// readPump only keeps the connection alive; inbound frames are ignored.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		h.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
