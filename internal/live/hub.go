package live

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	sendBufferSize = 64
)

var errSendBufferFull = errors.New("live update send buffer is full")

type UpdateType string

const (
	ConnectionStatusUpdate UpdateType = "connection_status"
	ConnectionEventUpdate  UpdateType = "connection_event"
	IncomingMessageUpdate  UpdateType = "incoming_message"
	MessageStatusUpdate    UpdateType = "message_status"
	JobStatusUpdate        UpdateType = "job_status"
)

type Update struct {
	Type         UpdateType          `json:"type"`
	ConnectionID domain.ConnectionID `json:"connection_id,omitempty"`
	Data         interface{}         `json:"data"`
	Timestamp    time.Time           `json:"timestamp"`
}

type Broadcaster interface {
	Broadcast(update Update)
}

// Each client has its own writer goroutine.  Broadcast only queues onto the
// client's send buffer; a client whose buffer is full gets dropped.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex

	send chan []byte
	done chan struct{}
}

func newClient(conn *websocket.Conn, bufferSize int) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub fans service events out to every connected live-update client.
// Clients only listen; anything they send is discarded.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		upgrader: newUpgrader(allowedOrigins),
		clients:  make(map[string]*client),
	}
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return originSet[origin]
		},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Warn("Live update websocket upgrade failed")
		return
	}

	c := newClient(conn, sendBufferSize)
	log := logger.Log.WithFields(logrus.Fields{"live_client_id": c.id})

	h.register(c)
	defer h.unregister(c)

	log.Info("Live update client connected")

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.writePump(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Debug("Live update client read ended")
			break
		}
	}

	log.Info("Live update client disconnected")
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				h.drop(c, err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				h.drop(c, err)
				return
			}
		}
	}
}

func (h *Hub) drop(c *client, err error) {
	logger.Log.WithFields(logrus.Fields{"error": err, "live_client_id": c.id}).Debug("Dropping live update client")
	if h.unregister(c) {
		metrics.droppedClientsCounter.Inc()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	metrics.connectedClientsGauge.Inc()
}

func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	_, found := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	if found {
		metrics.connectedClientsGauge.Dec()
		close(c.done)
		c.conn.Close()
	}

	return found
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(update Update) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(update)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err, "type": update.Type}).Error("Unable to encode live update")
		return
	}

	for _, c := range h.snapshot() {
		select {
		case c.send <- data:
			metrics.broadcastCounter.WithLabelValues(string(update.Type)).Inc()
		default:
			h.drop(c, errSendBufferFull)
		}
	}
}

func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		h.unregister(c)
	}
}
