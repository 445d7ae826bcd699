// Package push exposes the core's signal and stat streams to websocket
// clients (the bot and admin UI collaborators). The gateway mirrors the
// CORE JetStream subjects to every connected client; clients are
// read-only observers.
package push

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"trading-core/internal/infrastructure"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Gateway broadcasts signal and stat messages to websocket observers.
type Gateway struct {
	logger  *zap.Logger
	js      nats.JetStreamContext
	clients map[*client]bool
	mu      sync.RWMutex
}

func NewGateway(js nats.JetStreamContext, logger *zap.Logger) *Gateway {
	return &Gateway{
		logger:  logger,
		js:      js,
		clients: make(map[*client]bool),
	}
}

// Start subscribes the gateway to the core subjects. Messages arriving
// with no clients connected are simply dropped.
func (g *Gateway) Start() error {
	for _, subject := range []string{infrastructure.SubjectSignals, infrastructure.SubjectStats} {
		if _, err := g.js.Subscribe(subject, func(msg *nats.Msg) {
			g.broadcast(msg.Data)
			msg.Ack()
		}, nats.DeliverNew()); err != nil {
			return err
		}
	}
	g.logger.Info("push gateway subscribed to core subjects")
	return nil
}

func (g *Gateway) broadcast(data []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.clients {
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop the frame rather than block the bus.
		}
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 256),
	}

	g.mu.Lock()
	g.clients[c] = true
	g.mu.Unlock()
	infrastructure.WSConnections.Inc()

	go g.writePump(c)
	g.readPump(c)
}

// readPump only watches for the client going away.
func (g *Gateway) readPump(c *client) {
	defer func() {
		g.mu.Lock()
		delete(g.clients, c)
		g.mu.Unlock()
		close(c.send)
		infrastructure.WSConnections.Dec()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) writePump(c *client) {
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
