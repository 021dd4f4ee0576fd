package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/easelhq/easel/logger"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Client is one connected WebSocket subscriber.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan interface{}
	id     string
	logger *zap.SugaredLogger

	// limiter throttles publication events per client; a burst of
	// publications in one batch must not flood slow consumers
	limiter *rate.Limiter

	// mu serializes trySend against close. The broadcast path and the
	// readPump-driven unregister run concurrently; without the guard a
	// broadcast could send on a just-closed channel and panic.
	mu     sync.Mutex
	closed bool
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// trySend queues a message for the client without blocking. Returns false
// when the client is closed or its buffer is full.
func (c *Client) trySend(msg interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump delivers queued events to the peer. One writer per connection;
// gorilla/websocket allows at most one concurrent writer.
func (c *Client) writePump(wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if !c.limiter.Allow() {
				// Dropping is preferable to blocking the broadcast path;
				// clients can re-read state over the HTTP API
				continue
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debugw("WebSocket write failed", logger.FieldError, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes (and discards) peer messages to process control frames
// and detect disconnects.
func (c *Client) readPump(wg *sync.WaitGroup) {
	defer func() {
		c.server.unregisterClient(c)
		c.conn.Close()
		wg.Done()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugw("WebSocket read failed", logger.FieldError, err)
			}
			return
		}
	}
}
