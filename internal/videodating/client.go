// internal/videodating/client.go

package videodating

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP offers run a few KB;
	// anything past this is abuse.
	maxMessageSize = 65536
)

// EventDispatcher handles decoded client events. Dispatch runs on the
// client's read pump goroutine, so events from one client are handled
// strictly in arrival order.
type EventDispatcher interface {
	Dispatch(userID string, event ClientEvent)
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	dispatcher EventDispatcher
	closed     chan struct{}
}

// NewClient creates a client for an already-upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, userID string, dispatcher EventDispatcher) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		userID:     userID,
		dispatcher: dispatcher,
		closed:     make(chan struct{}),
	}
}

// Start registers the client and begins its pumps
func (c *Client) Start() {
	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}

// Close shuts the underlying connection. Safe to call more than once.
func (c *Client) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
		c.conn.Close()
	}
}

// readPump pumps messages from the websocket connection to the dispatcher.
//
// Events are dispatched inline rather than on fresh goroutines: the
// signaling relay needs offer/answer/candidate ordering per sender
// preserved, and inline dispatch gives that for free.
func (c *Client) readPump() {
	defer func() {
		c.hub.requestUnregister(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error for user %s: %v", c.userID, err)
			}
			break
		}

		var event ClientEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("invalid event from user %s: %v", c.userID, err)
			c.SendError("invalid_event", "malformed event envelope")
			continue
		}

		c.dispatcher.Dispatch(c.userID, event)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}

// SendError pushes an error notice straight to this client
func (c *Client) SendError(code, message string) {
	ev := NewServerEvent(EventErrorNotice, ErrorPayload{Code: code, Message: message})

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
	}
}
