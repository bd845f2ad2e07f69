package websocket

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var errSendBufferFull = errors.New("send buffer full")

type Client struct {
	ID         string
	RemoteAddr string
	Conn       *websocket.Conn
	Hub        *Hub
	Send       chan []byte
}

func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:         id,
		RemoteAddr: conn.RemoteAddr().String(),
		Conn:       conn,
		Hub:        hub,
		Send:       make(chan []byte, 256),
	}
}

// Enqueue buffers a message for the write pump. It must not be called after
// the hub may have closed the client.
func (c *Client) Enqueue(msg *Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case c.Send <- b:
		return nil
	default:
		return errSendBufferFull
	}
}

// ReadPump only answers pings; the stream is otherwise server to client.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	if c.Hub.cfg.MaxMessageSize > 0 {
		c.Conn.SetReadLimit(c.Hub.cfg.MaxMessageSize)
	}
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.cfg.PongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warnw("Websocket read error", "client_id", c.ID, "error", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.Hub.log.Debugw("Ignoring malformed websocket message", "client_id", c.ID, "error", err)
			continue
		}
		if msg.Type == TypePing {
			pong, _ := NewMessage(TypePong, nil)
			c.Hub.Send(c, pong)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
