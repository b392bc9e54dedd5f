package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024 * 16

	// Rate limiting: 120 events per second with a burst of 200. Drawing is
	// chatty (every pointer sample is a MOVE), so these are well above chat
	// app numbers.
	messagesPerSecond = 120
	burstLimit        = 200
)

type MessageHandler func(client *Client, messageType int, messageBytes []byte)

func NewClient(hub *Hub, conn *websocket.Conn, userId string, handler MessageHandler) *Client {
	id, _ := uuid.NewV4()
	return &Client{
		id:          id.String(),
		hub:         hub,
		conn:        conn,
		userId:      userId,
		handler:     handler,
		joinedRooms: make(map[string]struct{}),
		Send:        make(chan []byte, 256),
		done:        make(chan struct{}),
		limiter:     rate.NewLimiter(rate.Limit(messagesPerSecond), burstLimit),
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	userId      string
	handler     MessageHandler
	joinedRooms map[string]struct{}
	Send        chan []byte // Buffered channel of outbound messages.
	done        chan struct{}
	closeOnce   sync.Once
	limiter     *rate.Limiter
}

// shutdown asks the pumps to tear the connection down. Safe to call from any
// goroutine, any number of times. Send itself is never closed, so a sender
// racing the shutdown cannot panic.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// trySend enqueues an outbound message without ever blocking the caller. It
// reports false when the client is shutting down or its buffer is full; a
// full buffer means the peer stopped reading and the caller should give up
// on this connection rather than wait for it.
func (c *Client) trySend(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.shutdown()
		c.hub.CloseCh <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		messageType, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS close error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			log.Printf("Closing connection %s for user %s: message rate limit exceeded", c.id, c.userId)
			break
		}

		c.handler(c, messageType, messageBytes)
	}
}

func (c *Client) WritePump(shutdownCtx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WS send error: %v", err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-shutdownCtx.Done():
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Websocket service shutting down"),
			)
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
