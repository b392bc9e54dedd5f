package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/pdoodle/doodle/models"
	"github.com/pdoodle/doodle/service"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == requiredOrigin
		},
		Subprotocols: []string{"doodle-v1"},
	}
}

// ServeWS handles websocket requests from the peer. The session token rides
// the second WebSocket subprotocol; browsers cannot set headers on ws dials.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])

	userId, authErr := h.Service.AuthenticateToken(token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send a custom close
	// message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, userId, h.HandleWsMessage)

	h.Hub.OpenCh <- client

	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// HandleWsMessage routes one inbound frame. JOIN and LEAVE manage the
// connection's room subscriptions and never reach the engine; everything else
// is dispatched. Broadcast delivery happens through the engine's room pump
// and the hub's broker subscription; only reply effects are written directly
// back to the requesting connection.
func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var ev models.DrawEvent
	if err := json.Unmarshal(messageBytes, &ev); err != nil {
		log.Printf("Invalid JSON from user %s: %v", client.userId, err)
		return
	}

	// The engine trusts userId as already authenticated; make that true by
	// never letting a connection speak for anyone else.
	ev.UserId = client.userId

	switch ev.EventType {
	case models.EventJoin:
		if ev.RoomCode == "" {
			log.Printf("JOIN without roomCode from user %s", client.userId)
			return
		}
		h.Hub.JoinCh <- subscription{client: client, roomCode: ev.RoomCode}
		return

	case models.EventLeave:
		if ev.RoomCode == "" {
			log.Printf("LEAVE without roomCode from user %s", client.userId)
			return
		}
		h.Hub.LeaveCh <- subscription{client: client, roomCode: ev.RoomCode}
		return
	}

	effects, err := h.Service.Dispatch(context.Background(), ev)
	if err != nil {
		if errors.Is(err, service.ErrMalformedEvent) || errors.Is(err, service.ErrUnknownEventType) {
			log.Printf("Rejected event from user %s: %v", client.userId, err)
		} else {
			log.Printf("Dispatch failed for user %s: %v", client.userId, err)
		}
		return
	}

	if effects.Reply != nil {
		replyBytes, err := json.Marshal(effects.Reply)
		if err != nil {
			log.Printf("Error marshaling reply: %v", err)
			return
		}
		if !client.trySend(replyBytes) {
			log.Printf("Dropping reply to user %s: connection not accepting writes", client.userId)
		}
	}
}
