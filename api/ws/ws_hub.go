package ws

import (
	"context"
	"log"

	"github.com/pdoodle/doodle/pubsub"
)

type subscription struct {
	client   *Client
	roomCode string
}

type broadcast struct {
	roomCode string
	message  []byte
}

// Hub maintains the set of active clients and their room memberships. Fanout
// for a room rides one Broker subscription per room channel, created when the
// first participant joins and torn down when the last one leaves. The hub
// never touches room state; it only moves bytes.
//
// All maps are owned by the Run goroutine. Broker subscriptions hand their
// messages to BroadcastCh rather than fanning out themselves, so membership
// is only ever read and written on one goroutine.
type Hub struct {
	broker                 pubsub.Broker
	OpenCh                 chan *Client
	CloseCh                chan *Client
	JoinCh                 chan subscription
	LeaveCh                chan subscription
	BroadcastCh            chan broadcast
	userToClients          map[string]map[*Client]struct{}
	roomToClients          map[string]map[*Client]struct{}
	roomToSubscriberCancel map[string]context.CancelFunc
}

func NewHub(broker pubsub.Broker) *Hub {
	return &Hub{
		broker:                 broker,
		OpenCh:                 make(chan *Client, 256),
		CloseCh:                make(chan *Client, 256),
		JoinCh:                 make(chan subscription, 1024),
		LeaveCh:                make(chan subscription, 1024),
		BroadcastCh:            make(chan broadcast, 1024),
		userToClients:          make(map[string]map[*Client]struct{}),
		roomToClients:          make(map[string]map[*Client]struct{}),
		roomToSubscriberCancel: make(map[string]context.CancelFunc),
	}
}

const (
	maxConnectionsPerUser = 3
	maxRoomsPerConnection = 8
)

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.OpenCh:
			if _, ok := h.userToClients[client.userId]; !ok {
				h.userToClients[client.userId] = make(map[*Client]struct{})
			}

			if len(h.userToClients[client.userId]) >= maxConnectionsPerUser {
				log.Printf("User %s reached max connections (%d)", client.userId, maxConnectionsPerUser)
				// The client's pumps are already running and may still
				// enqueue a reply; Send must stay open.
				client.shutdown()
				continue
			}

			h.userToClients[client.userId][client] = struct{}{}

		case client := <-h.CloseCh:
			for roomCode := range client.joinedRooms {
				h.leave(client, roomCode)
			}
			delete(h.userToClients[client.userId], client)
			if len(h.userToClients[client.userId]) == 0 {
				delete(h.userToClients, client.userId)
			}

		case sub := <-h.JoinCh:
			if len(sub.client.joinedRooms) >= maxRoomsPerConnection {
				log.Printf("Connection %s by user %s reached max rooms (%d)", sub.client.id, sub.client.userId, maxRoomsPerConnection)
				continue
			}
			if h.roomToClients[sub.roomCode] == nil {
				ctx, cancel := context.WithCancel(context.Background())
				roomCode := sub.roomCode
				channel := pubsub.RoomChannel(roomCode)

				err := h.broker.Subscribe(ctx, channel, func(messageBytes []byte) {
					h.BroadcastCh <- broadcast{roomCode: roomCode, message: messageBytes}
				})
				if err != nil {
					log.Printf("Failed to subscribe to channel %s: %v", channel, err)
					cancel()
					continue
				}

				h.roomToClients[sub.roomCode] = make(map[*Client]struct{})
				h.roomToSubscriberCancel[sub.roomCode] = cancel
			}
			h.roomToClients[sub.roomCode][sub.client] = struct{}{}
			sub.client.joinedRooms[sub.roomCode] = struct{}{}

		case unsub := <-h.LeaveCh:
			h.leave(unsub.client, unsub.roomCode)

		case b := <-h.BroadcastCh:
			for client := range h.roomToClients[b.roomCode] {
				if !client.trySend(b.message) {
					// A full buffer means the peer stopped reading. Cut it
					// loose; one stalled connection must not hold up the
					// rest of the room.
					log.Printf("Disconnecting slow consumer %s (user %s) in room %s", client.id, client.userId, b.roomCode)
					client.shutdown()
				}
			}
		}
	}
}

func (h *Hub) leave(client *Client, roomCode string) {
	delete(h.roomToClients[roomCode], client)
	delete(client.joinedRooms, roomCode)
	if len(h.roomToClients[roomCode]) == 0 {
		if cancel, ok := h.roomToSubscriberCancel[roomCode]; ok {
			cancel()
			delete(h.roomToSubscriberCancel, roomCode)
		}
		delete(h.roomToClients, roomCode)
	}
}
