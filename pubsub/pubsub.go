package pubsub

import "context"

// Broker is the broadcast sink: the sync engine publishes applied events to a
// per-room channel and the websocket hub subscribes room participants to it.
// The engine never talks to the network directly.
type Broker interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error
}

// RoomChannel names the fanout channel for a room code.
func RoomChannel(roomCode string) string {
	return "room:" + roomCode
}
