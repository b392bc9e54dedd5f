package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/pdoodle/doodle/mq"
	"github.com/pdoodle/doodle/store"
)

// PurgeRoomMessage is enqueued when a room is cleared; the consumer removes
// the room's archived strokes so the archive never resurrects drawings the
// room-wide reset wiped.
type PurgeRoomMessage struct {
	RoomCode string `json:"roomCode"`
}

type PurgeConsumer struct {
	purgeQueue   mq.MessageQueue
	archiveStore store.ArchiveStore
}

func NewPurgeConsumer(purgeQueue mq.MessageQueue, archiveStore store.ArchiveStore) *PurgeConsumer {
	return &PurgeConsumer{
		purgeQueue:   purgeQueue,
		archiveStore: archiveStore,
	}
}

// Allow up to 5 minutes for the throttled batch deletion of a large room
const visibilityTimeout = 300

func (pc *PurgeConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := pc.purgeQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("Purge consumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		var purgeMsg PurgeRoomMessage
		if err := json.Unmarshal([]byte(msg.Body), &purgeMsg); err != nil || purgeMsg.RoomCode == "" {
			// Unparseable message; drop it rather than poison the queue
			pc.purgeQueue.Delete(shutdownCtx, msg)
			continue
		}

		// Timeout should be a little less than queue visibility timeout
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)

		if err := pc.archiveStore.DeleteRoomStrokes(ctx, purgeMsg.RoomCode); err != nil {
			log.Printf("Failed to purge archive for room %s: %v", purgeMsg.RoomCode, err)
			cancel()
			// Leave the message; it becomes visible again and is retried
			continue
		}
		cancel()

		if err := pc.purgeQueue.Delete(shutdownCtx, msg); err != nil {
			log.Printf("Failed to delete purge message for room %s: %v", purgeMsg.RoomCode, err)
		}
	}
}
