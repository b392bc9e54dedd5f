package worker

import (
	"context"
	"log"
	"time"

	"github.com/pdoodle/doodle/store"
)

type CounterUpdate struct {
	RoomCode string
	Delta    int
}

// CounterBatcher coalesces per-room archived-stroke counter deltas so a busy
// room costs one counter write per flush interval instead of one per stroke.
type CounterBatcher struct {
	UpdateCh           chan CounterUpdate
	archiveStore       store.ArchiveStore
	tickerMilliseconds int
}

func NewCounterBatcher(archiveStore store.ArchiveStore, tickerMilliseconds int) *CounterBatcher {
	return &CounterBatcher{
		UpdateCh:           make(chan CounterUpdate, 1024),
		archiveStore:       archiveStore,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *CounterBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	roomCounts := make(map[string]int)

	flush := func() {
		for roomCode, count := range roomCounts {
			if count == 0 {
				continue
			}
			go func(code string, c int) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := b.archiveStore.IncrementRoomStrokeCount(ctx, code, c); err != nil {
					log.Printf("Failed to update stroke count for room %s: %v", code, err)
				}
			}(roomCode, count)
		}
		roomCounts = make(map[string]int)
	}

	for {
		select {
		case update := <-b.UpdateCh:
			if update.RoomCode != "" {
				roomCounts[update.RoomCode] += update.Delta
			}

			if len(roomCounts) >= 100 {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
