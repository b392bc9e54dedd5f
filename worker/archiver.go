package worker

import (
	"context"
	"log"
	"time"

	"github.com/pdoodle/doodle/models"
	"github.com/pdoodle/doodle/store"
)

type ArchiveStroke struct {
	Record models.StrokeRecord
}

type CancelStrokeRequest struct {
	StrokeId string
	UserId   string
}

// Archiver batches completed strokes into DynamoDB-sized writes. It is a
// downstream consumer of the engine's event stream: losing a batch loses
// archive history, never live room state.
//
// Cancels are not batched for persistence because BatchWriteItem does not
// support ConditionExpression, and archived deletes must stay conditional on
// the owner. CancelCh only removes *pending* writes from the buffer before
// they flush, effectively cancelling the write of a stroke undone right after
// it was completed.
type Archiver struct {
	WriteCh            chan ArchiveStroke
	CancelCh           chan CancelStrokeRequest
	archiveStore       store.ArchiveStore
	counters           *CounterBatcher
	tickerMilliseconds int
}

func NewArchiver(archiveStore store.ArchiveStore, tickerMilliseconds int, counters *CounterBatcher) *Archiver {
	return &Archiver{
		WriteCh:            make(chan ArchiveStroke, 1024), // buffer to absorb bursts
		CancelCh:           make(chan CancelStrokeRequest, 1024),
		archiveStore:       archiveStore,
		counters:           counters,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (a *Archiver) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(a.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]models.StrokeRecord, 0, 25)
	batchIndices := make(map[string]int, 25)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// The write uses its own timeout context, not shutdownCtx, so a
		// pending batch still finishes when Run is shutting down.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		unprocessed, err := a.archiveStore.WriteStrokeBatch(ctx, batch)
		cancel()

		if err != nil {
			log.Printf("Error writing stroke batch to archive: %v", err)
		}

		// Successes: everything in batch minus unprocessed
		failed := make(map[string]bool)
		for _, u := range unprocessed {
			failed[u.Stroke.StrokeId] = true
		}

		for _, record := range batch {
			if !failed[record.Stroke.StrokeId] {
				a.counters.UpdateCh <- CounterUpdate{
					RoomCode: record.RoomCode,
					Delta:    1,
				}
			}
		}

		batch = batch[:0]
		clear(batchIndices)
	}

	for {
		select {
		case item := <-a.WriteCh:
			batch = append(batch, item.Record)
			batchIndices[item.Record.Stroke.StrokeId] = len(batch) - 1
			if len(batch) == 25 {
				flush()
			}

		case cancelReq := <-a.CancelCh:
			if idx, ok := batchIndices[cancelReq.StrokeId]; ok {
				if batch[idx].Stroke.UserId == cancelReq.UserId {
					l := len(batch)
					batch[idx] = batch[l-1]
					batch = batch[:l-1]

					// Update index of the moved item
					if idx < len(batch) {
						batchIndices[batch[idx].Stroke.StrokeId] = idx
					}

					delete(batchIndices, cancelReq.StrokeId)
				}
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
