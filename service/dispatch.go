package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/pdoodle/doodle/models"
	"github.com/pdoodle/doodle/pubsub"
	"github.com/pdoodle/doodle/room"
	"github.com/pdoodle/doodle/store"
	"github.com/pdoodle/doodle/worker"
)

// Effects is what a dispatched event produced: a broadcast for the room
// topic, a reply for the requesting connection, or neither. Broadcast
// delivery itself rides the room's fanout pump so clients observe events in
// apply order; the field is set so callers and tests can see what went out.
type Effects struct {
	Broadcast *models.DrawEvent
	Reply     *models.DrawEvent
}

// Dispatch validates, classifies and applies one inbound event. Malformed
// events and unknown types return an error and touch nothing. Idempotent
// no-ops (duplicate START, stale MOVE/END, UNDO with nothing to undo) return
// empty effects and no error.
func (s *Service) Dispatch(ctx context.Context, raw models.DrawEvent) (Effects, error) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		return Effects{}, err
	}

	if _, ok := ev.(models.SyncRequest); ok {
		return Effects{Reply: s.syncReply(ev.Room())}, nil
	}

	r := s.roomFor(ev.Room())
	now := time.Now()
	out := r.Apply(ev, raw, now)
	if out.Evicted {
		// Lost the race with idle eviction: the handle went stale between
		// lookup and Apply. A freshly created room cannot be idle, so one
		// retry is enough.
		r = s.roomFor(ev.Room())
		out = r.Apply(ev, raw, now)
	}

	var eff Effects
	if out.Applied {
		broadcast := raw
		eff.Broadcast = &broadcast
	}

	// Archival side effects happen strictly after the mutation and never
	// under the room lock, so a slow store cannot delay another client's
	// drawing.
	s.archiveOutcome(ev.Room(), out, now)

	return eff, nil
}

// syncReply packages the room's completed strokes, in completion order, as a
// SYNC_STATE directed at the requester only. A sync against an unknown room
// code yields an empty reply and never creates the room.
func (s *Service) syncReply(roomCode string) *models.DrawEvent {
	snaps := []models.StrokeSnapshot{}
	if r, ok := s.Rooms.Get(roomCode); ok {
		snaps = r.Snapshot()
	}
	return &models.DrawEvent{
		RoomCode:  roomCode,
		EventType: models.EventSyncState,
		Strokes:   snaps,
	}
}

func (s *Service) roomFor(code string) *room.Room {
	r, created := s.Rooms.GetOrCreate(code)
	if created {
		go s.pumpRoom(r)
	}
	return r
}

// pumpRoom is the room's single fanout consumer: it drains applied events in
// order and publishes them to the room topic. It exits when the registry
// evicts the room and closes its outbox. Publishes are bounded by a timeout
// so a dead broker connection stalls the pump for seconds, not forever; the
// room sheds its oldest pending events if the outbox fills in the meantime.
func (s *Service) pumpRoom(r *room.Room) {
	for ev := range r.Outbox() {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("Failed to marshal broadcast for room %s: %v", r.Code, err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.Broker.Publish(ctx, pubsub.RoomChannel(r.Code), payload); err != nil {
			log.Printf("Broadcast publish failed for room %s: %v", r.Code, err)
		}
		cancel()
	}
}

func (s *Service) archiveOutcome(roomCode string, out room.Outcome, now time.Time) {
	for _, snap := range out.Completed {
		s.Archiver.WriteCh <- worker.ArchiveStroke{
			Record: models.StrokeRecord{
				RoomCode:    roomCode,
				Stroke:      snap,
				CompletedAt: now.UnixMilli(),
			},
		}
	}

	if out.Removed != "" {
		// Cancel the pending write if the stroke is still sitting in the
		// archiver buffer, then delete whatever already reached the store.
		s.Archiver.CancelCh <- worker.CancelStrokeRequest{
			StrokeId: out.Removed,
			UserId:   out.RemovedOwner,
		}
		go func(strokeId, userId string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := s.Store.DeleteStroke(ctx, roomCode, strokeId, userId)
			switch err {
			case nil:
				s.Counters.UpdateCh <- worker.CounterUpdate{RoomCode: roomCode, Delta: -1}
			case store.ErrItemNotFound:
				// Undone before the archiver flushed it; the cancel above
				// already handled it.
			case store.ErrConditionFailed:
				// Archived under a different owner; the engine's undo is
				// per-owner so this indicates a stroke id reuse by a buggy
				// client.
				log.Printf("Archived stroke %s in room %s not owned by %s", strokeId, roomCode, userId)
			default:
				log.Printf("Failed to delete archived stroke %s in room %s: %v", strokeId, roomCode, err)
			}
		}(out.Removed, out.RemovedOwner)
	}

	if out.Cleared {
		go func() {
			body, err := json.Marshal(worker.PurgeRoomMessage{RoomCode: roomCode})
			if err != nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.PurgeQueue.Send(ctx, string(body)); err != nil {
				log.Printf("Failed to enqueue archive purge for room %s: %v", roomCode, err)
			}
		}()
	}
}

// RoomHistory serves a room's archived strokes. The live engine never reads
// the archive back; this exists for the REST surface only.
func (s *Service) RoomHistory(ctx context.Context, roomCode string) ([]models.StrokeSnapshot, error) {
	return s.Store.GetRoomStrokes(ctx, roomCode)
}
