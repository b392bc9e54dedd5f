package service

import (
	"log"
	"time"

	"github.com/pdoodle/doodle/models"
	"github.com/pdoodle/doodle/worker"
)

const (
	// StrokeInactivityWindow bounds how long a stroke may sit in progress
	// without a new point before it is force-completed with its last known
	// point. Without this, a client that vanishes mid-stroke would leave
	// the stroke active forever.
	StrokeInactivityWindow = 30 * time.Second

	// RoomIdleEviction is how long a room with no activity and no strokes
	// in progress survives before the registry reclaims it.
	RoomIdleEviction = 10 * time.Minute
)

// CompleteStaleStrokes force-completes strokes whose owners stopped sending
// points. The synthetic END events are broadcast through each room's pump;
// the completed strokes flow into the archive like any other.
func (s *Service) CompleteStaleStrokes(now time.Time) {
	for _, r := range s.Rooms.Rooms() {
		snaps := r.CompleteStale(now, StrokeInactivityWindow)
		for _, snap := range snaps {
			s.Archiver.WriteCh <- worker.ArchiveStroke{
				Record: models.StrokeRecord{
					RoomCode:    r.Code,
					Stroke:      snap,
					CompletedAt: now.UnixMilli(),
				},
			}
		}
	}
}

// EvictIdleRooms discards rooms idle past the threshold. Evicted codes are
// indistinguishable from never-created ones: a later SYNC_REQUEST simply
// sees an empty room.
func (s *Service) EvictIdleRooms(now time.Time) int {
	evicted := s.Rooms.EvictIdle(now, RoomIdleEviction)
	for _, r := range evicted {
		log.Printf("Evicted idle room %s", r.Code)
	}
	return len(evicted)
}
