package service

import (
	"github.com/pdoodle/doodle/mq"
	"github.com/pdoodle/doodle/pubsub"
	"github.com/pdoodle/doodle/room"
	"github.com/pdoodle/doodle/store"
	"github.com/pdoodle/doodle/worker"
)

// Service is the room synchronization engine: it validates incoming draw
// events, applies them to per-room state under the room's serialization
// discipline, and hands the resulting effects to the broadcast sink and the
// archive pipeline. It is the only component that mutates room state.
type Service struct {
	Rooms      *room.Registry
	Broker     pubsub.Broker
	Store      store.ArchiveStore
	PurgeQueue mq.MessageQueue
	Archiver   *worker.Archiver
	Counters   *worker.CounterBatcher
	JWTSecret  []byte
}

func NewService(
	rooms *room.Registry,
	broker pubsub.Broker,
	archiveStore store.ArchiveStore,
	purgeQueue mq.MessageQueue,
	archiver *worker.Archiver,
	counters *worker.CounterBatcher,
	jwtSecret []byte,
) *Service {
	return &Service{
		Rooms:      rooms,
		Broker:     broker,
		Store:      archiveStore,
		PurgeQueue: purgeQueue,
		Archiver:   archiver,
		Counters:   counters,
		JWTSecret:  jwtSecret,
	}
}
