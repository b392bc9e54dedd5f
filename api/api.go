package api

import (
	"context"
	"net/http"

	"github.com/pdoodle/doodle/api/rest"
	"github.com/pdoodle/doodle/api/ws"
	"github.com/pdoodle/doodle/mq"
	"github.com/pdoodle/doodle/pubsub"
	"github.com/pdoodle/doodle/room"
	"github.com/pdoodle/doodle/service"
	"github.com/pdoodle/doodle/store"
	"github.com/pdoodle/doodle/worker"
)

type DoodleAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func NewDoodleAPI(
	archiveStore store.ArchiveStore,
	purgeQueue mq.MessageQueue,
	broker pubsub.Broker,
	jwtSecret []byte,
	shutdownCtx context.Context,
) *DoodleAPI {
	wsHub := ws.NewHub(broker)
	go wsHub.Run()

	counterBatcher := worker.NewCounterBatcher(archiveStore, 60000)
	go counterBatcher.Run(shutdownCtx)

	archiver := worker.NewArchiver(archiveStore, 500, counterBatcher)
	go archiver.Run(shutdownCtx)

	purgeConsumer := worker.NewPurgeConsumer(purgeQueue, archiveStore)
	go purgeConsumer.Run(shutdownCtx)

	svc := service.NewService(
		room.NewRegistry(),
		broker,
		archiveStore,
		purgeQueue,
		archiver,
		counterBatcher,
		jwtSecret,
	)

	sweeper := worker.NewSweeper(svc, 5000)
	go sweeper.Run(shutdownCtx)

	restHandler := rest.NewHandler(svc)
	wsHandler := ws.NewHandler(svc, wsHub)

	return &DoodleAPI{
		restHandler: restHandler,
		wsHandler:   wsHandler,
		shutdownCtx: shutdownCtx,
	}
}

func (doodleAPI *DoodleAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /rooms/{code}/snapshot", doodleAPI.restHandler.HandleRoomSnapshot)
	mux.HandleFunc("GET /rooms/{code}/history", doodleAPI.restHandler.HandleRoomHistory)

	wsUpgrader := doodleAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		doodleAPI.wsHandler.ServeWS(wsUpgrader, w, r, doodleAPI.shutdownCtx)
	})
}
