package rest

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/pdoodle/doodle/models"
	"github.com/pdoodle/doodle/service"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type roomStrokesResponse struct {
	RoomCode string                  `json:"roomCode"`
	Strokes  []models.StrokeSnapshot `json:"strokes"`
}

// HandleRoomSnapshot serves the live canvas of a room: the completed strokes
// in completion order, same payload a SYNC_REQUEST over the socket yields.
func (h *Handler) HandleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	userId, err := h.Service.AuthenticateToken(h.getTokenFromAuthHeader(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	roomCode := r.PathValue("code")
	if roomCode == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	effects, err := h.Service.Dispatch(r.Context(), models.DrawEvent{
		RoomCode:  roomCode,
		UserId:    userId,
		EventType: models.EventSyncRequest,
	})
	if err != nil || effects.Reply == nil {
		log.Printf("Snapshot dispatch failed for room %s: %v", roomCode, err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, roomStrokesResponse{
		RoomCode: roomCode,
		Strokes:  effects.Reply.Strokes,
	})
}

// HandleRoomHistory serves a room's archived strokes from the store. Unlike
// the live snapshot this survives room eviction, but it lags the canvas by
// the archiver's flush interval.
func (h *Handler) HandleRoomHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.AuthenticateToken(h.getTokenFromAuthHeader(r)); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	roomCode := r.PathValue("code")
	if roomCode == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	strokes, err := h.Service.RoomHistory(r.Context(), roomCode)
	if err != nil {
		log.Printf("Room history failed for room %s: %v", roomCode, err)
		http.Error(w, "history failed", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, roomStrokesResponse{
		RoomCode: roomCode,
		Strokes:  strokes,
	})
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	return strings.TrimPrefix(authHeader, "Bearer ")
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
