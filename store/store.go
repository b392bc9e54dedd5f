package store

import (
	"context"
	"errors"

	"github.com/pdoodle/doodle/models"
)

// ArchiveStore is the downstream consumer of the sync engine's event stream.
// It never feeds back into live room state; the engine stays authoritative
// for the lifetime of the process.
type ArchiveStore interface {
	// WriteStrokeBatch persists completed strokes and returns the records
	// DynamoDB left unprocessed.
	WriteStrokeBatch(ctx context.Context, records []models.StrokeRecord) ([]models.StrokeRecord, error)
	// DeleteStroke removes one archived stroke, conditional on the stroke
	// belonging to userId.
	DeleteStroke(ctx context.Context, roomCode string, strokeId string, userId string) error
	// DeleteRoomStrokes purges a room's whole archive (after CLEAR).
	DeleteRoomStrokes(ctx context.Context, roomCode string) error
	// GetRoomStrokes returns a room's archived strokes in completion order.
	GetRoomStrokes(ctx context.Context, roomCode string) ([]models.StrokeSnapshot, error)

	IncrementRoomStrokeCount(ctx context.Context, roomCode string, count int) error
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
