package service

import (
	"errors"
	"fmt"

	"github.com/pdoodle/doodle/models"
)

var (
	ErrMalformedEvent   = errors.New("malformed event")
	ErrUnknownEventType = errors.New("unknown event type")
)

// DecodeEvent checks the structurally required fields for the event's type
// and converts the flat wire envelope into its tagged variant. A failure
// here means the event never touches room state.
func DecodeEvent(raw models.DrawEvent) (models.Event, error) {
	if raw.RoomCode == "" {
		return nil, fmt.Errorf("%w: missing roomCode", ErrMalformedEvent)
	}
	if raw.UserId == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrMalformedEvent)
	}

	switch raw.EventType {
	case models.EventStart:
		if raw.StrokeId == "" {
			return nil, fmt.Errorf("%w: START missing strokeId", ErrMalformedEvent)
		}
		if raw.X == nil || raw.Y == nil {
			return nil, fmt.Errorf("%w: START missing coordinates", ErrMalformedEvent)
		}
		style, err := decodeStyle(raw)
		if err != nil {
			return nil, err
		}
		if style == nil {
			return nil, fmt.Errorf("%w: START missing stroke attributes", ErrMalformedEvent)
		}
		return models.StartStroke{
			RoomCode: raw.RoomCode,
			UserId:   raw.UserId,
			StrokeId: raw.StrokeId,
			Point:    models.Point{X: *raw.X, Y: *raw.Y},
			Style:    *style,
		}, nil

	case models.EventMove:
		if raw.StrokeId == "" {
			return nil, fmt.Errorf("%w: MOVE missing strokeId", ErrMalformedEvent)
		}
		if raw.X == nil || raw.Y == nil {
			return nil, fmt.Errorf("%w: MOVE missing coordinates", ErrMalformedEvent)
		}
		style, err := decodeStyle(raw)
		if err != nil {
			return nil, err
		}
		return models.MoveStroke{
			RoomCode: raw.RoomCode,
			UserId:   raw.UserId,
			StrokeId: raw.StrokeId,
			Point:    models.Point{X: *raw.X, Y: *raw.Y},
			Style:    style,
		}, nil

	case models.EventEnd:
		if raw.StrokeId == "" {
			return nil, fmt.Errorf("%w: END missing strokeId", ErrMalformedEvent)
		}
		return models.EndStroke{RoomCode: raw.RoomCode, UserId: raw.UserId, StrokeId: raw.StrokeId}, nil

	case models.EventClear:
		return models.ClearRoom{RoomCode: raw.RoomCode, UserId: raw.UserId}, nil

	case models.EventUndo:
		return models.UndoStroke{RoomCode: raw.RoomCode, UserId: raw.UserId}, nil

	case models.EventSyncRequest:
		return models.SyncRequest{RoomCode: raw.RoomCode, UserId: raw.UserId}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, raw.EventType)
	}
}

// decodeStyle returns the stroke attributes carried by the event, or nil when
// none are present. Attributes come as a unit; a partial set is malformed.
func decodeStyle(raw models.DrawEvent) (*models.StrokeStyle, error) {
	if raw.Color == "" && raw.Thickness == nil && raw.Tool == "" {
		return nil, nil
	}
	if raw.Color == "" || raw.Thickness == nil || raw.Tool == "" {
		return nil, fmt.Errorf("%w: partial stroke attributes", ErrMalformedEvent)
	}
	if !raw.Tool.Valid() {
		return nil, fmt.Errorf("%w: invalid tool %q", ErrMalformedEvent, raw.Tool)
	}
	if *raw.Thickness <= 0 {
		return nil, fmt.Errorf("%w: invalid thickness", ErrMalformedEvent)
	}
	return &models.StrokeStyle{
		Color:     raw.Color,
		Thickness: *raw.Thickness,
		Tool:      raw.Tool,
	}, nil
}
