package models

// Event type discriminators as sent by clients. JOIN and LEAVE exist only at
// the transport layer (room subscription) and never reach the sync engine.
const (
	EventStart       = "START"
	EventMove        = "MOVE"
	EventEnd         = "END"
	EventClear       = "CLEAR"
	EventUndo        = "UNDO"
	EventSyncRequest = "SYNC_REQUEST"
	EventSyncState   = "SYNC_STATE"
	EventJoin        = "JOIN"
	EventLeave       = "LEAVE"
)

// DrawEvent is the flat wire envelope for all whiteboard traffic. Which
// fields are required depends on EventType; optional numerics are pointers so
// absence is distinguishable from zero.
type DrawEvent struct {
	RoomCode  string           `json:"roomCode"`
	UserId    string           `json:"userId"`
	EventType string           `json:"eventType"`
	StrokeId  string           `json:"strokeId,omitempty"`
	X         *float64         `json:"x,omitempty"`
	Y         *float64         `json:"y,omitempty"`
	Color     string           `json:"color,omitempty"`
	Thickness *int             `json:"thickness,omitempty"`
	Tool      Tool             `json:"tool,omitempty"`
	Strokes   []StrokeSnapshot `json:"strokes,omitempty"`
}

// Event is the closed set of operations the sync engine applies to a room.
// Each variant carries exactly the fields its operation requires, so room
// code never needs to re-check field presence.
type Event interface {
	Room() string
	User() string
	isEvent()
}

type StartStroke struct {
	RoomCode string
	UserId   string
	StrokeId string
	Point    Point
	Style    StrokeStyle
}

type MoveStroke struct {
	RoomCode string
	UserId   string
	StrokeId string
	Point    Point
	// Style is present when the client re-sends stroke attributes on MOVE,
	// allowing an implicit START after a lost START message.
	Style *StrokeStyle
}

type EndStroke struct {
	RoomCode string
	UserId   string
	StrokeId string
}

type ClearRoom struct {
	RoomCode string
	UserId   string
}

type UndoStroke struct {
	RoomCode string
	UserId   string
}

type SyncRequest struct {
	RoomCode string
	UserId   string
}

func (e StartStroke) Room() string { return e.RoomCode }
func (e MoveStroke) Room() string  { return e.RoomCode }
func (e EndStroke) Room() string   { return e.RoomCode }
func (e ClearRoom) Room() string   { return e.RoomCode }
func (e UndoStroke) Room() string  { return e.RoomCode }
func (e SyncRequest) Room() string { return e.RoomCode }

func (e StartStroke) User() string { return e.UserId }
func (e MoveStroke) User() string  { return e.UserId }
func (e EndStroke) User() string   { return e.UserId }
func (e ClearRoom) User() string   { return e.UserId }
func (e UndoStroke) User() string  { return e.UserId }
func (e SyncRequest) User() string { return e.UserId }

func (StartStroke) isEvent() {}
func (MoveStroke) isEvent()  {}
func (EndStroke) isEvent()   {}
func (ClearRoom) isEvent()   {}
func (UndoStroke) isEvent()  {}
func (SyncRequest) isEvent() {}
