package models

type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

func (t Tool) Valid() bool {
	return t == ToolPen || t == ToolEraser
}

// Point is one sampled position within a stroke. Points are ordered by
// arrival and never modified once recorded.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type StrokeStyle struct {
	Color     string
	Thickness int
	Tool      Tool
}

// StrokeSnapshot is the wire form of a stroke, as exchanged with clients in
// SYNC_STATE payloads and re-broadcast draw events. Field names match the
// existing client protocol.
type StrokeSnapshot struct {
	StrokeId  string  `json:"strokeId"`
	UserId    string  `json:"userId"`
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	Thickness int     `json:"thickness"`
	Tool      Tool    `json:"tool"`
}

// StrokeRecord is what the archive pipeline persists, one row per completed
// stroke.
type StrokeRecord struct {
	RoomCode    string
	Stroke      StrokeSnapshot
	CompletedAt int64
}
