package room_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdoodle/doodle/models"
	"github.com/pdoodle/doodle/room"
)

var defaultStyle = models.StrokeStyle{Color: "#000000", Thickness: 3, Tool: models.ToolPen}

func startEvent(roomCode, userId, strokeId string, x, y float64) (models.Event, models.DrawEvent) {
	ev := models.StartStroke{
		RoomCode: roomCode,
		UserId:   userId,
		StrokeId: strokeId,
		Point:    models.Point{X: x, Y: y},
		Style:    defaultStyle,
	}
	thickness := defaultStyle.Thickness
	raw := models.DrawEvent{
		RoomCode:  roomCode,
		UserId:    userId,
		EventType: models.EventStart,
		StrokeId:  strokeId,
		X:         &x,
		Y:         &y,
		Color:     defaultStyle.Color,
		Thickness: &thickness,
		Tool:      defaultStyle.Tool,
	}
	return ev, raw
}

func moveEvent(roomCode, userId, strokeId string, x, y float64) (models.Event, models.DrawEvent) {
	ev := models.MoveStroke{
		RoomCode: roomCode,
		UserId:   userId,
		StrokeId: strokeId,
		Point:    models.Point{X: x, Y: y},
	}
	raw := models.DrawEvent{
		RoomCode:  roomCode,
		UserId:    userId,
		EventType: models.EventMove,
		StrokeId:  strokeId,
		X:         &x,
		Y:         &y,
	}
	return ev, raw
}

func endEvent(roomCode, userId, strokeId string) (models.Event, models.DrawEvent) {
	ev := models.EndStroke{RoomCode: roomCode, UserId: userId, StrokeId: strokeId}
	raw := models.DrawEvent{RoomCode: roomCode, UserId: userId, EventType: models.EventEnd, StrokeId: strokeId}
	return ev, raw
}

func apply(t *testing.T, r *room.Room, ev models.Event, raw models.DrawEvent) room.Outcome {
	t.Helper()
	return r.Apply(ev, raw, time.Now())
}

func drawStroke(t *testing.T, r *room.Room, userId, strokeId string) {
	t.Helper()
	ev, raw := startEvent(r.Code, userId, strokeId, 0, 0)
	apply(t, r, ev, raw)
	ev, raw = endEvent(r.Code, userId, strokeId)
	apply(t, r, ev, raw)
}

func TestStartMoveEndProducesOneStroke(t *testing.T) {
	r := room.New("room1")

	ev, raw := startEvent("room1", "u1", "s1", 0, 0)
	out := apply(t, r, ev, raw)
	assert.True(t, out.Applied)

	ev, raw = moveEvent("room1", "u1", "s1", 1, 1)
	out = apply(t, r, ev, raw)
	assert.True(t, out.Applied)

	ev, raw = endEvent("room1", "u1", "s1")
	out = apply(t, r, ev, raw)
	assert.True(t, out.Applied)
	assert.Len(t, out.Completed, 1)

	snaps := r.Snapshot()
	assert.Len(t, snaps, 1)
	assert.Equal(t, "s1", snaps[0].StrokeId)
	assert.Equal(t, "u1", snaps[0].UserId)
	assert.Equal(t, []models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, snaps[0].Points)
	assert.Equal(t, models.ToolPen, snaps[0].Tool)
}

func TestEndWithoutStartIsNoop(t *testing.T) {
	r := room.New("room1")

	ev, raw := endEvent("room1", "u1", "s1")
	out := apply(t, r, ev, raw)

	assert.False(t, out.Applied)
	assert.Empty(t, r.Snapshot())
}

func TestDuplicateStartIsIgnored(t *testing.T) {
	r := room.New("room1")

	ev, raw := startEvent("room1", "u1", "s1", 0, 0)
	out := apply(t, r, ev, raw)
	assert.True(t, out.Applied)

	out = apply(t, r, ev, raw)
	assert.False(t, out.Applied)

	ev, raw = endEvent("room1", "u1", "s1")
	apply(t, r, ev, raw)

	snaps := r.Snapshot()
	assert.Len(t, snaps, 1)
	assert.Len(t, snaps[0].Points, 1)
}

func TestStartOfCompletedStrokeIdIsIgnored(t *testing.T) {
	r := room.New("room1")
	drawStroke(t, r, "u1", "s1")

	ev, raw := startEvent("room1", "u2", "s1", 5, 5)
	out := apply(t, r, ev, raw)

	assert.False(t, out.Applied)
	snaps := r.Snapshot()
	assert.Len(t, snaps, 1)
	assert.Equal(t, "u1", snaps[0].UserId)
}

func TestMoveWithStyleIsImplicitStart(t *testing.T) {
	r := room.New("room1")

	thickness := 5
	x, y := 2.0, 3.0
	ev := models.MoveStroke{
		RoomCode: "room1",
		UserId:   "u1",
		StrokeId: "s1",
		Point:    models.Point{X: x, Y: y},
		Style:    &models.StrokeStyle{Color: "#ff0000", Thickness: thickness, Tool: models.ToolEraser},
	}
	raw := models.DrawEvent{
		RoomCode:  "room1",
		UserId:    "u1",
		EventType: models.EventMove,
		StrokeId:  "s1",
		X:         &x,
		Y:         &y,
		Color:     "#ff0000",
		Thickness: &thickness,
		Tool:      models.ToolEraser,
	}
	out := apply(t, r, ev, raw)
	assert.True(t, out.Applied)
	assert.True(t, r.HasActive())

	endEv, endRaw := endEvent("room1", "u1", "s1")
	apply(t, r, endEv, endRaw)

	snaps := r.Snapshot()
	assert.Len(t, snaps, 1)
	assert.Equal(t, "#ff0000", snaps[0].Color)
	assert.Equal(t, models.ToolEraser, snaps[0].Tool)
	assert.Equal(t, []models.Point{{X: 2, Y: 3}}, snaps[0].Points)
}

func TestMoveWithoutStyleForUnknownStrokeIsDropped(t *testing.T) {
	r := room.New("room1")

	ev, raw := moveEvent("room1", "u1", "s1", 1, 1)
	out := apply(t, r, ev, raw)

	assert.False(t, out.Applied)
	assert.False(t, r.HasActive())
}

func TestUndoRemovesOnlyOwnStroke(t *testing.T) {
	r := room.New("room1")
	drawStroke(t, r, "u1", "s1")
	drawStroke(t, r, "u2", "s2")

	out := apply(t, r, models.UndoStroke{RoomCode: "room1", UserId: "u1"},
		models.DrawEvent{RoomCode: "room1", UserId: "u1", EventType: models.EventUndo})

	assert.True(t, out.Applied)
	assert.Equal(t, "s1", out.Removed)
	assert.Equal(t, "u1", out.RemovedOwner)

	snaps := r.Snapshot()
	assert.Len(t, snaps, 1)
	assert.Equal(t, "s2", snaps[0].StrokeId)
}

func TestUndoPicksOwnersMostRecent(t *testing.T) {
	r := room.New("room1")
	drawStroke(t, r, "u1", "s1")
	drawStroke(t, r, "u2", "s2")
	drawStroke(t, r, "u1", "s3")

	out := apply(t, r, models.UndoStroke{RoomCode: "room1", UserId: "u1"},
		models.DrawEvent{RoomCode: "room1", UserId: "u1", EventType: models.EventUndo})
	assert.Equal(t, "s3", out.Removed)

	out = apply(t, r, models.UndoStroke{RoomCode: "room1", UserId: "u1"},
		models.DrawEvent{RoomCode: "room1", UserId: "u1", EventType: models.EventUndo})
	assert.Equal(t, "s1", out.Removed)

	snaps := r.Snapshot()
	assert.Len(t, snaps, 1)
	assert.Equal(t, "s2", snaps[0].StrokeId)
}

func TestUndoWithNothingToUndoIsNoop(t *testing.T) {
	r := room.New("room1")
	drawStroke(t, r, "u2", "s2")

	out := apply(t, r, models.UndoStroke{RoomCode: "room1", UserId: "u1"},
		models.DrawEvent{RoomCode: "room1", UserId: "u1", EventType: models.EventUndo})

	assert.False(t, out.Applied)
	assert.Len(t, r.Snapshot(), 1)
}

func TestClearWipesEverything(t *testing.T) {
	r := room.New("room1")
	drawStroke(t, r, "u1", "s1")
	drawStroke(t, r, "u2", "s2")
	ev, raw := startEvent("room1", "u3", "s3", 0, 0)
	apply(t, r, ev, raw)

	out := apply(t, r, models.ClearRoom{RoomCode: "room1", UserId: "u1"},
		models.DrawEvent{RoomCode: "room1", UserId: "u1", EventType: models.EventClear})

	assert.True(t, out.Applied)
	assert.True(t, out.Cleared)
	assert.Empty(t, r.Snapshot())
	assert.False(t, r.HasActive())

	// Undo after clear finds nothing
	out = apply(t, r, models.UndoStroke{RoomCode: "room1", UserId: "u2"},
		models.DrawEvent{RoomCode: "room1", UserId: "u2", EventType: models.EventUndo})
	assert.False(t, out.Applied)
}

func TestSnapshotExcludesActiveStrokes(t *testing.T) {
	r := room.New("room1")
	drawStroke(t, r, "u1", "s1")
	ev, raw := startEvent("room1", "u2", "s2", 0, 0)
	apply(t, r, ev, raw)

	snaps := r.Snapshot()
	assert.Len(t, snaps, 1)
	assert.Equal(t, "s1", snaps[0].StrokeId)
}

func TestReplayIsDeterministic(t *testing.T) {
	type step struct {
		ev  models.Event
		raw models.DrawEvent
	}
	var steps []step
	add := func(ev models.Event, raw models.DrawEvent) {
		steps = append(steps, step{ev: ev, raw: raw})
	}

	add(startEvent("room1", "u1", "s1", 0, 0))
	add(moveEvent("room1", "u1", "s1", 1, 0))
	add(startEvent("room1", "u2", "s2", 5, 5))
	add(endEvent("room1", "u1", "s1"))
	add(moveEvent("room1", "u2", "s2", 6, 6))
	add(endEvent("room1", "u2", "s2"))
	add(startEvent("room1", "u1", "s3", 9, 9))
	add(endEvent("room1", "u1", "s3"))
	add(models.UndoStroke{RoomCode: "room1", UserId: "u1"},
		models.DrawEvent{RoomCode: "room1", UserId: "u1", EventType: models.EventUndo})

	now := time.Now()
	a := room.New("room1")
	b := room.New("room1")
	for _, s := range steps {
		a.Apply(s.ev, s.raw, now)
	}
	for _, s := range steps {
		b.Apply(s.ev, s.raw, now)
	}

	assert.Equal(t, a.Snapshot(), b.Snapshot())
	assert.Equal(t, []string{"s1", "s2"}, strokeIds(a.Snapshot()))
}

func strokeIds(snaps []models.StrokeSnapshot) []string {
	ids := make([]string, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, s.StrokeId)
	}
	return ids
}

func TestOutboxCarriesAppliedEventsInOrder(t *testing.T) {
	r := room.New("room1")

	ev, raw := startEvent("room1", "u1", "s1", 0, 0)
	apply(t, r, ev, raw)

	// Duplicate START must not be re-broadcast
	apply(t, r, ev, raw)

	ev, raw = moveEvent("room1", "u1", "s1", 1, 1)
	apply(t, r, ev, raw)

	ev, raw = endEvent("room1", "u1", "s1")
	apply(t, r, ev, raw)

	var types []string
	for i := 0; i < 3; i++ {
		select {
		case out := <-r.Outbox():
			types = append(types, out.EventType)
		default:
			t.Fatalf("expected 3 outbox events, got %d", i)
		}
	}
	assert.Equal(t, []string{models.EventStart, models.EventMove, models.EventEnd}, types)

	select {
	case out := <-r.Outbox():
		t.Fatalf("unexpected extra outbox event: %v", out.EventType)
	default:
	}
}

func TestCompleteStaleFinishesStuckStrokes(t *testing.T) {
	r := room.New("room1")

	ev, raw := startEvent("room1", "u1", "s1", 0, 0)
	r.Apply(ev, raw, time.Now().Add(-time.Minute))
	<-r.Outbox()

	snaps := r.CompleteStale(time.Now(), 30*time.Second)
	assert.Len(t, snaps, 1)
	assert.Equal(t, "s1", snaps[0].StrokeId)
	assert.False(t, r.HasActive())
	assert.Len(t, r.Snapshot(), 1)

	// Synthetic END goes out so clients converge
	select {
	case out := <-r.Outbox():
		assert.Equal(t, models.EventEnd, out.EventType)
		assert.Equal(t, "s1", out.StrokeId)
	default:
		t.Fatal("expected synthetic END on outbox")
	}

	// The auto-completed stroke is undoable like any other
	out := r.Apply(models.UndoStroke{RoomCode: "room1", UserId: "u1"},
		models.DrawEvent{RoomCode: "room1", UserId: "u1", EventType: models.EventUndo}, time.Now())
	assert.Equal(t, "s1", out.Removed)
}

func TestApplyDoesNotBlockWhenOutboxFull(t *testing.T) {
	r := room.New("room1")

	ev, raw := startEvent("room1", "u1", "s1", 0, 0)
	apply(t, r, ev, raw)

	// Nothing drains the outbox here, simulating a stalled fanout pump.
	// Every Apply must still return; the test hanging is the failure mode.
	const moves = 400
	for i := 1; i <= moves; i++ {
		mv, mraw := moveEvent("room1", "u1", "s1", float64(i), 0)
		out := apply(t, r, mv, mraw)
		assert.True(t, out.Applied)
	}

	var events []models.DrawEvent
	for {
		select {
		case out := <-r.Outbox():
			events = append(events, out)
			continue
		default:
		}
		break
	}

	// The oldest events were shed; the newest survive in order
	assert.NotEmpty(t, events)
	assert.Less(t, len(events), moves+1)
	last := events[len(events)-1]
	assert.Equal(t, models.EventMove, last.EventType)
	assert.Equal(t, float64(moves), *last.X)
	for i := 1; i < len(events); i++ {
		assert.Less(t, *events[i-1].X, *events[i].X)
	}

	snaps := r.Snapshot()
	assert.Empty(t, snaps)
	assert.True(t, r.HasActive())
}

func TestCompleteStaleLeavesFreshStrokes(t *testing.T) {
	r := room.New("room1")

	ev, raw := startEvent("room1", "u1", "s1", 0, 0)
	apply(t, r, ev, raw)

	snaps := r.CompleteStale(time.Now(), 30*time.Second)
	assert.Empty(t, snaps)
	assert.True(t, r.HasActive())
}
