package room

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/pdoodle/doodle/models"
)

// outboxSize bounds the number of applied events waiting for fanout per room.
const outboxSize = 256

type stroke struct {
	id          string
	userId      string
	style       models.StrokeStyle
	points      []models.Point
	lastPointAt time.Time
}

func (s *stroke) snapshot() models.StrokeSnapshot {
	points := make([]models.Point, len(s.points))
	copy(points, s.points)
	return models.StrokeSnapshot{
		StrokeId:  s.id,
		UserId:    s.userId,
		Points:    points,
		Color:     s.style.Color,
		Thickness: s.style.Thickness,
		Tool:      s.style.Tool,
	}
}

type undoEntry struct {
	strokeId string
	userId   string
}

// Room is the per-room mutable aggregate: the ordered log of completed
// strokes, the in-progress stroke map and the undo stack. All mutation goes
// through Apply under the room mutex, so events for one room are applied as a
// strict total order. A stroke id lives in at most one of {active, completed}
// at any time, and every undo entry references a live completed stroke.
type Room struct {
	Code string

	mu           sync.Mutex
	completed    []*stroke
	active       map[string]*stroke
	undo         []undoEntry
	lastActivity time.Time

	outbox chan models.DrawEvent
	closed bool
}

func New(code string) *Room {
	return &Room{
		Code:         code,
		active:       make(map[string]*stroke),
		lastActivity: time.Now(),
		outbox:       make(chan models.DrawEvent, outboxSize),
	}
}

// Outcome reports what an Apply actually did, so the caller can decide what
// to fan out and what to hand to the archive pipeline.
type Outcome struct {
	// Applied is false for idempotent no-ops (duplicate START, END on an
	// unknown stroke, UNDO with nothing to undo). No-ops are not
	// re-broadcast, which keeps the broadcast stream equal to the
	// applied-event log.
	Applied bool
	// Completed holds snapshots of strokes that transitioned to complete.
	Completed []models.StrokeSnapshot
	// Removed is the id of the stroke removed by UNDO, if any.
	Removed string
	// RemovedOwner is the owner of the removed stroke.
	RemovedOwner string
	Cleared      bool
	// Evicted reports that the registry already removed and closed this
	// room when the event arrived. Nothing was mutated; the caller should
	// retry against a live room.
	Evicted bool
}

// Apply mutates the room for one drawing event and, if the event changed
// state, enqueues the verbatim wire event on the room outbox for in-order
// fanout. raw must be the wire form of ev.
func (r *Room) Apply(ev models.Event, raw models.DrawEvent, now time.Time) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Outcome{Evicted: true}
	}

	r.lastActivity = now

	var out Outcome
	switch e := ev.(type) {
	case models.StartStroke:
		out = r.start(e.StrokeId, e.UserId, e.Point, e.Style, now)

	case models.MoveStroke:
		out = r.move(e, now)

	case models.EndStroke:
		out = r.end(e.StrokeId)

	case models.ClearRoom:
		out = r.clear()

	case models.UndoStroke:
		out = r.undoBy(e.UserId)

	default:
		// SYNC_REQUEST and anything else never mutates; handled upstream.
		return Outcome{}
	}

	if out.Applied {
		r.enqueueLocked(raw)
	}
	return out
}

func (r *Room) start(strokeId, userId string, p models.Point, style models.StrokeStyle, now time.Time) Outcome {
	if r.knownLocked(strokeId) {
		// Duplicate START, e.g. a retransmission. Idempotent no-op.
		return Outcome{}
	}
	r.active[strokeId] = &stroke{
		id:          strokeId,
		userId:      userId,
		style:       style,
		points:      []models.Point{p},
		lastPointAt: now,
	}
	return Outcome{Applied: true}
}

func (r *Room) move(e models.MoveStroke, now time.Time) Outcome {
	s, ok := r.active[e.StrokeId]
	if !ok {
		// Tolerate a lost START: treat the MOVE as an implicit START when
		// the event carries stroke attributes, otherwise drop it.
		if e.Style == nil {
			return Outcome{}
		}
		if r.knownLocked(e.StrokeId) {
			// Already completed; a straggler MOVE after END.
			return Outcome{}
		}
		return r.start(e.StrokeId, e.UserId, e.Point, *e.Style, now)
	}
	s.points = append(s.points, e.Point)
	s.lastPointAt = now
	return Outcome{Applied: true}
}

func (r *Room) end(strokeId string) Outcome {
	s, ok := r.active[strokeId]
	if !ok {
		return Outcome{}
	}
	delete(r.active, strokeId)
	r.completed = append(r.completed, s)
	r.undo = append(r.undo, undoEntry{strokeId: s.id, userId: s.userId})
	return Outcome{Applied: true, Completed: []models.StrokeSnapshot{s.snapshot()}}
}

func (r *Room) clear() Outcome {
	r.completed = nil
	r.active = make(map[string]*stroke)
	r.undo = nil
	return Outcome{Applied: true, Cleared: true}
}

// undoBy removes the requester's most recent completed stroke. Entries
// belonging to other users are left untouched: undo must never erase someone
// else's work.
func (r *Room) undoBy(userId string) Outcome {
	for i := len(r.undo) - 1; i >= 0; i-- {
		if r.undo[i].userId != userId {
			continue
		}
		strokeId := r.undo[i].strokeId
		r.undo = append(r.undo[:i], r.undo[i+1:]...)
		for j, s := range r.completed {
			if s.id == strokeId {
				r.completed = append(r.completed[:j], r.completed[j+1:]...)
				break
			}
		}
		return Outcome{Applied: true, Removed: strokeId, RemovedOwner: userId}
	}
	return Outcome{}
}

func (r *Room) knownLocked(strokeId string) bool {
	if _, ok := r.active[strokeId]; ok {
		return true
	}
	for _, s := range r.completed {
		if s.id == strokeId {
			return true
		}
	}
	return false
}

// Snapshot returns the completed strokes in completion order. In-progress
// strokes are never included; late joiners receive them as live MOVE traffic.
func (r *Room) Snapshot() []models.StrokeSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := make([]models.StrokeSnapshot, 0, len(r.completed))
	for _, s := range r.completed {
		snaps = append(snaps, s.snapshot())
	}
	return snaps
}

// CompleteStale force-completes active strokes that received no point within
// the inactivity window, using their last known point. It enqueues a
// synthetic END for each so connected clients converge, and returns the
// completed snapshots for archiving.
func (r *Room) CompleteStale(now time.Time, window time.Duration) []models.StrokeSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	var stale []*stroke
	for _, s := range r.active {
		if now.Sub(s.lastPointAt) >= window {
			stale = append(stale, s)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].lastPointAt.Equal(stale[j].lastPointAt) {
			return stale[i].lastPointAt.Before(stale[j].lastPointAt)
		}
		return stale[i].id < stale[j].id
	})

	snaps := make([]models.StrokeSnapshot, 0, len(stale))
	for _, s := range stale {
		delete(r.active, s.id)
		r.completed = append(r.completed, s)
		r.undo = append(r.undo, undoEntry{strokeId: s.id, userId: s.userId})
		snaps = append(snaps, s.snapshot())
		r.enqueueLocked(models.DrawEvent{
			RoomCode:  r.Code,
			UserId:    s.userId,
			EventType: models.EventEnd,
			StrokeId:  s.id,
		})
	}
	r.lastActivity = now
	return snaps
}

// enqueueLocked never blocks: when the outbox is full because the fanout
// pump stalled, the oldest pending event is shed to make room. The mutation
// path must not wait on network state.
func (r *Room) enqueueLocked(ev models.DrawEvent) {
	if r.closed {
		return
	}
	for {
		select {
		case r.outbox <- ev:
			return
		default:
		}
		select {
		case dropped := <-r.outbox:
			log.Printf("Room %s outbox full, shedding %s event for stroke %s", r.Code, dropped.EventType, dropped.StrokeId)
		default:
		}
	}
}

// Outbox is drained by a single fanout goroutine per room, preserving apply
// order end to end.
func (r *Room) Outbox() <-chan models.DrawEvent {
	return r.outbox
}

// closeIfIdle atomically checks the eviction conditions and closes the room.
// The check and the close share one lock acquisition, so an Apply can never
// slip in between: it either lands first and refreshes lastActivity, vetoing
// the eviction, or it observes the closed room and gets retried elsewhere.
func (r *Room) closeIfIdle(now time.Time, idleFor time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	if len(r.active) > 0 || now.Sub(r.lastActivity) < idleFor {
		return false
	}
	r.closed = true
	close(r.outbox)
	return true
}

func (r *Room) HasActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active) > 0
}

func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}
