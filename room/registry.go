package room

import (
	"sync"
	"time"
)

// Registry owns the process-wide room table. Rooms are created lazily on
// first reference and evicted after an idle period; callers hold handles
// rather than reaching into the map.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (g *Registry) Get(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[code]
	return r, ok
}

// GetOrCreate returns the room for code, creating it if absent. Creation is
// idempotent: concurrent callers for the same code converge on one handle.
// The second return reports whether this call created the room.
func (g *Registry) GetOrCreate(code string) (*Room, bool) {
	g.mu.RLock()
	r, ok := g.rooms[code]
	g.mu.RUnlock()
	if ok {
		return r, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[code]; ok {
		return r, false
	}
	r = New(code)
	g.rooms[code] = r
	return r, true
}

// Rooms returns a point-in-time slice of all live rooms, for background
// sweeps.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// EvictIdle removes and closes rooms whose last activity is older than
// idleFor. Rooms with any stroke still in progress are never evicted. The
// removed rooms are returned so the caller can log them; to later arrivals
// an evicted code simply looks like an empty room.
//
// A room is closed in the same lock acquisition as its idle check, so an
// event holding a stale handle either kept the room alive or finds it closed
// and is retried by the dispatcher against a fresh room. Mutations cannot
// land in an orphan.
func (g *Registry) EvictIdle(now time.Time, idleFor time.Duration) []*Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	var evicted []*Room
	for code, r := range g.rooms {
		if r.closeIfIdle(now, idleFor) {
			delete(g.rooms, code)
			evicted = append(evicted, r)
		}
	}
	return evicted
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
