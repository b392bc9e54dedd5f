package worker

import (
	"context"
	"time"
)

// Sweepable is the slice of the sync engine the sweeper drives.
type Sweepable interface {
	CompleteStaleStrokes(now time.Time)
	EvictIdleRooms(now time.Time) int
}

// Sweeper runs the engine's background maintenance independent of event
// processing: force-completing stuck strokes and evicting idle rooms.
type Sweeper struct {
	engine             Sweepable
	tickerMilliseconds int
}

func NewSweeper(engine Sweepable, tickerMilliseconds int) *Sweeper {
	return &Sweeper{
		engine:             engine,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (s *Sweeper) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(s.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.engine.CompleteStaleStrokes(now)
			s.engine.EvictIdleRooms(now)

		case <-shutdownCtx.Done():
			return
		}
	}
}
