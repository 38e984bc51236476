package sim

import (
	"sync/atomic"

	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
	Ticks     *TickCounter
}

// TickCounter holds the current simulation tick. Executors read it to stamp
// events while the loop advances it.
type TickCounter struct {
	value atomic.Uint64
}

func NewTickCounter() *TickCounter {
	return &TickCounter{}
}

// Current reports the tick being simulated.
func (c *TickCounter) Current() uint64 {
	if c == nil {
		return 0
	}
	return c.value.Load()
}

// Next advances to and returns the following tick.
func (c *TickCounter) Next() uint64 {
	if c == nil {
		return 0
	}
	return c.value.Add(1)
}

// Store jumps to tick.
func (c *TickCounter) Store(tick uint64) {
	if c == nil {
		return
	}
	c.value.Store(tick)
}
