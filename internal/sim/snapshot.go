package sim

import "tactics/navgrid/internal/geom"

// ActorSnapshot captures one actor's movement state after a step.
type ActorSnapshot struct {
	ID       string       `json:"id"`
	Tile     string       `json:"tile,omitempty"`
	State    string       `json:"state"`
	Location [3]float64   `json:"location"`
	Rotation geom.Rotator `json:"rotation"`
	Distance float64      `json:"distance"`
	Path     []string     `json:"path,omitempty"`
	TraceID  string       `json:"traceId,omitempty"`
}

// Snapshot is the world state after a step. Actors follow scene order.
type Snapshot struct {
	Tick   uint64          `json:"tick"`
	Actors []ActorSnapshot `json:"actors"`
}

// Actor finds an actor's entry by id.
func (s Snapshot) Actor(id string) (ActorSnapshot, bool) {
	for _, actor := range s.Actors {
		if actor.ID == id {
			return actor, true
		}
	}
	return ActorSnapshot{}, false
}
