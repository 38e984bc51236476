package sim

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"tactics/navgrid/internal/scene"
)

// Script releases scene commands once their tick is reached.
type Script struct {
	mu       sync.Mutex
	commands []scene.Command
	next     int
}

// NewScript copies commands and orders them by tick.
func NewScript(commands []scene.Command) *Script {
	sorted := append([]scene.Command(nil), commands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })
	return &Script{commands: sorted}
}

// Due returns the commands scheduled at or before tick that have not been
// released yet.
func (s *Script) Due(tick uint64) []Command {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Command
	for s.next < len(s.commands) && s.commands[s.next].Tick <= tick {
		entry := s.commands[s.next]
		s.next++
		cmd := Command{
			ID:         uuid.NewString(),
			OriginTick: entry.Tick,
			ActorID:    entry.Actor,
			Type:       CommandStop,
		}
		if !entry.Stop && entry.Target != nil {
			cmd.Type = CommandMoveTo
			cmd.MoveTo = &MoveToCommand{Tile: entry.Target.Label()}
		}
		due = append(due, cmd)
	}
	return due
}

// Remaining reports how many commands have not been released.
func (s *Script) Remaining() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commands) - s.next
}
