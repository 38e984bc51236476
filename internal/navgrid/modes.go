package navgrid

import (
	"fmt"
	"strings"
)

// MovementModes is a set of ways an actor can traverse a tile.
type MovementModes uint8

const (
	Walking MovementModes = 1 << iota
	Flying

	// AllModes is the union of every known movement mode.
	AllModes = Walking | Flying
)

var modeNames = []struct {
	mode MovementModes
	name string
}{
	{mode: Walking, name: "walking"},
	{mode: Flying, name: "flying"},
}

// Has reports whether the two sets share at least one mode.
func (m MovementModes) Has(other MovementModes) bool {
	return m&other != 0
}

func (m MovementModes) String() string {
	if m == 0 {
		return "none"
	}
	parts := make([]string, 0, len(modeNames))
	for _, entry := range modeNames {
		if m&entry.mode != 0 {
			parts = append(parts, entry.name)
		}
	}
	if unknown := m &^ AllModes; unknown != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint8(unknown)))
	}
	return strings.Join(parts, "|")
}

// Names lists the individual modes in the set.
func (m MovementModes) Names() []string {
	names := make([]string, 0, len(modeNames))
	for _, entry := range modeNames {
		if m&entry.mode != 0 {
			names = append(names, entry.name)
		}
	}
	return names
}

// ParseMovementModes combines mode names into a set.
func ParseMovementModes(names ...string) (MovementModes, error) {
	var modes MovementModes
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		matched := false
		for _, entry := range modeNames {
			if entry.name == name {
				modes |= entry.mode
				matched = true
				break
			}
		}
		if !matched {
			return 0, fmt.Errorf("unknown movement mode %q", raw)
		}
	}
	return modes, nil
}
