package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tactics/navgrid/logging"
)

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	err := sink.Write(logging.Event{
		Type:     "movement.completed",
		Tick:     7,
		Actor:    logging.ActorRef("knight"),
		Targets:  []logging.EntityRef{logging.TileRef("2")},
		Severity: logging.SeverityInfo,
		TraceID:  "abc",
		Payload:  map[string]int{"steps": 2},
	})
	require.NoError(t, err)

	line := buf.String()
	for _, want := range []string{"[movement.completed]", "tick=7", "actor=actor:knight", "severity=info", "trace=abc", "targets=tile:2", `payload={"steps":2}`} {
		assert.Contains(t, line, want)
	}
}

func TestJSONSinkWritesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	require.NoError(t, sink.Write(logging.Event{Type: "navigation.path_found", Severity: logging.SeverityWarn}))
	require.NoError(t, sink.Write(logging.Event{Type: "navigation.path_not_found"}))
	require.NoError(t, sink.Close(context.Background()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "warn", decoded["severity"])
	assert.Equal(t, "navigation.path_found", decoded["type"])
}

func TestMemorySinkFiltersAndResets(t *testing.T) {
	sink := NewMemorySink(0)
	assert.Equal(t, logging.DefaultMemoryCapacity, sink.Capacity())

	extra := map[string]any{"k": "v"}
	require.NoError(t, sink.Write(logging.Event{Type: "a", Extra: extra}))
	require.NoError(t, sink.Write(logging.Event{Type: "b"}))
	require.NoError(t, sink.Write(logging.Event{Type: "a"}))
	extra["k"] = "mutated"

	assert.Len(t, sink.EventsOfType("a"), 2)
	assert.Equal(t, "v", sink.Events()[0].Extra["k"], "stored event must be detached from caller maps")

	sink.Reset()
	assert.Empty(t, sink.Events())
}

func TestMemorySinkEvictsOldestPastCapacity(t *testing.T) {
	sink := NewMemorySink(3)
	for tick := uint64(1); tick <= 5; tick++ {
		require.NoError(t, sink.Write(logging.Event{Type: "tick", Tick: tick}))
	}

	events := sink.Events()
	require.Len(t, events, 3)
	ticks := make([]uint64, 0, len(events))
	for _, event := range events {
		ticks = append(ticks, event.Tick)
	}
	assert.Equal(t, []uint64{3, 4, 5}, ticks)
	assert.Equal(t, uint64(2), sink.Evicted())
	assert.Len(t, sink.EventsOfType("tick"), 3)

	sink.Reset()
	require.NoError(t, sink.Write(logging.Event{Type: "tick", Tick: 9}))
	require.Len(t, sink.Events(), 1)
	assert.Equal(t, uint64(9), sink.Events()[0].Tick)
	assert.Zero(t, sink.Evicted())
}
