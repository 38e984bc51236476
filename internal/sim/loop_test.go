package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tactics/navgrid/internal/scene"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
	"tactics/navgrid/logging/simulation"
	"tactics/navgrid/logging/sinks"
)

type loopHarness struct {
	scene   *scene.Scene
	loop    *Loop
	memory  *sinks.MemorySink
	metrics *telemetry.Counters
	ticks   *TickCounter
}

func lineDocument() scene.Document {
	tile := func(name string, x float64) scene.TileSpec {
		return scene.TileSpec{Name: name, Location: scene.Vector{x, 0, 0}, Extent: scene.Vector{50, 50, 0}}
	}
	return scene.Document{
		Name:  "line",
		Grid:  scene.GridSpec{TileSpacing: 100},
		Tiles: []scene.TileSpec{tile("a", 0), tile("b", 100), tile("c", 200)},
		Actors: []scene.ActorSpec{
			{ID: "knight", Tile: "a", Movement: scene.MovementSpec{MaxSpeed: 100}},
			{ID: "squire", Tile: "c", Movement: scene.MovementSpec{MaxSpeed: 100, Range: 1}},
		},
	}
}

func newLoopHarness(t *testing.T, doc scene.Document, cfg LoopConfig, opts ...EngineOption) *loopHarness {
	t.Helper()
	h := &loopHarness{
		memory:  sinks.NewMemorySink(0),
		metrics: telemetry.NewCounters(),
		ticks:   NewTickCounter(),
	}
	pub := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		_ = h.memory.Write(event)
	})
	built, err := scene.Build(doc, scene.Options{Publisher: pub, Metrics: h.metrics, Tick: h.ticks.Current})
	require.NoError(t, err)
	h.scene = built
	deps := Deps{Metrics: h.metrics, Publisher: pub, Ticks: h.ticks}
	opts = append([]EngineOption{WithDeps(deps), WithLoopConfig(cfg), WithScript(built.Script())}, opts...)
	loop, err := NewEngine(built, opts...)
	require.NoError(t, err)
	h.loop = loop
	return h
}

func (h *loopHarness) advance(tick uint64) LoopStepResult {
	return h.loop.Advance(LoopTickContext{Tick: tick, Now: time.Unix(int64(tick), 0), Delta: 0.5})
}

func (h *loopHarness) dropReasons(t *testing.T) []string {
	t.Helper()
	var reasons []string
	for _, event := range h.memory.EventsOfType(simulation.EventCommandDropped) {
		payload, ok := event.Payload.(simulation.CommandDroppedPayload)
		require.True(t, ok, "unexpected payload %T", event.Payload)
		reasons = append(reasons, payload.Reason)
	}
	return reasons
}

func actor(t *testing.T, snapshot Snapshot, id string) ActorSnapshot {
	t.Helper()
	found, ok := snapshot.Actor(id)
	require.True(t, ok, "actor %s missing from snapshot", id)
	return found
}

func moveTo(actor, tile string) Command {
	return Command{ActorID: actor, Type: CommandMoveTo, MoveTo: &MoveToCommand{Tile: tile}}
}

func TestNewEngineRequiresScene(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrMissingScene)
}

func TestEnqueuedMoveToAppliedOnNextAdvance(t *testing.T) {
	h := newLoopHarness(t, lineDocument(), DefaultLoopConfig())

	ok, reason := h.loop.Enqueue(moveTo("knight", "c"))
	require.True(t, ok, "enqueue rejected: %q", reason)
	knight := actor(t, h.loop.Snapshot(), "knight")
	assert.Equal(t, "idle", knight.State, "command waits for the next advance")
	assert.Equal(t, "a", knight.Tile)

	result := h.advance(1)
	require.Len(t, result.Commands, 1)
	require.NoError(t, result.Rejected)
	knight = actor(t, result.Snapshot, "knight")
	assert.Equal(t, "moving", knight.State)
	assert.InDelta(t, 50, knight.Distance, 1e-9)
	assert.Equal(t, []string{"a", "b", "c"}, knight.Path)
	assert.Zero(t, h.loop.Pending())

	for tick := uint64(2); tick <= 4; tick++ {
		result = h.advance(tick)
	}
	knight = actor(t, result.Snapshot, "knight")
	assert.Equal(t, "done", knight.State)
	assert.Equal(t, "c", knight.Tile)
	assert.Equal(t, [3]float64{200, 0, 0}, knight.Location)
	assert.Equal(t, uint64(4), result.Snapshot.Tick)
	assert.Equal(t, uint64(4), h.metrics.Value(tickMetricKey))

	completed := h.memory.EventsOfType("movement.completed")
	require.Len(t, completed, 1)
	assert.Equal(t, uint64(4), completed[0].Tick)
}

func TestEnqueueEnforcesPerActorLimit(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.PerActorLimit = 2
	var dropped []string
	h := newLoopHarness(t, lineDocument(), cfg, WithLoopHooks(LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) { dropped = append(dropped, reason+":"+cmd.ActorID) },
	}))

	for i := 0; i < 2; i++ {
		ok, _ := h.loop.Enqueue(Command{ActorID: "knight", Type: CommandStop})
		require.True(t, ok, "command %d rejected", i)
	}
	ok, reason := h.loop.Enqueue(Command{ActorID: "knight", Type: CommandStop})
	assert.False(t, ok)
	assert.Equal(t, CommandRejectQueueLimit, reason)

	ok, _ = h.loop.Enqueue(Command{ActorID: "squire", Type: CommandStop})
	assert.True(t, ok, "another actor is unaffected")
	assert.Equal(t, []string{"queue_limit:knight"}, dropped)
	assert.Len(t, h.memory.EventsOfType(simulation.EventCommandDropped), 1)

	h.advance(1)
	ok, _ = h.loop.Enqueue(Command{ActorID: "knight", Type: CommandStop})
	assert.True(t, ok, "limit resets after advancing")
}

func TestEnqueueRejectsWhenBufferFull(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.CommandCapacity = 1
	cfg.PerActorLimit = 0
	h := newLoopHarness(t, lineDocument(), cfg)

	ok, _ := h.loop.Enqueue(Command{ActorID: "knight", Type: CommandStop})
	require.True(t, ok)
	ok, reason := h.loop.Enqueue(Command{ActorID: "squire", Type: CommandStop})
	assert.False(t, ok)
	assert.Equal(t, CommandRejectQueueFull, reason)
	assert.Equal(t, uint64(1), h.metrics.Value(commandBufferOverflowMetricKey))
}

func TestWorldReportsRejectedCommands(t *testing.T) {
	h := newLoopHarness(t, lineDocument(), DefaultLoopConfig())

	tests := []struct {
		cmd    Command
		reason string
	}{
		{cmd: moveTo("ghost", "a"), reason: CommandRejectUnknownActor},
		{cmd: moveTo("knight", "z"), reason: CommandRejectUnknownTile},
		{cmd: moveTo("squire", "nowhere"), reason: CommandRejectUnknownTile},
		{cmd: Command{ActorID: "knight", Type: CommandMoveTo}, reason: CommandRejectInvalid},
		{cmd: moveTo("squire", "1"), reason: ""},
		{cmd: Command{ActorID: "knight", Type: "Teleport"}, reason: CommandRejectInvalid},
	}
	var want []string
	for _, tc := range tests {
		h.loop.Enqueue(tc.cmd)
		if tc.reason != "" {
			want = append(want, tc.reason)
		}
	}
	result := h.advance(1)
	assert.ErrorIs(t, result.Rejected, ErrCommandRejected)
	assert.Equal(t, want, h.dropReasons(t))

	squire := actor(t, result.Snapshot, "squire")
	assert.Equal(t, "moving", squire.State, "squire should move to b")
}

func TestWorldRejectsOutOfRangeAndBusyMoves(t *testing.T) {
	h := newLoopHarness(t, lineDocument(), DefaultLoopConfig())

	h.loop.Enqueue(moveTo("knight", "b"))
	h.advance(1)
	h.loop.Enqueue(moveTo("knight", "c"))
	h.loop.Enqueue(moveTo("squire", "0"))
	h.loop.Enqueue(moveTo("squire", "1"))
	result := h.advance(2)
	assert.ErrorIs(t, result.Rejected, ErrCommandRejected)
	assert.Equal(t, []string{CommandRejectBusy, CommandRejectNoPath}, h.dropReasons(t))

	knight := actor(t, result.Snapshot, "knight")
	assert.Equal(t, "done", knight.State, "knight finishes its original move")
	assert.Equal(t, "b", knight.Tile)
	squire := actor(t, result.Snapshot, "squire")
	assert.Equal(t, "moving", squire.State, "squire moves within range")
}

func TestStopCommandHaltsMovement(t *testing.T) {
	h := newLoopHarness(t, lineDocument(), DefaultLoopConfig())
	h.loop.Enqueue(moveTo("knight", "c"))
	h.advance(1)
	h.loop.Enqueue(Command{ActorID: "knight", Type: CommandStop})
	result := h.advance(2)

	knight := actor(t, result.Snapshot, "knight")
	assert.Equal(t, "idle", knight.State)
	assert.InDelta(t, 50, knight.Distance, 1e-9, "knight stops after one step")
	assert.Len(t, h.memory.EventsOfType("movement.stopped"), 1)
}

func TestScriptCommandsStageOnTheirTick(t *testing.T) {
	target := "c"
	doc := lineDocument()
	doc.Script = []scene.CommandSpec{
		{Tick: 3, Actor: "knight", Stop: true},
		{Tick: 2, Actor: "knight", MoveTo: target},
	}
	h := newLoopHarness(t, doc, DefaultLoopConfig())

	result := h.advance(1)
	assert.Empty(t, result.Commands)

	result = h.advance(2)
	require.Len(t, result.Commands, 1)
	scripted := result.Commands[0]
	assert.Equal(t, CommandMoveTo, scripted.Type)
	require.NotNil(t, scripted.MoveTo)
	assert.Equal(t, target, scripted.MoveTo.Tile)
	assert.NotEmpty(t, scripted.ID)
	assert.Equal(t, uint64(2), scripted.OriginTick)

	result = h.advance(3)
	require.Len(t, result.Commands, 1)
	assert.Equal(t, CommandStop, result.Commands[0].Type)
	assert.Equal(t, "idle", actor(t, result.Snapshot, "knight").State, "script stops the knight")
}

func TestRunAdvancesUntilStopped(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.TickRate = 200
	stop := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var ticks []uint64
	h := newLoopHarness(t, lineDocument(), cfg, WithLoopHooks(LoopHooks{
		AfterStep: func(result LoopStepResult) {
			mu.Lock()
			ticks = append(ticks, result.Tick)
			count := len(ticks)
			mu.Unlock()
			assert.Equal(t, 5*time.Millisecond, result.Budget)
			if count >= 3 {
				once.Do(func() { close(stop) })
			}
		},
	}))

	done := make(chan struct{})
	go func() {
		h.loop.Run(stop)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "loop did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(ticks), 3)
	assert.Equal(t, []uint64{1, 2, 3}, ticks[:3], "ticks are sequential")
}
