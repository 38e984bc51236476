package sim

import (
	"context"
	"sync"
	"time"

	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
	"tactics/navgrid/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	tickMetricKey           = "sim_ticks_total"
	tickOverrunMetricKey    = "sim_tick_budget_overrun_total"
	commandDroppedMetricKey = "sim_commands_dropped_total"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// DefaultLoopConfig returns the settings navsim runs with.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:        30,
		CatchupMaxTicks: 4,
		CommandCapacity: 256,
		PerActorLimit:   4,
		WarningStep:     64,
	}
}

func (cfg LoopConfig) normalized() LoopConfig {
	normalized := cfg
	if normalized.TickRate <= 0 {
		normalized.TickRate = 15
	}
	if normalized.CatchupMaxTicks < 1 {
		normalized.CatchupMaxTicks = 1
	}
	if normalized.CommandCapacity < 1 {
		normalized.CommandCapacity = 1
	}
	return normalized
}

// LoopTickContext identifies the step being simulated.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult reports what a step did and how long it took.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Snapshot     Snapshot
	Commands     []Command
	Rejected     error
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
}

// LoopHooks are the loop's extension points. Prepare runs before staged
// commands are drained, so it may enqueue commands for the same step.
type LoopHooks struct {
	NextTick       func() uint64
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	core    EngineCore
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics
	pub     logging.Publisher
	ticks   *TickCounter

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64

	stepMu sync.Mutex
	last   Snapshot
}

// NewLoop wraps the provided engine core with a ring-buffer queue and loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	cfg = cfg.normalized()
	deps := core.Deps()
	pub := deps.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	ticks := deps.Ticks
	if ticks == nil {
		ticks = NewTickCounter()
	}
	loop := &Loop{
		core:          core,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		pub:           pub,
		ticks:         ticks,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
	loop.last = core.Snapshot()
	return loop
}

// Deps returns the injected dependencies for the underlying engine.
func (l *Loop) Deps() Deps {
	if l == nil {
		return Deps{}
	}
	return l.core.Deps()
}

func (l *Loop) Config() LoopConfig {
	if l == nil {
		return LoopConfig{}
	}
	return l.config
}

// Snapshot returns the state captured after the most recent step. It is
// safe to call while Run is active.
func (l *Loop) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	l.stepMu.Lock()
	defer l.stepMu.Unlock()
	return l.last
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// DrainCommands clears the staged command queue without advancing the engine.
func (l *Loop) DrainCommands() []Command {
	if l == nil {
		return nil
	}
	return l.drainCommands()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
			if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
				l.perActorCount[cmd.ActorID]--
			}
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	l.stepMu.Lock()
	defer l.stepMu.Unlock()

	l.ticks.Store(ctx.Tick)
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	commands := l.drainCommands()
	rejected := l.core.Apply(commands)
	l.core.Step(ctx.Delta)
	if l.metrics != nil {
		l.metrics.Add(tickMetricKey, 1)
	}
	l.last = l.core.Snapshot()
	return LoopStepResult{
		Tick:     ctx.Tick,
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		Snapshot: l.last,
		Commands: commands,
		Rejected: rejected,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	clock := l.core.Deps().Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	last := clock.Now()
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds * float64(l.config.CatchupMaxTicks)
	budgetDuration := time.Second / time.Duration(tickRate)
	var overrunStreak uint64

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			var tick uint64
			if l.hooks.NextTick != nil {
				tick = l.hooks.NextTick()
			} else {
				tick = l.ticks.Current() + 1
			}

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: tick, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			if result.Duration > budgetDuration {
				overrunStreak++
				l.reportOverrun(result, overrunStreak)
			} else {
				overrunStreak = 0
			}

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if l.metrics != nil {
		l.metrics.Add(commandDroppedMetricKey, 1)
	}
	simulation.CommandDropped(context.Background(), l.pub, l.ticks.Current(), logging.ActorRef(cmd.ActorID), cmd.ID, simulation.CommandDroppedPayload{
		Reason:  reason,
		Command: cmd.String(),
	})
	if reason == CommandRejectQueueLimit && count > 0 && count&(count-1) == 0 {
		if l.logger != nil {
			l.logger.Printf(
				"[backpressure] dropping command actor=%s type=%s count=%d limit=%d",
				cmd.ActorID,
				cmd.Type,
				count,
				l.config.PerActorLimit,
			)
		}
	}
}

func (l *Loop) reportOverrun(result LoopStepResult, streak uint64) {
	if l.metrics != nil {
		l.metrics.Add(tickOverrunMetricKey, 1)
	}
	ratio := 0.0
	if result.Budget > 0 {
		ratio = float64(result.Duration) / float64(result.Budget)
	}
	simulation.TickBudgetOverrun(context.Background(), l.pub, result.Tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          ratio,
		Streak:         streak,
	})
}
