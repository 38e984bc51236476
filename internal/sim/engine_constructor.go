package sim

import (
	"errors"

	"tactics/navgrid/internal/scene"
)

// ErrMissingScene indicates NewEngine was invoked without a scene.
var ErrMissingScene = errors.New("sim: scene is nil")

// EngineOption configures NewEngine behaviour. Options are applied in order;
// later options override earlier ones.
type EngineOption interface {
	apply(*engineConfig)
}

type engineOptionFunc func(*engineConfig)

func (f engineOptionFunc) apply(cfg *engineConfig) {
	if f != nil {
		f(cfg)
	}
}

type engineConfig struct {
	deps       Deps
	loopConfig LoopConfig
	loopHooks  LoopHooks
	script     []scene.Command
}

// WithDeps injects shared infrastructure dependencies used by the world and
// loop orchestration.
func WithDeps(deps Deps) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.deps = deps
	})
}

// WithLoopConfig overrides the default command queue and tick loop sizing.
func WithLoopConfig(config LoopConfig) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopConfig = config
	})
}

// WithLoopHooks supplies custom loop callbacks. A Prepare hook runs after
// the scripted commands for the tick have been staged.
func WithLoopHooks(hooks LoopHooks) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopHooks = hooks
	})
}

// WithScript stages scene script commands on their ticks.
func WithScript(commands []scene.Command) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.script = commands
	})
}

// NewEngine builds a loop over a world wrapping sc.
func NewEngine(sc *scene.Scene, opts ...EngineOption) (*Loop, error) {
	if sc == nil {
		return nil, ErrMissingScene
	}

	cfg := engineConfig{loopConfig: DefaultLoopConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	if cfg.deps.Ticks == nil {
		cfg.deps.Ticks = NewTickCounter()
	}

	world := NewWorld(sc, cfg.deps)
	hooks := cfg.loopHooks
	var loop *Loop
	if len(cfg.script) > 0 {
		script := NewScript(cfg.script)
		prepare := hooks.Prepare
		hooks.Prepare = func(ctx LoopTickContext) {
			for _, cmd := range script.Due(ctx.Tick) {
				loop.Enqueue(cmd)
			}
			if prepare != nil {
				prepare(ctx)
			}
		}
	}
	loop = NewLoop(world, cfg.loopConfig, hooks)
	return loop, nil
}
