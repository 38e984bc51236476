package sim

// Engine defines the minimal surface area exposed to non-simulation callers.
type Engine interface {
	Apply([]Command) error
	Step(dt float64)
	Snapshot() Snapshot
}

// EngineCore is the engine a Loop drives.
type EngineCore interface {
	Engine
	Deps() Deps
}
