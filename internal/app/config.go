package app

import (
	"os"
	"strconv"
	"strings"

	"tactics/navgrid/internal/observability"
	"tactics/navgrid/internal/sim"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
)

// Environment variables read by ApplyEnv.
const (
	EnvScene       = "NAVSIM_SCENE"
	EnvAddr        = "NAVSIM_ADDR"
	EnvTickRate    = "NAVSIM_TICK_RATE"
	EnvLogSinks    = "NAVSIM_LOG_SINKS"
	EnvLogJSONPath = "NAVSIM_LOG_JSON_PATH"
	EnvLogLevel    = "NAVSIM_LOG_LEVEL"
	EnvLogMemory   = "NAVSIM_LOG_MEMORY_CAPACITY"
	EnvEnablePprof = "NAVSIM_ENABLE_PPROF"
)

type Config struct {
	Logger        telemetry.Logger
	ScenePath     string
	Addr          string
	Loop          sim.LoopConfig
	Logging       logging.Config
	Observability observability.Config
}

func DefaultConfig() Config {
	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = []string{logging.SinkConsole, logging.SinkMemory, logging.SinkWebsocket}
	return Config{
		ScenePath: "scenes/corridor.yaml",
		Addr:      ":8080",
		Loop:      sim.DefaultLoopConfig(),
		Logging:   logCfg,
	}
}

// ApplyEnv overrides cfg from the process environment. Invalid values are
// reported through logger and leave the existing setting in place.
func (cfg *Config) ApplyEnv(logger telemetry.Logger) {
	cfg.applyLookup(os.LookupEnv, logger)
}

func (cfg *Config) applyLookup(lookup func(string) (string, bool), logger telemetry.Logger) {
	if raw, ok := lookup(EnvScene); ok && strings.TrimSpace(raw) != "" {
		cfg.ScenePath = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(EnvAddr); ok && strings.TrimSpace(raw) != "" {
		cfg.Addr = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(EnvTickRate); ok && raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Loop.TickRate = value
		} else {
			logger.Printf("invalid %s=%q", EnvTickRate, raw)
		}
	}
	if raw, ok := lookup(EnvLogSinks); ok {
		cfg.Logging.EnabledSinks = logging.ParseSinks(raw)
	}
	if raw, ok := lookup(EnvLogJSONPath); ok && raw != "" {
		cfg.Logging.JSON.FilePath = raw
	}
	if raw, ok := lookup(EnvLogLevel); ok && raw != "" {
		if severity, err := logging.ParseSeverity(raw); err == nil {
			cfg.Logging.MinimumSeverity = severity
		} else {
			logger.Printf("invalid %s=%q: %v", EnvLogLevel, raw, err)
		}
	}
	if raw, ok := lookup(EnvLogMemory); ok && raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Logging.Memory.Capacity = value
		} else {
			logger.Printf("invalid %s=%q", EnvLogMemory, raw)
		}
	}
	if raw, ok := lookup(EnvEnablePprof); ok && raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Observability.EnablePprof = value
		} else {
			logger.Printf("invalid %s=%q: %v", EnvEnablePprof, raw, err)
		}
	}
}
