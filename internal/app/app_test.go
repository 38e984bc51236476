package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tactics/navgrid/internal/sim"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ScenePath = "testdata/scene.yaml"
	cfg.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	cfg.Logging.EnabledSinks = []string{logging.SinkMemory, logging.SinkWebsocket}
	return cfg
}

func runScriptedMove(t *testing.T, a *App) []logging.Event {
	t.Helper()
	for tick := uint64(1); tick <= 3; tick++ {
		a.Loop().Advance(sim.LoopTickContext{Tick: tick, Now: time.Unix(int64(tick), 0), Delta: 1})
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))

	resp := httptest.NewRecorder()
	a.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/events/recent", nil))
	var events []logging.Event
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &events))
	return events
}

func TestNewRunsScriptedMove(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	assert.Equal(t, "hall", a.Scene().Name)

	events := runScriptedMove(t, a)

	knight, ok := a.Loop().Snapshot().Actor("knight")
	require.True(t, ok)
	assert.Equal(t, "c", knight.Tile)
	assert.Equal(t, "done", knight.State)
	assert.Equal(t, uint64(3), a.Metrics().Value("sim_ticks_total"))

	var completed []logging.Event
	for _, event := range events {
		if event.Type == "movement.completed" {
			completed = append(completed, event)
		}
	}
	require.Len(t, completed, 1)
	assert.Equal(t, "knight", completed[0].Actor.ID)
}

func TestRecentEventsWindowIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.Memory.Capacity = 2
	a, err := New(cfg)
	require.NoError(t, err)

	events := runScriptedMove(t, a)

	require.Len(t, events, 2)
	for _, event := range events {
		assert.NotEqual(t, logging.EventType("navigation.path_found"), event.Type, "oldest events should have been evicted")
	}
}

func TestNewFailsForMissingScene(t *testing.T) {
	cfg := testConfig()
	cfg.ScenePath = "testdata/missing.yaml"
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestPprofIsOptIn(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.EnablePprof = true
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close(context.Background())

	resp := httptest.NewRecorder()
	a.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	a.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", resp.Body.String())
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvScene:       "scenes/arena.yaml",
		EnvAddr:        ":9090",
		EnvTickRate:    "60",
		EnvLogSinks:    "JSON, console,json",
		EnvLogJSONPath: "/tmp/events.ndjson",
		EnvLogLevel:    "warn",
		EnvLogMemory:   "64",
		EnvEnablePprof: "true",
	}
	var (
		mu       sync.Mutex
		warnings []string
	)
	logger := telemetry.LoggerFunc(func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	cfg := DefaultConfig()
	cfg.applyLookup(func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}, logger)

	assert.Equal(t, "scenes/arena.yaml", cfg.ScenePath)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 60, cfg.Loop.TickRate)
	assert.Equal(t, []string{"json", "console"}, cfg.Logging.EnabledSinks)
	assert.Equal(t, "/tmp/events.ndjson", cfg.Logging.JSON.FilePath)
	assert.Equal(t, logging.SeverityWarn, cfg.Logging.MinimumSeverity)
	assert.Equal(t, 64, cfg.Logging.Memory.Capacity)
	assert.True(t, cfg.Observability.EnablePprof)
	assert.Empty(t, warnings)
}

func TestApplyEnvKeepsDefaultsOnBadValues(t *testing.T) {
	env := map[string]string{
		EnvTickRate:    "fast",
		EnvLogLevel:    "loud",
		EnvLogMemory:   "0",
		EnvEnablePprof: "maybe",
	}
	var warnings []string
	logger := telemetry.LoggerFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	cfg := DefaultConfig()
	cfg.applyLookup(func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}, logger)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Loop.TickRate, cfg.Loop.TickRate)
	assert.Equal(t, defaults.Logging.MinimumSeverity, cfg.Logging.MinimumSeverity)
	assert.Equal(t, defaults.Logging.Memory.Capacity, cfg.Logging.Memory.Capacity)
	assert.False(t, cfg.Observability.EnablePprof)
	assert.Len(t, warnings, 4)
}
