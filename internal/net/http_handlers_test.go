package net

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tactics/navgrid/internal/net/intake"
	"tactics/navgrid/internal/net/ws"
	"tactics/navgrid/internal/scene"
	"tactics/navgrid/internal/sim"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
	"tactics/navgrid/logging/sinks"
)

const testScene = `
name: corridor
grid:
  tile_spacing: 100
tiles:
  - {name: a, location: [0, 0, 0], extent: [50, 50, 0]}
  - {name: b, location: [100, 0, 0], extent: [50, 50, 0]}
actors:
  - id: knight
    tile: a
    movement: {max_speed: 100}
`

type httpHarness struct {
	handler http.Handler
	loop    *sim.Loop
	memory  *sinks.MemorySink
	metrics *telemetry.Counters
}

func newHTTPHarness(t *testing.T) *httpHarness {
	t.Helper()
	doc, err := scene.Parse([]byte(testScene))
	require.NoError(t, err)
	memory := sinks.NewMemorySink(0)
	metrics := telemetry.NewCounters()
	ticks := sim.NewTickCounter()
	pub := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		_ = memory.Write(event)
	})
	built, err := scene.Build(doc, scene.Options{Publisher: pub, Metrics: metrics, Tick: ticks.Current})
	require.NoError(t, err)
	loop, err := sim.NewEngine(built, sim.WithDeps(sim.Deps{Publisher: pub, Metrics: metrics, Ticks: ticks}))
	require.NoError(t, err)
	handler := NewHTTPHandler(HTTPHandlerConfig{
		SceneName: built.Name,
		TickRate:  30,
		Snapshots: loop,
		Intake: &intake.CommandContext{
			Queue: loop,
			HasActor: func(id string) bool {
				_, err := built.Actor(id)
				return err == nil
			},
			Tick: ticks.Current,
		},
		Feed:    ws.NewFeed(nil, metrics),
		Recent:  memory,
		Metrics: metrics,
	})
	return &httpHarness{handler: handler, loop: loop, memory: memory, metrics: metrics}
}

func (h *httpHarness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func TestHTTPHealthz(t *testing.T) {
	h := newHTTPHarness(t)
	resp := h.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", resp.Body.String())
}

func TestHTTPCommandIsAppliedOnNextAdvance(t *testing.T) {
	h := newHTTPHarness(t)

	resp := h.do(http.MethodPost, "/commands", `{"type":"moveTo","actor":"knight","tile":"b"}`)
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	var accepted struct {
		Status  string      `json:"status"`
		Command sim.Command `json:"command"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &accepted))
	assert.NotEmpty(t, accepted.Command.ID)
	require.NotNil(t, accepted.Command.MoveTo)
	assert.Equal(t, "b", accepted.Command.MoveTo.Tile)
	assert.Equal(t, 1, h.loop.Pending())

	h.loop.Advance(sim.LoopTickContext{Tick: 1, Now: time.Unix(1, 0), Delta: 1})

	resp = h.do(http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var snapshot sim.Snapshot
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snapshot))
	assert.Equal(t, uint64(1), snapshot.Tick)
	knight, ok := snapshot.Actor("knight")
	require.True(t, ok)
	assert.Equal(t, "done", knight.State)
	assert.Equal(t, "b", knight.Tile)
}

func TestHTTPCommandRejections(t *testing.T) {
	h := newHTTPHarness(t)
	tests := []struct {
		name   string
		method string
		body   string
		code   int
		reason string
	}{
		{name: "wrong method", method: http.MethodGet, code: http.StatusMethodNotAllowed},
		{name: "malformed", method: http.MethodPost, body: `{`, code: http.StatusBadRequest},
		{name: "unknown actor", method: http.MethodPost, body: `{"type":"stop","actor":"ghost"}`, code: http.StatusUnprocessableEntity, reason: intake.RejectUnknownActor},
		{name: "missing tile", method: http.MethodPost, body: `{"type":"moveTo","actor":"knight"}`, code: http.StatusUnprocessableEntity, reason: intake.RejectMissingTile},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.do(tc.method, "/commands", tc.body)
			assert.Equal(t, tc.code, resp.Code, resp.Body.String())
			if tc.reason != "" {
				assert.Contains(t, resp.Body.String(), tc.reason)
			}
		})
	}
}

func TestHTTPCommandQueueLimit(t *testing.T) {
	h := newHTTPHarness(t)
	limit := h.loop.Config().PerActorLimit
	for i := 0; i < limit; i++ {
		resp := h.do(http.MethodPost, "/commands", `{"type":"stop","actor":"knight"}`)
		require.Equal(t, http.StatusAccepted, resp.Code, "command %d", i)
	}
	resp := h.do(http.MethodPost, "/commands", `{"type":"stop","actor":"knight"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestHTTPRecentEvents(t *testing.T) {
	h := newHTTPHarness(t)
	h.do(http.MethodPost, "/commands", `{"type":"moveTo","actor":"knight","tile":"b"}`)
	h.loop.Advance(sim.LoopTickContext{Tick: 1, Delta: 1})

	resp := h.do(http.MethodGet, "/events/recent?type=movement.completed", "")
	var events []map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &events))
	require.Len(t, events, 1, resp.Body.String())
	assert.Equal(t, "movement.completed", events[0]["type"])

	resp = h.do(http.MethodGet, "/events/recent?limit=1", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &events))
	assert.Len(t, events, 1, "limit applies")

	resp = h.do(http.MethodGet, "/events/recent?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHTTPDiagnosticsAndSchema(t *testing.T) {
	h := newHTTPHarness(t)
	h.loop.Advance(sim.LoopTickContext{Tick: 1, Delta: 0.1})

	resp := h.do(http.MethodGet, "/diagnostics", "")
	var payload struct {
		Status   string            `json:"status"`
		Scene    string            `json:"scene"`
		TickRate int               `json:"tickRate"`
		Tick     uint64            `json:"tick"`
		Metrics  map[string]uint64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, "corridor", payload.Scene)
	assert.Equal(t, 30, payload.TickRate)
	assert.Equal(t, uint64(1), payload.Tick)
	assert.Equal(t, uint64(1), payload.Metrics["sim_ticks_total"])

	resp = h.do(http.MethodGet, "/schema", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"tile_spacing"`)
}
