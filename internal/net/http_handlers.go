package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"strconv"
	"time"

	"tactics/navgrid/internal/net/intake"
	"tactics/navgrid/internal/net/ws"
	"tactics/navgrid/internal/scene"
	"tactics/navgrid/internal/sim"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
	"tactics/navgrid/logging/sinks"
)

// SnapshotSource provides the latest simulation state.
type SnapshotSource interface {
	Snapshot() sim.Snapshot
}

type HTTPHandlerConfig struct {
	Logger    telemetry.Logger
	SceneName string
	TickRate  int
	Snapshots SnapshotSource
	// Intake stages commands posted to /commands and sent over /events.
	Intake *intake.CommandContext
	Feed   *ws.Feed
	// Recent backs /events/recent when the memory sink is enabled.
	Recent      *sinks.MemorySink
	Metrics     *telemetry.Counters
	RouterStats func() logging.RouterStats
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status      string            `json:"status"`
			ServerTime  int64             `json:"serverTime"`
			Scene       string            `json:"scene"`
			TickRate    int               `json:"tickRate"`
			Tick        uint64            `json:"tick"`
			Subscribers int               `json:"subscribers"`
			Metrics     map[string]uint64 `json:"metrics,omitempty"`
			Events      any               `json:"events,omitempty"`
		}{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			Scene:       cfg.SceneName,
			TickRate:    cfg.TickRate,
			Subscribers: cfg.Feed.Subscribers(),
		}
		if cfg.Snapshots != nil {
			payload.Tick = cfg.Snapshots.Snapshot().Tick
		}
		if cfg.Metrics != nil {
			payload.Metrics = cfg.Metrics.Snapshot()
		}
		if cfg.RouterStats != nil {
			payload.Events = cfg.RouterStats()
		}
		writeJSON(w, logger, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/snapshot", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Snapshots == nil {
			httpError(w, "no simulation", nethttp.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, nethttp.StatusOK, cfg.Snapshots.Snapshot())
	})

	mux.HandleFunc("/commands", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Intake == nil {
			httpError(w, intake.RejectReadOnly, nethttp.StatusForbidden)
			return
		}

		defer r.Body.Close()
		var req intake.Request
		if err := json.NewDecoder(nethttp.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}

		cmd, ok, reason := intake.StageCommand(*cfg.Intake, req)
		if !ok {
			status := nethttp.StatusUnprocessableEntity
			if reason == sim.CommandRejectQueueLimit || reason == sim.CommandRejectQueueFull {
				status = nethttp.StatusTooManyRequests
			}
			writeJSON(w, logger, status, struct {
				Status string `json:"status"`
				Reason string `json:"reason"`
			}{Status: "rejected", Reason: reason})
			return
		}
		writeJSON(w, logger, nethttp.StatusAccepted, struct {
			Status  string      `json:"status"`
			Command sim.Command `json:"command"`
		}{Status: "accepted", Command: cmd})
	})

	mux.HandleFunc("/events/recent", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.Recent == nil {
			httpError(w, "memory sink disabled", nethttp.StatusNotFound)
			return
		}
		var events []logging.Event
		if eventType := r.URL.Query().Get("type"); eventType != "" {
			events = cfg.Recent.EventsOfType(logging.EventType(eventType))
		} else {
			events = cfg.Recent.Events()
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				httpError(w, "invalid limit", nethttp.StatusBadRequest)
				return
			}
			if limit < len(events) {
				events = events[len(events)-limit:]
			}
		}
		if events == nil {
			events = []logging.Event{}
		}
		writeJSON(w, logger, nethttp.StatusOK, events)
	})

	mux.HandleFunc("/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		data, err := scene.MarshalSchema()
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(data)
	})

	if cfg.Feed != nil {
		feedHandler := ws.NewHandler(cfg.Feed, ws.HandlerConfig{
			Logger:   logger,
			Intake:   cfg.Intake,
			Snapshot: snapshotFunc(cfg.Snapshots),
		})
		mux.HandleFunc("/events", feedHandler.Handle)
	}

	return mux
}

func snapshotFunc(source SnapshotSource) func() sim.Snapshot {
	if source == nil {
		return nil
	}
	return source.Snapshot
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
