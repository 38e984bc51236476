package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tactics/navgrid/internal/net/intake"
	"tactics/navgrid/internal/sim"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
	movementlog "tactics/navgrid/logging/movement"
)

type receivedEvent struct {
	Type  string `json:"type"`
	Event struct {
		Type    string `json:"type"`
		Tick    uint64 `json:"tick"`
		TraceID string `json:"traceId"`
		Actor   struct {
			ID string `json:"id"`
		} `json:"actor"`
	} `json:"event"`
}

type commandRecorder struct {
	mu       sync.Mutex
	commands []sim.Command
	accept   bool
	reason   string
}

func (r *commandRecorder) Enqueue(cmd sim.Command) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	return r.accept, r.reason
}

func (r *commandRecorder) recorded() []sim.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sim.Command(nil), r.commands...)
}

func startFeedServer(t *testing.T, feed *Feed, cfg HandlerConfig) *httptest.Server {
	t.Helper()
	if cfg.Snapshot == nil {
		cfg.Snapshot = func() sim.Snapshot { return sim.Snapshot{Tick: 7} }
	}
	handler := NewHandler(feed, cfg)
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return srv
}

func dialFeed(t *testing.T, baseURL string, query url.Values) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, baseURL, query), nil)
	if err != nil && resp != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "failed to open websocket connection")
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})

	var hello snapshotMessage
	readJSON(t, conn, &hello)
	require.Equal(t, messageTypeSnapshot, hello.Type)
	require.Equal(t, uint64(7), hello.Snapshot.Tick, "initial snapshot")
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, out any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err, "failed to read message")
	require.NoError(t, json.Unmarshal(payload, out), "failed to decode message %s", payload)
}

func waitForSubscribers(t *testing.T, feed *Feed, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return feed.Subscribers() == want
	}, 5*time.Second, 5*time.Millisecond, "expected %d subscribers", want)
}

func TestFeedDeliversRoutedMovementEvent(t *testing.T) {
	metrics := telemetry.NewCounters()
	feed := NewFeed(nil, metrics)
	srv := startFeedServer(t, feed, HandlerConfig{})
	conn := dialFeed(t, srv.URL, nil)

	router, err := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{{Name: logging.SinkWebsocket, Sink: feed}})
	require.NoError(t, err)
	movementlog.Started(context.Background(), router, 3, logging.ActorRef("knight"), "trace-1", movementlog.StartedPayload{
		Tiles:  []string{"a", "b"},
		Cost:   1,
		Length: 100,
	})

	var msg receivedEvent
	readJSON(t, conn, &msg)
	assert.Equal(t, messageTypeEvent, msg.Type)
	assert.Equal(t, string(movementlog.EventStarted), msg.Event.Type)
	assert.Equal(t, uint64(3), msg.Event.Tick)
	assert.Equal(t, "trace-1", msg.Event.TraceID)
	assert.Equal(t, "knight", msg.Event.Actor.ID)

	require.NoError(t, router.Close(context.Background()))
	assert.Zero(t, feed.Subscribers(), "closing the feed drops sessions")
	assert.Equal(t, uint64(1), metrics.Value(feedSentMetricKey))
}

func TestFeedFiltersByActorAndCategory(t *testing.T) {
	feed := NewFeed(nil, nil)
	srv := startFeedServer(t, feed, HandlerConfig{})
	conn := dialFeed(t, srv.URL, url.Values{"actor": {"squire"}, "category": {"movement"}})
	waitForSubscribers(t, feed, 1)

	events := []logging.Event{
		{Type: "movement.started", Actor: logging.ActorRef("knight"), Category: logging.CategoryMovement, Severity: logging.SeverityInfo},
		{Type: "navigation.path_not_found", Actor: logging.ActorRef("squire"), Category: logging.CategoryNavigation, Severity: logging.SeverityInfo},
		{Type: "movement.completed", Actor: logging.ActorRef("squire"), Category: logging.CategoryMovement, Severity: logging.SeverityInfo},
	}
	for _, event := range events {
		require.NoError(t, feed.Write(event))
	}

	var msg receivedEvent
	readJSON(t, conn, &msg)
	assert.Equal(t, "movement.completed", msg.Event.Type, "only the squire movement event passes")
}

func TestHandleRejectsBadSeverityFilter(t *testing.T) {
	feed := NewFeed(nil, nil)
	srv := startFeedServer(t, feed, HandlerConfig{})

	resp, err := http.Get(srv.URL + "/?severity=loud")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStagesCommands(t *testing.T) {
	recorder := &commandRecorder{accept: true}
	feed := NewFeed(nil, nil)
	srv := startFeedServer(t, feed, HandlerConfig{
		Intake: &intake.CommandContext{Queue: recorder, Tick: func() uint64 { return 12 }},
	})
	conn := dialFeed(t, srv.URL, nil)

	seq := uint64(1)
	require.NoError(t, conn.WriteJSON(clientMessage{Type: intake.TypeMoveTo, Actor: "knight", Tile: "c", CommandSeq: &seq}))
	var ack commandAckMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, messageTypeCommandAck, ack.Type)
	assert.Equal(t, uint64(1), ack.Seq)
	assert.Equal(t, uint64(12), ack.Tick)
	require.NotEmpty(t, ack.CommandID)

	commands := recorder.recorded()
	require.Len(t, commands, 1)
	cmd := commands[0]
	assert.Equal(t, sim.CommandMoveTo, cmd.Type)
	assert.Equal(t, "knight", cmd.ActorID)
	require.NotNil(t, cmd.MoveTo)
	assert.Equal(t, "c", cmd.MoveTo.Tile)
	assert.Equal(t, ack.CommandID, cmd.ID)

	seq = 2
	require.NoError(t, conn.WriteJSON(clientMessage{Type: intake.TypeMoveTo, Actor: "knight", CommandSeq: &seq}))
	var reject commandRejectMessage
	readJSON(t, conn, &reject)
	assert.Equal(t, messageTypeCommandReject, reject.Type)
	assert.Equal(t, uint64(2), reject.Seq)
	assert.Equal(t, intake.RejectMissingTile, reject.Reason)
}

func TestHandleReportsQueueRejections(t *testing.T) {
	recorder := &commandRecorder{accept: false, reason: sim.CommandRejectQueueLimit}
	feed := NewFeed(nil, nil)
	srv := startFeedServer(t, feed, HandlerConfig{Intake: &intake.CommandContext{Queue: recorder}})
	conn := dialFeed(t, srv.URL, nil)

	seq := uint64(9)
	require.NoError(t, conn.WriteJSON(clientMessage{Type: intake.TypeStop, Actor: "knight", CommandSeq: &seq}))
	var reject commandRejectMessage
	readJSON(t, conn, &reject)
	assert.Equal(t, sim.CommandRejectQueueLimit, reject.Reason)
	assert.True(t, reject.Retry, "queue rejections are retryable")
	assert.Equal(t, uint64(9), reject.Seq)
}

func TestHandleIsReadOnlyWithoutCommandSink(t *testing.T) {
	feed := NewFeed(nil, nil)
	srv := startFeedServer(t, feed, HandlerConfig{})
	conn := dialFeed(t, srv.URL, nil)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: intake.TypeStop, Actor: "knight"}))
	var reject commandRejectMessage
	readJSON(t, conn, &reject)
	assert.Equal(t, intake.RejectReadOnly, reject.Reason)
}

func websocketURL(t *testing.T, baseURL string, query url.Values) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	require.NoError(t, err, "failed to parse test server url")
	parsed.Scheme = "ws"
	parsed.Path = "/"
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
