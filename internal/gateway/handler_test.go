package gateway

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpit/timersync/internal/models"
)

func newTestGateway(t *testing.T, provider ActiveTimerProvider) (*Service, *httptest.Server) {
	t.Helper()
	svc := NewService(DefaultConfig(), provider)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return svc, srv
}

func dialSync(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sync"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendJSON(t *testing.T, ws *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func readJSON(t *testing.T, ws *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// assertSilent verifies that nothing arrives on the connection within the
// window and that the transport is still open (timeout, not close).
func assertSilent(t *testing.T, ws *websocket.Conn, window time.Duration) {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(window))
	_, data, err := ws.ReadMessage()
	require.Error(t, err, "expected no message, got: %s", data)
	netErr, ok := err.(net.Error)
	require.True(t, ok, "expected read timeout, got: %v", err)
	assert.True(t, netErr.Timeout())
}

// identify registers a connection by sending its first message. A
// sync_request against a user with no stored timers elicits no reply, so
// it doubles as a silent hello.
func identify(t *testing.T, svc *Service, ws *websocket.Conn, userID, deviceID string, wantCount int) {
	t.Helper()
	sendJSON(t, ws, Message{Type: MessageTypeSyncRequest, UserID: userID, DeviceID: deviceID})
	require.Eventually(t, func() bool {
		return svc.registry.Count() == wantCount
	}, 2*time.Second, 10*time.Millisecond, "connection was not registered")
}

func TestStatusEndpoint(t *testing.T) {
	svc, srv := newTestGateway(t, &fakeTimerProvider{})

	resp, err := http.Get(srv.URL + "/sync")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 0, status.Connections)

	ws := dialSync(t, srv)
	identify(t, svc, ws, "u1", "d1", 1)

	resp2, err := http.Get(srv.URL + "/sync")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&status))
	assert.Equal(t, 1, status.Connections)
}

func TestBroadcastBetweenDevices(t *testing.T) {
	svc, srv := newTestGateway(t, &fakeTimerProvider{})

	d1 := dialSync(t, srv)
	d2 := dialSync(t, srv)
	identify(t, svc, d1, "u1", "d1", 1)
	identify(t, svc, d2, "u1", "d2", 2)

	sendJSON(t, d1, Message{
		Type:     MessageTypeTimerStarted,
		UserID:   "u1",
		DeviceID: "d1",
		Timer: &models.Timer{
			ID:               "t1",
			UserID:           "u1",
			OriginDeviceID:   "d1",
			Label:            "pasta",
			DurationSeconds:  600,
			RemainingSeconds: 600,
			State:            models.TimerStateRunning,
			UpdatedAt:        time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		},
	})

	// D2 receives the exact event
	got := readJSON(t, d2, 2*time.Second)
	assert.Equal(t, "timer_started", got["type"])
	assert.Equal(t, "u1", got["userId"])
	assert.Equal(t, "d1", got["deviceId"])
	timer, ok := got["timer"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "t1", timer["id"])
	assert.Equal(t, "running", timer["state"])
	assert.Equal(t, float64(600), timer["remainingSeconds"])
	assert.Equal(t, "2024-01-01T10:00:00Z", timer["updatedAt"])

	// The originating device never receives its own event back
	assertSilent(t, d1, 300*time.Millisecond)
}

func TestSyncRequestRepliesOnlyToRequester(t *testing.T) {
	provider := &fakeTimerProvider{timers: map[string][]models.Timer{"u1": activeTimers()}}
	svc, srv := newTestGateway(t, provider)

	// d4 identifies with a broadcast event so it does not trigger a sync
	d4 := dialSync(t, srv)
	sendJSON(t, d4, Message{
		Type:     MessageTypeTimerUpdated,
		UserID:   "u1",
		DeviceID: "d4",
		Timer:    &activeTimers()[0],
	})
	require.Eventually(t, func() bool { return svc.registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	d3 := dialSync(t, srv)
	sendJSON(t, d3, Message{Type: MessageTypeSyncRequest, UserID: "u1", DeviceID: "d3"})

	// d3 gets exactly one timers_sync with the full list
	got := readJSON(t, d3, 2*time.Second)
	assert.Equal(t, "timers_sync", got["type"])
	timers, ok := got["timers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, timers, 2)

	// No other device receives anything, and d3 gets no second reply
	assertSilent(t, d4, 300*time.Millisecond)
	assertSilent(t, d3, 300*time.Millisecond)
}

func TestAbruptDisconnectExcludedFromBroadcast(t *testing.T) {
	svc, srv := newTestGateway(t, &fakeTimerProvider{})

	d1 := dialSync(t, srv)
	d2 := dialSync(t, srv)
	d3 := dialSync(t, srv)
	identify(t, svc, d1, "u1", "d1", 1)
	identify(t, svc, d2, "u1", "d2", 2)
	identify(t, svc, d3, "u1", "d3", 3)

	// Abrupt transport close, no close handshake
	require.NoError(t, d1.UnderlyingConn().Close())
	require.Eventually(t, func() bool {
		return svc.registry.Count() == 2
	}, 2*time.Second, 10*time.Millisecond, "dead connection was not unregistered")

	sendJSON(t, d2, Message{
		Type:     MessageTypeTimerCompleted,
		UserID:   "u1",
		DeviceID: "d2",
		Timer:    &activeTimers()[0],
	})

	got := readJSON(t, d3, 2*time.Second)
	assert.Equal(t, "timer_completed", got["type"])
	assert.Equal(t, 2, svc.registry.Count())
}

func TestReconnectSupersedesOldConnection(t *testing.T) {
	svc, srv := newTestGateway(t, &fakeTimerProvider{})

	stale := dialSync(t, srv)
	identify(t, svc, stale, "u1", "d1", 1)

	fresh := dialSync(t, srv)
	identify(t, svc, fresh, "u1", "d1", 1)

	// The superseded transport is closed by the server
	require.Eventually(t, func() bool {
		stale.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, _, err := stale.ReadMessage()
		if err == nil {
			return false
		}
		netErr, ok := err.(net.Error)
		return !ok || !netErr.Timeout()
	}, 2*time.Second, 10*time.Millisecond, "stale connection was not closed")

	// A broadcast from another device reaches only the fresh connection
	d2 := dialSync(t, srv)
	identify(t, svc, d2, "u1", "d2", 2)

	sendJSON(t, d2, Message{
		Type:     MessageTypeTimerUpdated,
		UserID:   "u1",
		DeviceID: "d2",
		Timer:    &activeTimers()[0],
	})

	got := readJSON(t, fresh, 2*time.Second)
	assert.Equal(t, "timer_updated", got["type"])
	assert.Equal(t, 2, svc.registry.Count())
}

func TestMalformedMessageGetsErrorReply(t *testing.T) {
	svc, srv := newTestGateway(t, &fakeTimerProvider{})

	ws := dialSync(t, srv)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))

	got := readJSON(t, ws, 2*time.Second)
	assert.Contains(t, got, "error")

	// The connection stays open and can still identify and sync
	identify(t, svc, ws, "u1", "d1", 1)
}

func TestUnrecognizedTypeGetsErrorReply(t *testing.T) {
	svc, srv := newTestGateway(t, &fakeTimerProvider{})

	ws := dialSync(t, srv)
	identify(t, svc, ws, "u1", "d1", 1)

	sendJSON(t, ws, map[string]string{"type": "timer_vaporized", "userId": "u1", "deviceId": "d1"})

	got := readJSON(t, ws, 2*time.Second)
	assert.Contains(t, got, "error")

	// Still registered, still open
	assert.Equal(t, 1, svc.registry.Count())
}

func TestCollaboratorFailureSendsNoSync(t *testing.T) {
	provider := &fakeTimerProvider{err: assert.AnError}
	svc, srv := newTestGateway(t, provider)

	ws := dialSync(t, srv)
	sendJSON(t, ws, Message{Type: MessageTypeSyncRequest, UserID: "u1", DeviceID: "d1"})

	require.Eventually(t, func() bool { return provider.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// No partial or malformed sync arrives; the connection stays open
	assertSilent(t, ws, 300*time.Millisecond)
	assert.Equal(t, 1, svc.registry.Count())
}
