package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/fleetwatch-core/internal/auth"
	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/config"
)

// rawWSMessage keeps the payload undecoded so tests can pick its type.
type rawWSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

func testHub(feed NotificationFeed) *Hub {
	return NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger(), feed)
}

func testClient(hub *Hub, role auth.Role, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
		role:          role,
	}
}

func receive(t *testing.T, c *WSClient) rawWSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg rawWSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return rawWSMessage{}
	}
}

func expectNothing(t *testing.T, c *WSClient) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Errorf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// ─── Hub ───────────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(nil)
	subscribed := testClient(hub, auth.RoleViewer, ChannelStatusChanged)
	other := testClient(hub, auth.RoleViewer, "something.else")
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast(ChannelStatusChanged, map[string]any{"device_id": "TC001"})

	msg := receive(t, subscribed)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelStatusChanged {
		t.Errorf("message = %s/%s, want event/%s", msg.Type, msg.EventType, ChannelStatusChanged)
	}
	expectNothing(t, other)
}

func TestHub_StatusChangedFilteredByRole(t *testing.T) {
	hub := testHub(nil)
	admin := testClient(hub, auth.RoleAdmin, ChannelStatusChanged)
	user := testClient(hub, auth.RoleUser, ChannelStatusChanged)
	viewer := testClient(hub, auth.RoleViewer, ChannelStatusChanged)
	for _, c := range []*WSClient{admin, user, viewer} {
		hub.Register(c)
	}

	restricted := device.StatusChangeEvent{DeviceID: "TC008", Timestamp: time.Now().UTC()}
	if err := hub.HandleStatusChange(context.Background(), restricted); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}

	msg := receive(t, admin)
	var event device.StatusChangeEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.DeviceID != "TC008" {
		t.Errorf("admin got %q, want TC008", event.DeviceID)
	}
	expectNothing(t, user)
	expectNothing(t, viewer)

	visible := device.StatusChangeEvent{DeviceID: "TC001", Timestamp: time.Now().UTC()}
	if err := hub.HandleStatusChange(context.Background(), visible); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}
	for _, c := range []*WSClient{admin, user, viewer} {
		if msg := receive(t, c); msg.EventType != ChannelStatusChanged {
			t.Errorf("%s got event_type %q, want %s", c.role, msg.EventType, ChannelStatusChanged)
		}
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(nil)
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := testClient(hub, auth.RoleViewer)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client) // second call must not close twice
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_HandleStatusChange_ProjectsPerRole(t *testing.T) {
	var calls []auth.Role
	hub := testHub(func(role auth.Role) []device.Notification {
		calls = append(calls, role)
		return []device.Notification{{ID: 1, Message: string(role)}}
	})

	admin := testClient(hub, auth.RoleAdmin, ChannelNotifications)
	user1 := testClient(hub, auth.RoleUser, ChannelNotifications)
	user2 := testClient(hub, auth.RoleUser, ChannelNotifications, ChannelStatusChanged)
	idle := testClient(hub, auth.RoleUser)
	for _, c := range []*WSClient{admin, user1, user2, idle} {
		hub.Register(c)
	}

	event := device.StatusChangeEvent{DeviceID: "TC001", Timestamp: time.Now().UTC()}
	if err := hub.HandleStatusChange(context.Background(), event); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}

	if len(calls) != 2 {
		t.Errorf("feed called %d times, want once per role (2)", len(calls))
	}

	for _, tc := range []struct {
		name   string
		client *WSClient
		role   auth.Role
	}{
		{"admin", admin, auth.RoleAdmin},
		{"user1", user1, auth.RoleUser},
	} {
		msg := receive(t, tc.client)
		if msg.EventType != ChannelNotifications {
			t.Fatalf("%s event_type = %q, want notifications", tc.name, msg.EventType)
		}
		var feed []device.Notification
		if err := json.Unmarshal(msg.Payload, &feed); err != nil {
			t.Fatalf("%s payload: %v", tc.name, err)
		}
		if len(feed) != 1 || feed[0].Message != string(tc.role) {
			t.Errorf("%s feed = %+v, want projection for %s", tc.name, feed, tc.role)
		}
	}

	if first := receive(t, user2); first.EventType != ChannelStatusChanged {
		t.Errorf("user2 first event = %q, want %s", first.EventType, ChannelStatusChanged)
	}
	if second := receive(t, user2); second.EventType != ChannelNotifications {
		t.Errorf("user2 second event = %q, want notifications", second.EventType)
	}
	expectNothing(t, idle)
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := testHub(nil)
	slow := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{ChannelStatusChanged: {}},
	}
	hub.Register(slow)

	done := make(chan struct{})
	go func() {
		for range 5 {
			hub.Broadcast(ChannelStatusChanged, "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full client buffer")
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	hub := testHub(nil)
	client := testClient(hub, auth.RoleViewer)
	hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(finished)
	}()
	cancel()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-client.send; ok {
		t.Error("client send channel still open")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

// ─── End to end ────────────────────────────────────────────────────

// dialWebSocket gets a ticket for role and connects to the test server.
func dialWebSocket(t *testing.T, ts *httptest.Server, role auth.Role) *websocket.Conn {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/ws-ticket", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, role))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ws-ticket request failed: %v", err)
	}
	defer resp.Body.Close()

	var ticket struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		t.Fatalf("decode ticket response: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket.Ticket
	ws, dialResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, dialResp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWS(t *testing.T, ws *websocket.Conn) rawWSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg rawWSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestWebSocket_StreamsChangesAndFeed(t *testing.T) {
	srv, engine := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWebSocket(t, ts, auth.RoleUser)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStatusChanged, ChannelNotifications}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	if resp := readWS(t, ws); resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}
	if initial := readWS(t, ws); initial.EventType != ChannelNotifications {
		t.Fatalf("initial feed event_type = %q, want notifications", initial.EventType)
	}

	// Restricted unit first: no status_changed reaches the user and the
	// feed stays empty.
	ctx := context.Background()
	if _, err := engine.UpdateDeviceStatus(ctx, "TC008", device.Update{}.WithAlarm(true)); err != nil {
		t.Fatalf("UpdateDeviceStatus(TC008) error: %v", err)
	}
	var feed []device.Notification
	msg := readWS(t, ws)
	if msg.EventType != ChannelNotifications {
		t.Fatalf("event_type after TC008 change = %q, want notifications only", msg.EventType)
	}
	if err := json.Unmarshal(msg.Payload, &feed); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(feed) != 0 {
		t.Errorf("user feed after TC008 change = %+v, want empty", feed)
	}

	if _, err := engine.UpdateDeviceStatus(ctx, "TC001", device.Update{}.WithAlarm(true)); err != nil {
		t.Fatalf("UpdateDeviceStatus(TC001) error: %v", err)
	}
	changed := readWS(t, ws)
	if changed.EventType != ChannelStatusChanged {
		t.Fatalf("event_type = %q, want %s", changed.EventType, ChannelStatusChanged)
	}
	var event device.StatusChangeEvent
	if err := json.Unmarshal(changed.Payload, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.DeviceID != "TC001" || !event.HasChange(device.ChangeAlarm) {
		t.Errorf("event = %+v, want TC001 alarm", event)
	}

	msg = readWS(t, ws)
	if msg.EventType != ChannelNotifications {
		t.Fatalf("event_type = %q, want notifications", msg.EventType)
	}
	if err := json.Unmarshal(msg.Payload, &feed); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(feed) != 1 || feed[0].AlertData.DeviceID != "TC001" {
		t.Errorf("user feed = %+v, want one TC001 notification", feed)
	}
}

func TestWebSocket_ClientMessages(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWebSocket(t, ts, auth.RoleViewer)

	tests := []struct {
		name     string
		send     string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p1"}`, WSTypePong},
		{"invalid json", `{nope`, WSTypeError},
		{"unknown type", `{"type":"dance","id":"d1"}`, WSTypeError},
		{"unsubscribe", `{"type":"unsubscribe","id":"u1","payload":{"channels":["notifications"]}}`, WSTypeResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if got := readWS(t, ws); got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}

func TestWebSocket_TicketRequired(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	for _, url := range []string{base, base + "?ticket=bogus"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Errorf("Dial(%s) succeeded, want rejection", url)
			continue
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Dial(%s) response = %v, want 401", url, resp)
		}
	}
}
