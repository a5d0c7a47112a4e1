package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ecowatch/ecowatch/internal/api"
	apperrors "github.com/ecowatch/ecowatch/internal/errors"
	"github.com/ecowatch/ecowatch/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is a controllable HTTPClient.
type fakeClient struct {
	mu           sync.Mutex
	history      []api.ChatMessage
	historyErr   error
	historyCalls int

	sendResult *api.ChatMessage
	sendErr    error
	sentTexts  []string

	updateResult *api.ChatMessage
	updateErr    error

	deleteErr     error
	deletedIDs    []string
	updatedTexts  []string
	updatedTarget []string
}

func (f *fakeClient) ChatHistory(_ context.Context, _ string, _, _ int) (*api.Paged[api.ChatMessage], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return &api.Paged[api.ChatMessage]{Items: f.history, Page: 1, Total: len(f.history)}, nil
}

func (f *fakeClient) SendChatMessage(_ context.Context, _, text string) (*api.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentTexts = append(f.sentTexts, text)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sendResult, nil
}

func (f *fakeClient) UpdateChatMessage(_ context.Context, _, messageID, text string) (*api.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedTarget = append(f.updatedTarget, messageID)
	f.updatedTexts = append(f.updatedTexts, text)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateResult, nil
}

func (f *fakeClient) DeleteChatMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, messageID)
	return nil
}

func (f *fakeClient) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sentTexts...)
}

// fakeConn is a scriptable Conn. Incoming frames are pushed on the frames
// channel; closing the conn unblocks ReadMessage with an abnormal close error.
type fakeConn struct {
	mu        sync.Mutex
	frames    chan []byte
	writes    []any
	writeErr  error
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.frames
	if !ok {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
	return websocket.TextMessage, data, nil
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.frames) })
	return nil
}

func (c *fakeConn) push(t *testing.T, frameType api.ChatFrameType, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(api.ChatFrame{Type: frameType, Payload: raw})
	require.NoError(t, err)
	c.frames <- data
}

func (c *fakeConn) writtenFrames() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.writes...)
}

func message(id string, at time.Time) api.ChatMessage {
	return testutil.NewMessageBuilder(id).WithViolationID("v1").WithCreatedAt(at).Build()
}

func dialerFor(conn Conn, err error) Dialer {
	return func(context.Context, string) (Conn, error) {
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func waitForMessages(t *testing.T, s *Session, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.Messages()) == n
	}, 2*time.Second, 5*time.Millisecond, "expected %d messages, have %d", n, len(s.Messages()))
}

func waitForState(t *testing.T, s *Session, state State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State() == state
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSession_HistoryAndSocketMerge(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{history: []api.ChatMessage{
		message("m1", base),
		message("m2", base.Add(time.Minute)),
	}}
	conn := newFakeConn()

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)))
	session.Open(testutil.TestContext())
	defer session.Close()

	waitForState(t, session, StateConnected)

	// The socket delivers m1 again plus a new m3; the duplicate must merge away.
	conn.push(t, api.FrameMessage, message("m1", base))
	conn.push(t, api.FrameMessage, message("m3", base.Add(2*time.Minute)))

	waitForMessages(t, session, 3)
	ids := messageIDs(session.Messages())
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
}

func TestSession_OrderingAcrossTransports(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{history: []api.ChatMessage{
		message("m2", base.Add(time.Minute)),
		message("m4", base.Add(3*time.Minute)),
	}}
	conn := newFakeConn()

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)))
	session.Open(testutil.TestContext())
	defer session.Close()

	waitForState(t, session, StateConnected)

	// Socket frames arrive out of order relative to history.
	conn.push(t, api.FrameMessage, message("m3", base.Add(2*time.Minute)))
	conn.push(t, api.FrameMessage, message("m1", base))

	waitForMessages(t, session, 4)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, messageIDs(session.Messages()))
}

func TestSession_SubscribesAfterConnect(t *testing.T) {
	client := &fakeClient{}
	conn := newFakeConn()

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)))
	session.Open(testutil.TestContext())
	defer session.Close()

	waitForState(t, session, StateConnected)

	require.Eventually(t, func() bool {
		return len(conn.writtenFrames()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	frame, ok := conn.writtenFrames()[0].(api.SubscribeFrame)
	require.True(t, ok)
	assert.Equal(t, api.FrameSubscribe, frame.Type)
	assert.Equal(t, "v1", frame.ViolationID)
}

func TestSession_SendPrefersSocket(t *testing.T) {
	client := &fakeClient{}
	conn := newFakeConn()

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)))
	session.Open(testutil.TestContext())
	defer session.Close()

	waitForState(t, session, StateConnected)
	require.NoError(t, session.Send(testutil.TestContext(), "  hello  "))

	require.Eventually(t, func() bool {
		return len(conn.writtenFrames()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	frame, ok := conn.writtenFrames()[1].(api.OutgoingMessageFrame)
	require.True(t, ok)
	assert.Equal(t, api.FrameMessage, frame.Type)
	assert.Equal(t, "hello", frame.Text, "text is trimmed before sending")
	assert.Empty(t, client.sent(), "no HTTP fallback when the socket write succeeds")
}

func TestSession_SendFallsBackToHTTP(t *testing.T) {
	sent := message("m9", time.Now().UTC())
	client := &fakeClient{sendResult: &sent}
	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)))
	session.Open(testutil.TestContext())
	defer session.Close()

	waitForState(t, session, StateConnected)
	require.NoError(t, session.Send(testutil.TestContext(), "hello"))

	assert.Equal(t, []string{"hello"}, client.sent())
	// The HTTP result is merged synchronously.
	assert.Equal(t, []string{"m9"}, messageIDs(session.Messages()))
}

func TestSession_SendWhileDisconnectedUsesHTTP(t *testing.T) {
	sent := message("m9", time.Now().UTC())
	client := &fakeClient{sendResult: &sent}

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, errors.New("no network"))))
	// Not opened: no socket, state disconnected.
	require.NoError(t, session.Send(testutil.TestContext(), "hello"))
	assert.Equal(t, []string{"hello"}, client.sent())
}

func TestSession_SendEmptyTextIsNoOp(t *testing.T) {
	tests := []string{"", "   ", "\t\n  "}
	client := &fakeClient{}
	conn := newFakeConn()

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)))
	session.Open(testutil.TestContext())
	defer session.Close()
	waitForState(t, session, StateConnected)

	for _, text := range tests {
		require.NoError(t, session.Send(testutil.TestContext(), text))
	}
	assert.Empty(t, client.sent())
	assert.Len(t, conn.writtenFrames(), 1, "only the subscribe frame was written")
}

func TestSession_SendHTTPFailure(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("backend down")}

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, errors.New("no network"))))

	err := session.Send(testutil.TestContext(), "hello")
	require.Error(t, err)
	testutil.AssertAppErrorCode(t, err, apperrors.ErrCodeChatSendFailed)
	assert.Empty(t, session.Messages())
}

func TestSession_UpdateMessage(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	original := message("m1", base)
	edited := original
	edited.Text = "edited"

	client := &fakeClient{history: []api.ChatMessage{original}, updateResult: &edited}
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, errors.New("no network"))))
	session.Open(testutil.TestContext())
	defer session.Close()
	waitForMessages(t, session, 1)

	require.NoError(t, session.Update(testutil.TestContext(), "m1", "edited"))
	assert.Equal(t, "edited", session.Messages()[0].Text)
}

func TestSession_UpdateFailureLeavesStateUntouched(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	original := message("m1", base)

	client := &fakeClient{history: []api.ChatMessage{original}, updateErr: errors.New("backend down")}
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, errors.New("no network"))))
	session.Open(testutil.TestContext())
	defer session.Close()
	waitForMessages(t, session, 1)

	require.Error(t, session.Update(testutil.TestContext(), "m1", "edited"))
	assert.Equal(t, original.Text, session.Messages()[0].Text)
}

func TestSession_DeleteMessage(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{history: []api.ChatMessage{message("m1", base), message("m2", base.Add(time.Minute))}}
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, errors.New("no network"))))
	session.Open(testutil.TestContext())
	defer session.Close()
	waitForMessages(t, session, 2)

	require.NoError(t, session.Delete(testutil.TestContext(), "m1"))
	assert.Equal(t, []string{"m2"}, messageIDs(session.Messages()))
}

func TestSession_DeleteFailureLeavesStateUntouched(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{history: []api.ChatMessage{message("m1", base)}, deleteErr: errors.New("backend down")}
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, errors.New("no network"))))
	session.Open(testutil.TestContext())
	defer session.Close()
	waitForMessages(t, session, 1)

	require.Error(t, session.Delete(testutil.TestContext(), "m1"))
	assert.Len(t, session.Messages(), 1)
}

func TestSession_IncomingUpdateAndDeleteFrames(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{history: []api.ChatMessage{message("m1", base), message("m2", base.Add(time.Minute))}}
	conn := newFakeConn()

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)))
	session.Open(testutil.TestContext())
	defer session.Close()
	waitForState(t, session, StateConnected)
	waitForMessages(t, session, 2)

	edited := message("m1", base)
	edited.Text = "edited remotely"
	conn.push(t, api.FrameMessageUpdated, edited)
	require.Eventually(t, func() bool {
		return session.Messages()[0].Text == "edited remotely"
	}, 2*time.Second, 5*time.Millisecond)

	conn.push(t, api.FrameMessageDeleted, api.DeletedPayload{ID: "m2"})
	waitForMessages(t, session, 1)
	assert.Equal(t, []string{"m1"}, messageIDs(session.Messages()))
}

func TestSession_IgnoresUnknownAndMalformedFrames(t *testing.T) {
	client := &fakeClient{}
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, errors.New("no network"))))

	session.handleFrame([]byte(`{"type":"presence","payload":{}}`))
	session.handleFrame([]byte(`not json at all`))
	session.handleFrame([]byte(`{"type":"message","payload":{"id":""}}`))
	session.handleFrame([]byte(`{"type":"message","payload":"not an object"}`))

	assert.Empty(t, session.Messages())
}

func TestSession_ReconnectBackoffSequence(t *testing.T) {
	client := &fakeClient{}

	var mu sync.Mutex
	var delays []time.Duration
	var pending func()

	dialErr := errors.New("no network")
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, dialErr)))
	session.schedule = func(d time.Duration, fn func()) *time.Timer {
		mu.Lock()
		delays = append(delays, d)
		pending = fn
		mu.Unlock()
		return time.NewTimer(time.Hour)
	}

	session.Open(testutil.TestContext())
	defer session.Close()

	// First attempt happens asynchronously from Open.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delays) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Drive the next six attempts by firing the armed timer by hand.
	for i := 0; i < 6; i++ {
		mu.Lock()
		fire := pending
		mu.Unlock()
		fire()
	}

	mu.Lock()
	got := append([]time.Duration(nil), delays...)
	mu.Unlock()
	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	assert.Equal(t, want, got)
}

func TestSession_BackoffResetsAfterSuccessfulConnect(t *testing.T) {
	client := &fakeClient{}

	var mu sync.Mutex
	var delays []time.Duration
	var pending func()

	fail := true
	conn := newFakeConn()
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(func(context.Context, string) (Conn, error) {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				return nil, errors.New("no network")
			}
			return conn, nil
		}))
	session.schedule = func(d time.Duration, fn func()) *time.Timer {
		mu.Lock()
		delays = append(delays, d)
		pending = fn
		mu.Unlock()
		return time.NewTimer(time.Hour)
	}

	session.Open(testutil.TestContext())
	defer session.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delays) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Two more failures, then let the dial succeed.
	for i := 0; i < 2; i++ {
		mu.Lock()
		fire := pending
		mu.Unlock()
		fire()
	}
	mu.Lock()
	fail = false
	fire := pending
	mu.Unlock()
	fire()
	waitForState(t, session, StateConnected)

	// Dropping the connection restarts the schedule from the base delay.
	_ = conn.Close()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delays) == 4
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	got := append([]time.Duration(nil), delays...)
	mu.Unlock()
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 1 * time.Second,
	}, got)
}

func TestSession_CloseStopsReconnects(t *testing.T) {
	client := &fakeClient{}

	var mu sync.Mutex
	var delays []time.Duration

	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(nil, errors.New("no network"))))
	session.schedule = func(d time.Duration, fn func()) *time.Timer {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return time.NewTimer(time.Hour)
	}

	session.Open(testutil.TestContext())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delays) == 1
	}, 2*time.Second, 5*time.Millisecond)

	session.Close()
	session.Close() // idempotent

	assert.Equal(t, StateDisconnected, session.State())
	mu.Lock()
	assert.Len(t, delays, 1, "no further reconnects after Close")
	mu.Unlock()
}

func TestSession_OpenIsIdempotent(t *testing.T) {
	client := &fakeClient{}
	conn := newFakeConn()
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)))

	session.Open(testutil.TestContext())
	session.Open(testutil.TestContext())
	defer session.Close()

	waitForState(t, session, StateConnected)
	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.historyCalls > 0
	}, 2*time.Second, 5*time.Millisecond)

	client.mu.Lock()
	assert.Equal(t, 1, client.historyCalls)
	client.mu.Unlock()
}

func TestSession_StateHandlerSequence(t *testing.T) {
	client := &fakeClient{}
	conn := newFakeConn()

	var mu sync.Mutex
	var states []State
	session := NewSession(client, "v1", "ws://test/chat", testutil.SilentLogger(),
		WithDialer(dialerFor(conn, nil)),
		WithStateHandler(func(state State) {
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
		}))

	session.Open(testutil.TestContext())
	waitForState(t, session, StateConnected)
	session.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, states)
}

// TestSession_OverRealWebSocket runs the session against a live gorilla server
// to cover the default dialer and wire encoding end to end.
func TestSession_OverRealWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = ws.Close() }()

		// Expect the subscribe frame first.
		var sub api.SubscribeFrame
		require.NoError(t, ws.ReadJSON(&sub))
		assert.Equal(t, api.FrameSubscribe, sub.Type)
		assert.Equal(t, "v1", sub.ViolationID)

		payload, _ := json.Marshal(message("ws1", base))
		require.NoError(t, ws.WriteJSON(api.ChatFrame{Type: api.FrameMessage, Payload: payload}))

		// Echo the next outgoing message back as a server frame.
		var out api.OutgoingMessageFrame
		require.NoError(t, ws.ReadJSON(&out))
		echo := message("ws2", base.Add(time.Minute))
		echo.Text = out.Text
		payload, _ = json.Marshal(echo)
		require.NoError(t, ws.WriteJSON(api.ChatFrame{Type: api.FrameMessage, Payload: payload}))
	}))
	defer server.Close()

	socketURL := fmt.Sprintf("ws%s", strings.TrimPrefix(server.URL, "http"))
	client := &fakeClient{}
	session := NewSession(client, "v1", socketURL, testutil.SilentLogger())
	session.Open(testutil.TestContext())
	defer session.Close()

	waitForState(t, session, StateConnected)
	waitForMessages(t, session, 1)

	require.NoError(t, session.Send(testutil.TestContext(), "over the wire"))
	waitForMessages(t, session, 2)

	messages := session.Messages()
	assert.Equal(t, []string{"ws1", "ws2"}, messageIDs(messages))
	assert.Equal(t, "over the wire", messages[1].Text)
	assert.Empty(t, client.sent(), "everything went over the socket")
}

func messageIDs(messages []api.ChatMessage) []string {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids
}
