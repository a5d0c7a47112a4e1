// Package chat implements the real-time chat session for a violation.
//
// A session owns one WebSocket connection per (violation, user) pair. Initial
// history is loaded over HTTP and merged with live socket events; the merge
// is idempotent by message id and re-sorted by creation time, so the two
// transports can deliver the same message in any order. Abnormal socket
// closures trigger reconnection with capped exponential backoff.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/constants"
	apperrors "github.com/ecowatch/ecowatch/internal/errors"

	"github.com/gorilla/websocket"
)

// State is the connection state of a chat session.
type State string

// Session connection states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// HTTPClient is the part of the API transport the session needs for history
// loading and for the HTTP fallbacks of send, update, and delete.
type HTTPClient interface {
	ChatHistory(ctx context.Context, violationID string, page, pageSize int) (*api.Paged[api.ChatMessage], error)
	SendChatMessage(ctx context.Context, violationID, text string) (*api.ChatMessage, error)
	UpdateChatMessage(ctx context.Context, violationID, messageID, text string) (*api.ChatMessage, error)
	DeleteChatMessage(ctx context.Context, violationID, messageID string) error
}

// Conn is the minimal socket surface the session uses, satisfied by
// *websocket.Conn.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a socket connection to the given URL.
type Dialer func(ctx context.Context, socketURL string) (Conn, error)

func defaultDial(ctx context.Context, socketURL string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Session is a live chat session for one violation.
type Session struct {
	violationID string
	socketURL   string
	client      HTTPClient
	dial        Dialer
	logger      *slog.Logger

	mu       sync.Mutex
	writeMu  sync.Mutex // serializes socket writes
	state    State
	attempt  int
	conn     Conn
	closed   bool
	opened   bool
	timer    *time.Timer
	messages []api.ChatMessage
	ctx      context.Context
	cancel   context.CancelFunc

	onState    func(State)
	onMessages func([]api.ChatMessage)

	// schedule is swapped in tests to observe backoff delays.
	schedule func(d time.Duration, fn func()) *time.Timer
}

// Option configures a Session.
type Option func(*Session)

// WithDialer overrides the socket dialer.
func WithDialer(dial Dialer) Option {
	return func(s *Session) { s.dial = dial }
}

// WithStateHandler registers a callback invoked on every state transition.
func WithStateHandler(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

// WithMessageHandler registers a callback invoked with a fresh snapshot after
// every change to the message list.
func WithMessageHandler(fn func([]api.ChatMessage)) Option {
	return func(s *Session) { s.onMessages = fn }
}

// NewSession creates a chat session for a violation. socketURL is the fully
// parameterized chat WebSocket URL for the current user.
func NewSession(client HTTPClient, violationID, socketURL string, log *slog.Logger, opts ...Option) *Session {
	s := &Session{
		violationID: violationID,
		socketURL:   socketURL,
		client:      client,
		dial:        defaultDial,
		logger:      log,
		state:       StateDisconnected,
	}
	s.schedule = func(d time.Duration, fn func()) *time.Timer {
		return time.AfterFunc(d, fn)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts the session: it loads the first page of history over HTTP and
// connects the socket. The two proceed independently and may complete in
// either order. Calling Open on an already opened session is a no-op.
func (s *Session) Open(ctx context.Context) {
	s.mu.Lock()
	if s.opened || s.closed {
		s.mu.Unlock()
		return
	}
	s.opened = true
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	go s.loadHistory()
	go s.connect()
}

// Close shuts the session down: it suppresses further reconnects, cancels any
// pending reconnect timer, and closes the socket. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.conn = nil
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	s.setState(StateDisconnected)
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a snapshot of the message list, sorted ascending by
// creation time.
func (s *Session) Messages() []api.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Send sends a chat message. Empty or whitespace-only text is dropped
// without any network traffic. The socket is preferred when connected; the
// sent message then arrives back asynchronously as a message frame. If the
// socket is unavailable or the write fails, the HTTP fallback is used and
// its synchronous result merged directly.
func (s *Session) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()

	if connected && conn != nil {
		frame := api.OutgoingMessageFrame{
			Type:        api.FrameMessage,
			ViolationID: s.violationID,
			Text:        trimmed,
		}
		if err := s.writeJSON(conn, frame); err == nil {
			return nil
		}
		s.logger.Debug("socket send failed, falling back to HTTP", "violation_id", s.violationID)
	}

	msg, err := s.client.SendChatMessage(ctx, s.violationID, trimmed)
	if err != nil {
		return apperrors.NewClientError(400, apperrors.ErrCodeChatSendFailed, "failed to send message", err)
	}
	s.mergeMessage(*msg)
	return nil
}

// Update edits a message over HTTP and applies the result locally. Local
// state is left untouched on failure.
func (s *Session) Update(ctx context.Context, messageID, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	msg, err := s.client.UpdateChatMessage(ctx, s.violationID, messageID, trimmed)
	if err != nil {
		return err
	}
	s.replaceMessage(*msg)
	return nil
}

// Delete removes a message over HTTP and drops it locally. Local state is
// left untouched on failure.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	if err := s.client.DeleteChatMessage(ctx, s.violationID, messageID); err != nil {
		return err
	}
	s.removeMessage(messageID)
	return nil
}

// loadHistory fetches the first page of chat history and merges it. Results
// arriving after Close are discarded.
func (s *Session) loadHistory() {
	page, err := s.client.ChatHistory(s.ctx, s.violationID, 1, constants.ChatDefaultPageSize)
	if err != nil {
		s.logger.Warn("failed to load chat history", "violation_id", s.violationID, "error", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for _, msg := range page.Items {
		s.insertLocked(msg)
	}
	snapshot := slices.Clone(s.messages)
	s.mu.Unlock()

	s.notifyMessages(snapshot)
}

// connect dials the socket and, on success, subscribes to the violation's
// channel and starts the read loop.
func (s *Session) connect() {
	s.mu.Lock()
	if s.closed || s.conn != nil {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()
	s.setState(StateConnecting)

	conn, err := s.dial(ctx, s.socketURL)
	if err != nil {
		s.logger.Debug("chat socket dial failed", "error", err)
		s.handleDisconnect(nil)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.attempt = 0
	s.mu.Unlock()
	s.setState(StateConnected)

	// Best-effort subscription; a failed control frame is not fatal.
	subscribe := api.SubscribeFrame{Type: api.FrameSubscribe, ViolationID: s.violationID}
	if err := s.writeJSON(conn, subscribe); err != nil {
		s.logger.Debug("failed to send subscribe frame", "error", err)
	}

	go s.readLoop(conn)
}

// writeJSON serializes socket writes; the websocket connection allows only
// one concurrent writer.
func (s *Session) writeJSON(conn Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// readLoop consumes frames until the socket errors or closes.
func (s *Session) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("chat socket closed unexpectedly", "error", err)
			}
			s.handleDisconnect(conn)
			return
		}
		s.handleFrame(data)
	}
}

// handleFrame applies one incoming socket frame. Unknown frame types and
// unparseable payloads are dropped; they must never take the session down.
func (s *Session) handleFrame(data []byte) {
	var frame api.ChatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Debug("ignoring unparseable chat frame", "error", err)
		return
	}

	switch frame.Type {
	case api.FrameMessage:
		var msg api.ChatMessage
		if err := json.Unmarshal(frame.Payload, &msg); err != nil || msg.ID == "" {
			return
		}
		s.mergeMessage(msg)
	case api.FrameMessageUpdated:
		var msg api.ChatMessage
		if err := json.Unmarshal(frame.Payload, &msg); err != nil || msg.ID == "" {
			return
		}
		s.replaceMessage(msg)
	case api.FrameMessageDeleted:
		var payload api.DeletedPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.ID == "" {
			return
		}
		s.removeMessage(payload.ID)
	default:
		s.logger.Debug("ignoring unknown chat frame", "type", frame.Type)
	}
}

// handleDisconnect records the lost connection and schedules a reconnect
// unless the session was closed manually.
func (s *Session) handleDisconnect(conn Conn) {
	s.mu.Lock()
	if conn != nil && s.conn != conn {
		// A newer connection has already replaced this one.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	closed := s.closed
	s.mu.Unlock()

	s.setState(StateDisconnected)
	if closed {
		return
	}
	s.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next connection attempt.
// Only one timer is ever pending; arming a new one cancels the previous.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.attempt++
	delay := ReconnectDelay(s.attempt)
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.schedule(delay, func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		s.connect()
	})
	attempt := s.attempt
	s.mu.Unlock()

	s.logger.Debug("scheduling chat reconnect", "attempt", attempt, "delay", delay)
}

// Message list mutations. The list invariant: sorted ascending by CreatedAt,
// no duplicate ids.

func (s *Session) mergeMessage(msg api.ChatMessage) {
	s.mu.Lock()
	changed := s.insertLocked(msg)
	snapshot := slices.Clone(s.messages)
	s.mu.Unlock()
	if changed {
		s.notifyMessages(snapshot)
	}
}

// insertLocked inserts msg unless its id is already present. Returns whether
// the list changed. Callers must hold s.mu.
func (s *Session) insertLocked(msg api.ChatMessage) bool {
	for _, existing := range s.messages {
		if existing.ID == msg.ID {
			return false
		}
	}
	s.messages = append(s.messages, msg)
	s.sortLocked()
	return true
}

func (s *Session) replaceMessage(msg api.ChatMessage) {
	s.mu.Lock()
	changed := false
	for i, existing := range s.messages {
		if existing.ID == msg.ID {
			s.messages[i] = msg
			changed = true
			break
		}
	}
	if changed {
		s.sortLocked()
	}
	snapshot := slices.Clone(s.messages)
	s.mu.Unlock()
	if changed {
		s.notifyMessages(snapshot)
	}
}

func (s *Session) removeMessage(id string) {
	s.mu.Lock()
	before := len(s.messages)
	s.messages = slices.DeleteFunc(s.messages, func(m api.ChatMessage) bool {
		return m.ID == id
	})
	changed := len(s.messages) != before
	snapshot := slices.Clone(s.messages)
	s.mu.Unlock()
	if changed {
		s.notifyMessages(snapshot)
	}
}

// sortLocked restores the ordering invariant. Callers must hold s.mu.
func (s *Session) sortLocked() {
	slices.SortStableFunc(s.messages, func(a, b api.ChatMessage) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	handler := s.onState
	s.mu.Unlock()

	if handler != nil {
		handler(state)
	}
}

func (s *Session) notifyMessages(snapshot []api.ChatMessage) {
	s.mu.Lock()
	handler := s.onMessages
	s.mu.Unlock()
	if handler != nil {
		handler(snapshot)
	}
}
