package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/transport"
)

// mockOutputInterface records output calls for verification. It is safe for
// concurrent use; chat session callbacks arrive from background goroutines.
type mockOutputInterface struct {
	mu      sync.Mutex
	calls   []call
	prompts []string // queued Prompt answers, consumed in order
}

type call struct {
	method string
	args   []any
}

func (m *mockOutputInterface) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: method, args: args})
}

func (m *mockOutputInterface) Infof(format string, a ...any) {
	m.record("Infof", format, a)
}
func (m *mockOutputInterface) Errorf(format string, a ...any) {
	m.record("Errorf", format, a)
}
func (m *mockOutputInterface) Successf(format string, a ...any) {
	m.record("Successf", format, a)
}
func (m *mockOutputInterface) Warningf(format string, a ...any) {
	m.record("Warningf", format, a)
}
func (m *mockOutputInterface) Table(headers []string, rows [][]string) {
	m.record("Table", headers, rows)
}
func (m *mockOutputInterface) Blank() {
	m.record("Blank")
}
func (m *mockOutputInterface) Bold(text string) string {
	return text
}
func (m *mockOutputInterface) Cyan(text string) string {
	return text
}
func (m *mockOutputInterface) KeyValue(key, value string) {
	m.record("KeyValue", key, value)
}
func (m *mockOutputInterface) Prompt(prompt string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: "Prompt", args: []any{prompt}})
	if len(m.prompts) == 0 {
		return ""
	}
	answer := m.prompts[0]
	m.prompts = m.prompts[1:]
	return answer
}

func (m *mockOutputInterface) has(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c.method == method {
			return true
		}
	}
	return false
}

func (m *mockOutputInterface) snapshot() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]call(nil), m.calls...)
}

// mockTransport implements transport.Interface with overridable functions.
type mockTransport struct {
	providersFunc     func(ctx context.Context) ([]api.Provider, error)
	beginLoginFunc    func(ctx context.Context, provider, codeChallenge string) (*api.LoginResponse, error)
	exchangeCodeFunc  func(ctx context.Context, req api.ExchangeRequest) (*api.ExchangeResponse, error)
	logoutFunc        func() error
	userIDFunc        func() string
	createFunc        func(ctx context.Context, params transport.CreateViolationParams) (*api.CreateViolationResponse, error)
	byBboxFunc        func(ctx context.Context, bbox [4]float64) (*api.Paged[api.Violation], error)
	byIDFunc          func(ctx context.Context, id string) (*api.Violation, error)
	closeFunc         func(ctx context.Context, violationID string, params transport.CloseViolationParams) (*api.ViolationRequest, error)
	voteFunc          func(ctx context.Context, requestID string, value api.VoteValue) (*api.VoteResponse, error)
	complainFunc      func(ctx context.Context, requestID string, req api.ComplaintRequest) error
	chatHistoryFunc   func(ctx context.Context, violationID string, page, pageSize int) (*api.Paged[api.ChatMessage], error)
	sendMessageFunc   func(ctx context.Context, violationID, text string) (*api.ChatMessage, error)
	updateMessageFunc func(ctx context.Context, violationID, messageID, text string) (*api.ChatMessage, error)
	deleteMessageFunc func(ctx context.Context, violationID, messageID string) error
}

var _ transport.Interface = (*mockTransport)(nil)

func (m *mockTransport) Providers(ctx context.Context) ([]api.Provider, error) {
	if m.providersFunc != nil {
		return m.providersFunc(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) BeginLogin(ctx context.Context, provider, codeChallenge string) (*api.LoginResponse, error) {
	if m.beginLoginFunc != nil {
		return m.beginLoginFunc(ctx, provider, codeChallenge)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) ExchangeCode(ctx context.Context, req api.ExchangeRequest) (*api.ExchangeResponse, error) {
	if m.exchangeCodeFunc != nil {
		return m.exchangeCodeFunc(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) Logout() error {
	if m.logoutFunc != nil {
		return m.logoutFunc()
	}
	return nil
}

func (m *mockTransport) UserID() string {
	if m.userIDFunc != nil {
		return m.userIDFunc()
	}
	return ""
}

func (m *mockTransport) CreateViolation(ctx context.Context, params transport.CreateViolationParams) (*api.CreateViolationResponse, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) ViolationsByBbox(ctx context.Context, bbox [4]float64) (*api.Paged[api.Violation], error) {
	if m.byBboxFunc != nil {
		return m.byBboxFunc(ctx, bbox)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) ViolationByID(ctx context.Context, id string) (*api.Violation, error) {
	if m.byIDFunc != nil {
		return m.byIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) CloseViolation(ctx context.Context, violationID string, params transport.CloseViolationParams) (*api.ViolationRequest, error) {
	if m.closeFunc != nil {
		return m.closeFunc(ctx, violationID, params)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) Vote(ctx context.Context, requestID string, value api.VoteValue) (*api.VoteResponse, error) {
	if m.voteFunc != nil {
		return m.voteFunc(ctx, requestID, value)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) Complain(ctx context.Context, requestID string, req api.ComplaintRequest) error {
	if m.complainFunc != nil {
		return m.complainFunc(ctx, requestID, req)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockTransport) ChatHistory(ctx context.Context, violationID string, page, pageSize int) (*api.Paged[api.ChatMessage], error) {
	if m.chatHistoryFunc != nil {
		return m.chatHistoryFunc(ctx, violationID, page, pageSize)
	}
	return &api.Paged[api.ChatMessage]{}, nil
}

func (m *mockTransport) SendChatMessage(ctx context.Context, violationID, text string) (*api.ChatMessage, error) {
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(ctx, violationID, text)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) UpdateChatMessage(ctx context.Context, violationID, messageID, text string) (*api.ChatMessage, error) {
	if m.updateMessageFunc != nil {
		return m.updateMessageFunc(ctx, violationID, messageID, text)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockTransport) DeleteChatMessage(ctx context.Context, violationID, messageID string) error {
	if m.deleteMessageFunc != nil {
		return m.deleteMessageFunc(ctx, violationID, messageID)
	}
	return fmt.Errorf("not implemented")
}
