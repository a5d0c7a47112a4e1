// Package transport provides the authenticated HTTP client for the ecowatch API.
package transport

import (
	"context"

	"github.com/ecowatch/ecowatch/internal/api"
)

// Interface defines the API client interface for dependency injection and testing
type Interface interface {
	Providers(ctx context.Context) ([]api.Provider, error)
	BeginLogin(ctx context.Context, provider, codeChallenge string) (*api.LoginResponse, error)
	ExchangeCode(ctx context.Context, req api.ExchangeRequest) (*api.ExchangeResponse, error)
	Logout() error
	UserID() string

	CreateViolation(ctx context.Context, params CreateViolationParams) (*api.CreateViolationResponse, error)
	ViolationsByBbox(ctx context.Context, bbox [4]float64) (*api.Paged[api.Violation], error)
	ViolationByID(ctx context.Context, id string) (*api.Violation, error)
	CloseViolation(ctx context.Context, violationID string, params CloseViolationParams) (*api.ViolationRequest, error)
	Vote(ctx context.Context, requestID string, value api.VoteValue) (*api.VoteResponse, error)
	Complain(ctx context.Context, requestID string, req api.ComplaintRequest) error

	ChatHistory(ctx context.Context, violationID string, page, pageSize int) (*api.Paged[api.ChatMessage], error)
	SendChatMessage(ctx context.Context, violationID, text string) (*api.ChatMessage, error)
	UpdateChatMessage(ctx context.Context, violationID, messageID, text string) (*api.ChatMessage, error)
	DeleteChatMessage(ctx context.Context, violationID, messageID string) error
}

// Compile-time check to ensure Client implements Interface
var _ Interface = (*Client)(nil)
