package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/auth"
)

// Providers lists the OAuth providers offered by the backend.
func (c *Client) Providers(ctx context.Context) ([]api.Provider, error) {
	var resp []api.Provider
	err := c.DoJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/providers",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// BeginLogin starts the authorization-code-with-PKCE flow for a provider.
// The backend answers with the provider's authorization URL and a state value
// the caller must correlate with the code verifier until exchange.
func (c *Client) BeginLogin(ctx context.Context, provider, codeChallenge string) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/user/login",
		Body: api.LoginRequest{
			Provider:      provider,
			CodeChallenge: codeChallenge,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangeCode trades the authorization code and its verifier for tokens and
// persists them, making the session authenticated.
func (c *Client) ExchangeCode(ctx context.Context, req api.ExchangeRequest) (*api.ExchangeResponse, error) {
	var resp api.ExchangeResponse
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/user/exchange",
		Body:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}

	accessToken := resp.BearerToken()
	if accessToken == "" {
		return nil, fmt.Errorf("exchange response carries no token")
	}
	if err := c.store.Save(accessToken); err != nil {
		return nil, fmt.Errorf("failed to persist access token: %w", err)
	}
	if resp.RefreshToken != "" {
		if err := c.store.SaveRefresh(resp.RefreshToken); err != nil {
			return nil, fmt.Errorf("failed to persist refresh token: %w", err)
		}
	}
	if userID, idErr := auth.UserIDFromToken(accessToken); idErr == nil {
		if err := c.store.SaveUserID(userID); err != nil {
			c.logger.Warn("failed to persist user id", "error", err)
		}
	}

	return &resp, nil
}

// Logout clears the whole local session: both tokens and all cookies.
func (c *Client) Logout() error {
	return c.store.Clear()
}

// UserID returns the stored authenticated user id, or "" when signed out.
func (c *Client) UserID() string {
	return c.store.LoadUserID()
}
