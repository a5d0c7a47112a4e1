package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/auth"
	"github.com/ecowatch/ecowatch/internal/constants"
	apperrors "github.com/ecowatch/ecowatch/internal/errors"
)

// refreshAccessToken coordinates the token refresh across concurrent callers.
//
// The singleflight group is the shared in-flight handle: the first caller to
// hit a 401 starts the refresh, every later caller awaits the same call, and
// the slot is released when the call settles, so a failed refresh never
// deadlocks the next attempt. The refresh request is detached from the
// triggering caller's context: its outcome is shared, so one caller's
// cancellation must not abort it for everyone.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	token, err, shared := c.refresh.Do("refresh", func() (any, error) {
		return c.doRefresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug("reused in-flight token refresh")
	}
	return token.(string), nil
}

// doRefresh performs the actual refresh network call. On any failure the
// whole session is torn down: both tokens and all cookies are cleared, which
// cascades to the UI through the store's auth-changed notification.
func (c *Client) doRefresh(ctx context.Context) (string, error) {
	body := api.RefreshRequest{}
	// The refresh token may be absent; the request then relies solely on
	// cookie-carried session state.
	if refreshToken := c.store.LoadRefresh(); refreshToken != "" {
		body.RefreshToken = refreshToken
	}

	apiURL, err := c.buildURL(constants.RefreshPath)
	if err != nil {
		return "", c.failRefresh(fmt.Errorf("invalid refresh URL: %w", err))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", c.failRefresh(fmt.Errorf("failed to marshal refresh request: %w", err))
	}

	c.logger.Debug("refreshing access token", "url", apiURL)
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: constants.RefreshPath},
		apiURL, payload, constants.ContentTypeJSON)
	if err != nil {
		return "", c.failRefresh(fmt.Errorf("refresh request failed: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.failRefresh(fmt.Errorf("refresh returned status %d", resp.StatusCode))
	}

	var parsed api.RefreshResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", c.failRefresh(fmt.Errorf("failed to parse refresh response: %w", err))
	}

	accessToken := parsed.Token
	if accessToken == "" {
		accessToken = parsed.AccessToken
	}
	if accessToken == "" {
		return "", c.failRefresh(fmt.Errorf("refresh response carries no token"))
	}

	// Access token first: listeners observing the notification must be able
	// to re-read the new value immediately.
	if err := c.store.Save(accessToken); err != nil {
		return "", c.failRefresh(fmt.Errorf("failed to persist access token: %w", err))
	}
	if parsed.RefreshToken != "" {
		if err := c.store.SaveRefresh(parsed.RefreshToken); err != nil {
			c.logger.Warn("failed to persist refresh token", "error", err)
		}
	}
	if userID, err := auth.UserIDFromToken(accessToken); err == nil {
		if err := c.store.SaveUserID(userID); err != nil {
			c.logger.Warn("failed to persist user id", "error", err)
		}
	}

	c.logger.Debug("access token refreshed")
	return accessToken, nil
}

// failRefresh clears the whole session and wraps the cause. The user must
// re-authenticate; nothing is retried automatically.
func (c *Client) failRefresh(cause error) error {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear credentials after refresh failure", "error", err)
	}
	return apperrors.ErrRefreshFailed("session expired", cause)
}
