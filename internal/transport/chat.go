package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ecowatch/ecowatch/internal/api"
)

// ChatHistory fetches one page of a violation's chat history.
func (c *Client) ChatHistory(ctx context.Context, violationID string, page, pageSize int) (*api.Paged[api.ChatMessage], error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))

	var resp api.Paged[api.ChatMessage]
	err := c.DoJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/api/violations/%s/chat?%s", url.PathEscape(violationID), params.Encode()),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendChatMessage posts a chat message over HTTP. Unlike the socket path,
// the created message is returned synchronously.
func (c *Client) SendChatMessage(ctx context.Context, violationID, text string) (*api.ChatMessage, error) {
	var resp api.ChatMessage
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/violations/%s/chat/messages", url.PathEscape(violationID)),
		Body:   api.ChatMessageRequest{Text: text},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateChatMessage edits a chat message (author only).
func (c *Client) UpdateChatMessage(ctx context.Context, violationID, messageID, text string) (*api.ChatMessage, error) {
	var resp api.ChatMessage
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPatch,
		Path: fmt.Sprintf("/api/violations/%s/chat/messages/%s",
			url.PathEscape(violationID), url.PathEscape(messageID)),
		Body: api.ChatMessageRequest{Text: text},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteChatMessage removes a chat message (author only).
func (c *Client) DeleteChatMessage(ctx context.Context, violationID, messageID string) error {
	return c.DoJSON(ctx, Request{
		Method: http.MethodDelete,
		Path: fmt.Sprintf("/api/violations/%s/chat/messages/%s",
			url.PathEscape(violationID), url.PathEscape(messageID)),
	}, nil)
}
