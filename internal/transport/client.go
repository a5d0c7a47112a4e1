// Package transport provides the authenticated HTTP client for the ecowatch
// API. It attaches bearer, signature, and cookie headers to every request and
// transparently recovers from access token expiry: concurrent 401 responses
// are coalesced into a single token refresh, after which each original
// request is replayed exactly once.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/auth"
	"github.com/ecowatch/ecowatch/internal/config"
	"github.com/ecowatch/ecowatch/internal/constants"
	"github.com/ecowatch/ecowatch/internal/cookies"
	"github.com/ecowatch/ecowatch/internal/logger"

	"golang.org/x/sync/singleflight"
)

// Client is the authenticated API transport.
type Client struct {
	config  *config.Config
	store   *auth.Store
	signer  *auth.Signer
	jar     *cookies.Jar
	http    *http.Client
	logger  *slog.Logger
	refresh singleflight.Group
	now     func() time.Time
}

// New creates a new authenticated transport.
func New(cfg *config.Config, store *auth.Store, jar *cookies.Jar, log *slog.Logger) *Client {
	return &Client{
		config: cfg,
		store:  store,
		signer: auth.NewSigner(cfg.MobileSecret),
		jar:    jar,
		http:   &http.Client{},
		logger: log,
		now:    time.Now,
	}
}

// FormFile is one file part of a multipart request.
type FormFile struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     []byte
}

// MultipartForm describes a multipart/form-data request body.
type MultipartForm struct {
	Fields map[string]string
	Files  []FormFile
}

// Request represents an API request. Body is JSON-encoded when non-nil;
// Form takes precedence over Body when both are set.
type Request struct {
	Method string
	Path   string
	Body   any
	Form   *MultipartForm
	// Header carries optional caller-provided headers. A caller-provided
	// Content-Type is dropped for multipart requests so the generated
	// boundary is never clobbered.
	Header http.Header
}

// Response represents an API response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// buildURL constructs the full API URL from path and query string
func (c *Client) buildURL(path string) (string, error) {
	var pathPart, queryString string
	if idx := strings.Index(path, "?"); idx != -1 {
		pathPart = path[:idx]
		queryString = path[idx+1:]
	} else {
		pathPart = path
	}

	apiURL, err := url.JoinPath(c.config.APIEndpoint, pathPart)
	if err != nil {
		return "", err
	}

	if queryString != "" {
		apiURL = apiURL + "?" + queryString
	}

	return apiURL, nil
}

// Do makes an HTTP request to the API.
//
// Every attempt recomputes the signature headers and re-attaches cookies. On
// a 401 response the client performs the coordinated token refresh and
// replays the request once; the replay's result is returned unmodified,
// whatever its status. Requests to the refresh endpoint itself are exempt so
// a 401 from it can never recurse. Network-level failures propagate
// unchanged: only a received 401 triggers the refresh path.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	apiURL, err := c.buildURL(req.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid API endpoint: %w", err)
	}

	logArgs := []any{
		"operation", "HTTP.Request",
		"method", req.Method,
		"url", apiURL,
		"hasBody", len(body) > 0,
	}
	logArgs = append(logArgs, logger.GetDeadlineInfo(ctx)...)
	c.logger.Debug("calling API", logArgs...)

	resp, err := c.send(ctx, req, apiURL, body, contentType)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || isRefreshPath(req.Path) {
		return resp, nil
	}

	// Coordinated refresh: across concurrent callers exactly one refresh
	// network call is made and everyone shares its outcome.
	if _, err := c.refreshAccessToken(ctx); err != nil {
		c.logger.Warn("token refresh failed", "error", err)
		// Credentials are already cleared; surface the original 401.
		return resp, nil
	}

	c.logger.Debug("retrying request with refreshed token", "method", req.Method, "url", apiURL)
	return c.send(ctx, req, apiURL, body, contentType)
}

// send performs one fully-headered request/response cycle.
func (c *Client) send(ctx context.Context, req Request, apiURL string, body []byte, contentType string) (*Response, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if req.Form != nil {
		// The multipart writer owns the content type; a caller-inherited
		// one would carry the wrong boundary.
		httpReq.Header.Del(constants.ContentTypeHeader)
	}
	if contentType != "" {
		httpReq.Header.Set(constants.ContentTypeHeader, contentType)
	}

	if token := c.store.Load(); token != "" {
		httpReq.Header.Set(constants.AuthorizationHeader, constants.BearerPrefix+token)
	}
	httpReq.Header.Set(constants.AcceptHeader, constants.ContentTypeJSON)
	httpReq.Header.Set(constants.ClientTypeHeader, constants.ClientTypeValue)

	// Signature over the current timestamp; replays recompute both.
	timestamp := c.now().UnixMilli()
	httpReq.Header.Set(constants.SignatureHeader, c.signer.Sign(timestamp))
	httpReq.Header.Set(constants.TimestampHeader, fmt.Sprintf("%d", timestamp))

	c.jar.Attach(apiURL, httpReq.Header)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.jar.Absorb(apiURL, resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("received HTTP response",
		"status", resp.StatusCode,
		"bodySize", len(respBody),
		"method", req.Method,
		"url", apiURL)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// DoJSON makes a request and unmarshals the response into the provided interface
func (c *Client) DoJSON(ctx context.Context, req Request, result any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}

	if resp.StatusCode >= constants.HTTPStatusBadRequest {
		var errorResp api.ErrorResponse
		if err = json.Unmarshal(resp.Body, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(resp.Body))
		}
		return fmt.Errorf("[%d] %s: %s", resp.StatusCode, errorResp.Error, errorResp.Details)
	}

	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	if err = json.Unmarshal(resp.Body, result); err != nil {
		c.logger.Debug("response body", "body", string(resp.Body))
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// encodeBody serializes the request body once so replays reuse the same bytes.
func encodeBody(req Request) (body []byte, contentType string, err error) {
	if req.Form != nil {
		return encodeMultipart(req.Form)
	}

	if req.Body == nil {
		return nil, "", nil
	}

	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, constants.ContentTypeJSON, nil
}

func encodeMultipart(form *MultipartForm) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range form.Fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %q: %w", name, err)
		}
	}

	for _, file := range form.Files {
		// CreateFormFile would stamp every part application/octet-stream,
		// losing the per-photo media type the backend expects.
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%s; filename=%s`,
			quoteHeaderValue(file.FieldName), quoteHeaderValue(file.FileName)))
		partType := file.ContentType
		if partType == "" {
			partType = "application/octet-stream"
		}
		header.Set(constants.ContentTypeHeader, partType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %q: %w", file.FileName, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write form file %q: %w", file.FileName, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

var headerValueEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func quoteHeaderValue(s string) string {
	return `"` + headerValueEscaper.Replace(s) + `"`
}

func isRefreshPath(path string) bool {
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	return strings.TrimSuffix(path, "/") == constants.RefreshPath
}
