package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ecowatch/ecowatch/internal/api"
)

// Photo is one attachment of a violation report or close request.
type Photo struct {
	Name        string
	ContentType string
	Content     []byte
}

// CreateViolationParams describes a new violation report.
type CreateViolationParams struct {
	Type        api.ViolationType
	Description string
	Lat         float64
	Lng         float64
	Accuracy    float64
	Photos      []Photo
}

// CreateViolation submits a violation report as a multipart form.
func (c *Client) CreateViolation(ctx context.Context, params CreateViolationParams) (*api.CreateViolationResponse, error) {
	fields := map[string]string{
		"type": string(params.Type),
		"lat":  strconv.FormatFloat(params.Lat, 'f', -1, 64),
		"lng":  strconv.FormatFloat(params.Lng, 'f', -1, 64),
	}
	if params.Description != "" {
		fields["description"] = params.Description
	}
	if params.Accuracy > 0 {
		fields["accuracy"] = strconv.FormatFloat(params.Accuracy, 'f', -1, 64)
	}

	var resp api.CreateViolationResponse
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/violations",
		Form: &MultipartForm{
			Fields: fields,
			Files:  photoParts(params.Photos),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ViolationsByBbox fetches the violations inside a bounding box
// (minLng, minLat, maxLng, maxLat).
func (c *Client) ViolationsByBbox(ctx context.Context, bbox [4]float64) (*api.Paged[api.Violation], error) {
	coords := make([]string, len(bbox))
	for i, v := range bbox {
		coords[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	params := url.Values{}
	params.Set("bbox", strings.Join(coords, ","))

	var resp api.Paged[api.Violation]
	err := c.DoJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/violations?" + params.Encode(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ViolationByID fetches a single violation.
func (c *Client) ViolationByID(ctx context.Context, id string) (*api.Violation, error) {
	var resp api.Violation
	err := c.DoJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/api/violations/%s", url.PathEscape(id)),
	}, &resp)
	if err != nil {
		return nil, err
	}
	// The endpoint may omit the id field; it is implied by the path.
	resp.ID = id
	return &resp, nil
}

// CloseViolationParams describes a request to close or partially close a violation.
type CloseViolationParams struct {
	Status  string // "closed" or "partially_closed"
	Comment string
	Photos  []Photo
}

// CloseViolation files a close request for a violation as a multipart form.
func (c *Client) CloseViolation(ctx context.Context, violationID string, params CloseViolationParams) (*api.ViolationRequest, error) {
	fields := map[string]string{"status": params.Status}
	if params.Comment != "" {
		fields["comment"] = params.Comment
	}

	var resp api.ViolationRequest
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/violations/%s/close-request", url.PathEscape(violationID)),
		Form: &MultipartForm{
			Fields: fields,
			Files:  photoParts(params.Photos),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Vote casts, changes, or retracts a vote on a violation request.
func (c *Client) Vote(ctx context.Context, requestID string, value api.VoteValue) (*api.VoteResponse, error) {
	var resp api.VoteResponse
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/violation-requests/%s/vote", url.PathEscape(requestID)),
		Body:   map[string]string{"value": string(value)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complain files a complaint against a violation request.
func (c *Client) Complain(ctx context.Context, requestID string, req api.ComplaintRequest) error {
	return c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/violation-requests/%s/complaints", url.PathEscape(requestID)),
		Body:   req,
	}, nil)
}

func photoParts(photos []Photo) []FormFile {
	files := make([]FormFile, 0, len(photos))
	for i, p := range photos {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("photo_%d.jpg", i+1)
		}
		contentType := p.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		files = append(files, FormFile{
			FieldName:   "photos",
			FileName:    name,
			ContentType: contentType,
			Content:     p.Content,
		})
	}
	return files
}
