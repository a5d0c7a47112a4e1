// Package api defines the API types and structures used across ecowatch.
// It contains request and response structures for the backend API.
package api

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Provider describes one OAuth provider offered by the backend.
type Provider struct {
	Provider string `json:"Provider"`
	Name     string `json:"Name,omitempty"`
}

// LoginResponse is returned by the begin-login endpoint.
type LoginResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state,omitempty"`
}

// LoginRequest starts the authorization-code-with-PKCE flow.
type LoginRequest struct {
	Provider      string `json:"provider"`
	CodeChallenge string `json:"code_challenge"`
}

// ExchangeRequest trades an authorization code for tokens.
type ExchangeRequest struct {
	Provider     string `json:"provider"`
	Code         string `json:"code"`
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
}

// ExchangeResponse carries the minted tokens. The backend answers with
// either "token" or "access_token" depending on revision.
type ExchangeResponse struct {
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// BearerToken returns whichever access token field is populated.
func (r ExchangeResponse) BearerToken() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// RefreshRequest is the body of the token refresh call. The refresh token is
// optional: without it the request relies on cookie-carried session state.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// RefreshResponse mirrors ExchangeResponse for the refresh endpoint.
type RefreshResponse struct {
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ViolationType enumerates the reportable violation categories.
type ViolationType string

// Known violation types.
const (
	ViolationGarbage       ViolationType = "garbage"
	ViolationPollution     ViolationType = "pollution"
	ViolationDeforestation ViolationType = "deforestation"
)

// Violation is one reported environmental violation.
type Violation struct {
	ID          string        `json:"id"`
	Type        ViolationType `json:"type"`
	Description string        `json:"description,omitempty"`
	Lat         float64       `json:"lat"`
	Lng         float64       `json:"lng"`
	Accuracy    float64       `json:"accuracy,omitempty"`
	Status      string        `json:"status,omitempty"`
	Photos      []string      `json:"photos,omitempty"`
	CreatedAt   time.Time     `json:"created_at,omitzero"`
}

// Paged is a generic paginated response envelope.
type Paged[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// CreateViolationResponse is returned when a violation report is accepted.
type CreateViolationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// ViolationRequest is a request to close or partially close a violation.
type ViolationRequest struct {
	ID          string    `json:"id"`
	ViolationID string    `json:"violation_id"`
	Status      string    `json:"status"`
	Comment     string    `json:"comment,omitempty"`
	Likes       int       `json:"likes"`
	Dislikes    int       `json:"dislikes"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// VoteValue enumerates the allowed vote values on a violation request.
type VoteValue string

// Allowed vote values.
const (
	VoteLike    VoteValue = "like"
	VoteDislike VoteValue = "dislike"
	VoteNone    VoteValue = "none"
)

// VoteResponse carries the updated tallies after a vote.
type VoteResponse struct {
	ViolationRequestID string `json:"violation_request_id"`
	Likes              int    `json:"likes"`
	Dislikes           int    `json:"dislikes"`
	UserVote           string `json:"user_vote,omitempty"`
}

// ComplaintRequest reports a violation request for moderation.
type ComplaintRequest struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}
