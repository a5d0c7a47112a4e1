package constants

// AuthorizationHeader is the HTTP header carrying the bearer access token.
const AuthorizationHeader = "Authorization"

// BearerPrefix is the scheme prefix for the Authorization header value.
const BearerPrefix = "Bearer "

// AcceptHeader is the HTTP Accept header name.
const AcceptHeader = "Accept"

// ContentTypeHeader is the HTTP Content-Type header name.
const ContentTypeHeader = "Content-Type"

// ContentTypeJSON is the media type used for JSON request and response bodies.
const ContentTypeJSON = "application/json"

// CookieHeader is the HTTP request header carrying stored cookies.
const CookieHeader = "Cookie"

// SetCookieHeader is the HTTP response header carrying new cookies.
const SetCookieHeader = "Set-Cookie"

// ClientTypeHeader identifies the client application to the backend.
//
//nolint:gosec // G101: header name constant, not a credential
const ClientTypeHeader = "X-Client-Type"

// ClientTypeValue is the fixed client identification sent on every request.
const ClientTypeValue = "mobile"

// SignatureHeader carries the per-request HMAC signature.
//
//nolint:gosec // G101: header name constant, not a credential
const SignatureHeader = "X-Mobile-Signature"

// TimestampHeader carries the millisecond timestamp the signature was computed over.
const TimestampHeader = "X-Mobile-Timestamp"

// RefreshPath is the path of the token refresh endpoint. Requests to it are
// exempt from the 401 refresh-and-retry logic.
const RefreshPath = "/api/user/refresh"

// HTTPStatusBadRequest is the HTTP status code for bad requests (400)
const HTTPStatusBadRequest = 400
