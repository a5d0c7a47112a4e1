package auth

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDFromToken extracts the user id claim from an access token without
// verifying its signature. It is a decode-only helper for display and session
// correlation; it MUST NOT be used for authorization decisions.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}

	if id, ok := claimString(claims, "user_id"); ok {
		return id, nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}

	return "", fmt.Errorf("token carries no user id claim")
}

// claimString reads a claim that may be encoded as a string or a JSON number.
func claimString(claims jwt.MapClaims, key string) (string, bool) {
	v, ok := claims[key]
	if !ok {
		return "", false
	}

	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatInt(int64(t), 10), true
	default:
		return "", false
	}
}
