package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Client-facing authentication failure messages. These exact strings are part
// of the API contract.
const (
	msgMissingToken = "Missing authentication token"
	msgInvalidToken = "Invalid authentication token"
)

// authContext is the per-request outcome of the authentication gate. It holds
// only the boolean outcome and the rejection mapping — never the token value —
// and is discarded when the request completes.
type authContext struct {
	// authenticated is true when the presented token matches the secret.
	authenticated bool
	// status is the HTTP status to return when not authenticated (401/403).
	status int
	// message is the client-facing rejection reason.
	message string
}

// authenticate validates the request's bearer token against the configured
// secret. A missing or malformed Authorization header maps to 401; a
// well-formed token that does not match maps to 403. The comparison is
// constant-time so the secret cannot be probed byte-by-byte via timing.
func authenticate(r *http.Request, secret string) authContext {
	token, ok := bearerToken(r)
	if !ok {
		return authContext{status: http.StatusUnauthorized, message: msgMissingToken}
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return authContext{status: http.StatusForbidden, message: msgInvalidToken}
	}

	return authContext{authenticated: true}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The second return value is false when the header is absent or
// malformed (no "Bearer" prefix, or an empty token).
func bearerToken(r *http.Request) (string, bool) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return "", false
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
