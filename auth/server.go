// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

// ErrInvalidToken is returned by a TokenVerifier when the presented bearer
// token does not verify (malformed, unknown, revoked, wrong audience, ...).
var ErrInvalidToken = errors.New("invalid token")

// ErrOAuth is returned by a TokenVerifier when verification itself failed
// for a reason the client can address (e.g. the authorization server was
// unreachable), as opposed to the token being rejected outright.
var ErrOAuth = errors.New("oauth error")

// TokenInfo describes a verified bearer token.
type TokenInfo struct {
	// Expiration is when the token stops being valid. The zero value is
	// treated as "already invalid": RequireBearerToken never accepts a
	// token without an expiration.
	Expiration time.Time
	// Scopes are the scopes granted to the token.
	Scopes []string
}

// TokenVerifier validates the bearer token extracted from an incoming
// request's Authorization header, returning the token's metadata.
type TokenVerifier func(ctx context.Context, token string, req *http.Request) (*TokenInfo, error)

// RequireBearerTokenOptions configures RequireBearerToken.
type RequireBearerTokenOptions struct {
	// Scopes, if set, are the scopes a token must carry to be accepted.
	Scopes []string
	// ResourceMetadataURL, if set, is advertised in the WWW-Authenticate
	// challenge of a rejected request, per RFC 9728 section 5.1, so the
	// client can discover how to obtain a usable token.
	ResourceMetadataURL string
}

// RequireBearerToken returns middleware that extracts and verifies a bearer
// token from every incoming request, rejecting the request with 401 or 403
// if the token is missing, invalid, expired, or missing a required scope.
func RequireBearerToken(verifier TokenVerifier, opts *RequireBearerTokenOptions) func(http.Handler) http.Handler {
	if opts == nil {
		opts = &RequireBearerTokenOptions{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, msg, code := verify(r, verifier, opts)
			if code != 0 {
				if code == http.StatusUnauthorized || code == http.StatusForbidden {
					w.Header().Set("WWW-Authenticate", challengeHeader(opts))
				}
				http.Error(w, msg, code)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func challengeHeader(opts *RequireBearerTokenOptions) string {
	h := "Bearer"
	if opts.ResourceMetadataURL != "" {
		h += " resource_metadata=" + opts.ResourceMetadataURL
	}
	return h
}

// verify extracts and validates the bearer token on req. It returns the
// verified TokenInfo on success, or a human-readable message and HTTP
// status code describing the failure.
func verify(req *http.Request, verifier TokenVerifier, opts *RequireBearerTokenOptions) (*TokenInfo, string, int) {
	auth := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) && !strings.HasPrefix(auth, "bearer ") {
		return nil, "no bearer token", http.StatusUnauthorized
	}
	token := strings.TrimSpace(auth[len(prefix):])

	info, err := verifier(req.Context(), token, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			return nil, "invalid token", http.StatusUnauthorized
		case errors.Is(err, ErrOAuth):
			return nil, "oauth error", http.StatusBadRequest
		default:
			return nil, fmt.Sprintf("token verification failed: %v", err), http.StatusUnauthorized
		}
	}

	if info.Expiration.IsZero() {
		return nil, "token missing expiration", http.StatusUnauthorized
	}
	if info.Expiration.Before(time.Now()) {
		return nil, "token expired", http.StatusUnauthorized
	}
	for _, want := range opts.Scopes {
		if !slices.Contains(info.Scopes, want) {
			return nil, "insufficient scope", http.StatusForbidden
		}
	}
	return info, "", 0
}
