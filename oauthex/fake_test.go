// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build mcp_go_client_oauth

package oauthex

import (
	"encoding/json"
	"net/http"
)

// NewFakeMCPServerMux returns a handler serving RFC 8414 Authorization
// Server Metadata that advertises PKCE (S256), for use against an
// httptest.NewTLSServer in tests.
func NewFakeMCPServerMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		issuer := "https://" + r.Host
		meta := AuthServerMeta{
			Issuer:                        issuer,
			AuthorizationEndpoint:         issuer + "/authorize",
			TokenEndpoint:                 issuer + "/token",
			ScopesSupported:               []string{"mcp"},
			ResponseTypesSupported:        []string{"code"},
			GrantTypesSupported:           []string{"authorization_code"},
			TokenEndpointAuthMethods:      []string{"none"},
			CodeChallengeMethodsSupported: []string{"S256"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(meta)
	})
	return mux
}
