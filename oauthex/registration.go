// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements OAuth 2.0 Dynamic Client Registration, RFC 7591.

//go:build mcp_go_client_oauth

package oauthex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ClientRegistrationMetadata is the client metadata sent in a dynamic
// client registration request, RFC 7591 section 2.
type ClientRegistrationMetadata struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationResponse is the authorization server's response to a
// successful dynamic client registration request, RFC 7591 section 3.2.1.
type ClientRegistrationResponse struct {
	ClientID                string `json:"client_id"`
	ClientSecret            string `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64  `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt   int64  `json:"client_secret_expires_at,omitempty"`
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method,omitempty"`
}

// RegisterClient performs dynamic client registration against
// registrationEndpoint, using the given client (or http.DefaultClient if
// nil).
func RegisterClient(ctx context.Context, registrationEndpoint string, meta *ClientRegistrationMetadata, c *http.Client) (*ClientRegistrationResponse, error) {
	if c == nil {
		c = http.DefaultClient
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("oauthex: marshalling client metadata: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauthex: registering client: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("oauthex: registration endpoint %q returned %s: %s", registrationEndpoint, resp.Status, respBody)
	}
	var out ClientRegistrationResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("oauthex: decoding registration response: %w", err)
	}
	return &out, nil
}
