// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements discovery of OAuth 2.0 Authorization Server Metadata,
// RFC 8414, and parsing of WWW-Authenticate challenges, RFC 9728 section 5.1.

//go:build mcp_go_client_oauth

package oauthex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// AuthServerMeta is OAuth 2.0 Authorization Server Metadata (RFC 8414).
// Only the fields the MCP authorization spec relies on are kept; unknown
// fields in the document are ignored.
type AuthServerMeta struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	JWKSURI                       string   `json:"jwks_uri,omitempty"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported        []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported           []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
	// ClientIDMetadataDocumentSupported reports whether the authorization
	// server accepts an HTTPS URL as a self-describing client identifier,
	// per the Client ID Metadata Document draft extension.
	ClientIDMetadataDocumentSupported bool `json:"client_id_metadata_document_supported,omitempty"`
}

// SupportsPKCE reports whether the server advertises the S256 PKCE
// challenge method, required by the MCP authorization spec.
func (m *AuthServerMeta) SupportsPKCE() bool {
	for _, cm := range m.CodeChallengeMethodsSupported {
		if cm == "S256" {
			return true
		}
	}
	return false
}

// GetAuthServerMeta fetches and validates Authorization Server Metadata for
// the given issuer, using the given client (or the default client if nil).
// It returns an error if the server does not advertise PKCE with S256, since
// the MCP authorization spec requires it of every authorization server.
func GetAuthServerMeta(ctx context.Context, issuer string, c *http.Client) (*AuthServerMeta, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("oauthex: parsing issuer %q: %w", issuer, err)
	}
	u.Path = path.Join("/.well-known/oauth-authorization-server", u.Path)

	meta, err := getJSON[AuthServerMeta](ctx, c, u.String(), 1<<20)
	if err != nil {
		return nil, fmt.Errorf("oauthex: fetching authorization server metadata for %q: %w", issuer, err)
	}
	if meta.Issuer != issuer {
		return nil, fmt.Errorf("oauthex: metadata issuer %q does not match requested issuer %q", meta.Issuer, issuer)
	}
	if !meta.SupportsPKCE() {
		return nil, fmt.Errorf("oauthex: authorization server %q does not advertise PKCE (S256)", issuer)
	}
	return meta, nil
}

// getJSON GETs url with the given client (or http.DefaultClient if nil),
// decoding the JSON body into a T. It refuses to read more than maxBytes.
func getJSON[T any](ctx context.Context, c *http.Client, u string, maxBytes int64) (*T, error) {
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", u, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", u, err)
	}
	return &v, nil
}

// checkURLScheme rejects any URL not using HTTPS, guarding against an
// authorization server list used to stage a cross-site redirect (see #526).
func checkURLScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("URL %q does not use HTTPS", rawURL)
	}
	return nil
}

// challenge is one scheme of a parsed WWW-Authenticate header value, RFC
// 9110 section 11.6.1.
type challenge struct {
	Scheme string
	Params map[string]string
}

// ParseWWWAuthenticate parses the WWW-Authenticate header values of an HTTP
// 401 response into a list of challenges.
func ParseWWWAuthenticate(headers []string) ([]challenge, error) {
	var out []challenge
	for _, h := range headers {
		for _, part := range splitChallenges(h) {
			c, err := parseChallenge(part)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// splitChallenges splits a WWW-Authenticate header value into individual
// "scheme param=val, param=val" challenges, each starting with a bare
// (non key=value) scheme token.
func splitChallenges(header string) []string {
	var parts []string
	var cur strings.Builder
	inQuotes := false
	tokens := strings.Fields(header)
	for i, tok := range tokens {
		// A token with no "=" and not inside quotes starts a new challenge,
		// unless it's the very first token.
		if i > 0 && !inQuotes && !strings.Contains(tok, "=") && !strings.HasSuffix(strings.TrimRight(cur.String(), " "), ",") {
			parts = append(parts, strings.TrimSuffix(strings.TrimSpace(cur.String()), ","))
			cur.Reset()
		}
		cur.WriteString(tok)
		cur.WriteString(" ")
		inQuotes = strings.Count(tok, `"`)%2 == 1 && !inQuotes
	}
	if cur.Len() > 0 {
		parts = append(parts, strings.TrimSuffix(strings.TrimSpace(cur.String()), ","))
	}
	return parts
}

func parseChallenge(s string) (challenge, error) {
	s = strings.TrimSpace(s)
	fields := strings.SplitN(s, " ", 2)
	c := challenge{Scheme: strings.ToLower(fields[0]), Params: map[string]string{}}
	if len(fields) == 1 {
		return c, nil
	}
	for _, kv := range splitParams(fields[1]) {
		eq := strings.Index(kv, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(kv[:eq])
		val := strings.TrimSpace(kv[eq+1:])
		if unquoted, err := strconv.Unquote(val); err == nil {
			val = unquoted
		} else {
			val = strings.Trim(val, `"`)
		}
		c.Params[key] = val
	}
	return c, nil
}

// splitParams splits a comma-separated parameter list, respecting quoted
// strings that may themselves contain commas.
func splitParams(s string) []string {
	var parts []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
