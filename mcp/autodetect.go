// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements a [Transport] that discovers, on the first
// message sent, whether an endpoint speaks the streamable HTTP transport
// or must be approached over the legacy SSE transport.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// An AutoDetectTransport is a [Transport] that selects, on the first
// message written to the connection (which by protocol is the initialize
// request), whether to speak the streamable HTTP transport or fall back
// to the legacy SSE transport.
//
// It first POSTs the message as streamable HTTP. If the response is
// successful, streamable HTTP becomes the connection's transport for the
// rest of the session. Otherwise, the streamable attempt is discarded, an
// SSE connection is established against the same endpoint, and the same
// message is resent there. The choice is sticky: once made, every
// subsequent message goes through the selected transport.
type AutoDetectTransport struct {
	// Endpoint is the URL to probe.
	Endpoint string

	// HTTPClient is the client to use for making HTTP requests. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client

	// ModifyRequest, if set, is passed through to whichever underlying
	// transport is ultimately selected.
	ModifyRequest func(*http.Request)
}

// Connect implements the [Transport] interface. The returned [Connection]
// defers choosing an underlying transport until its first Write.
func (t *AutoDetectTransport) Connect(ctx context.Context) (Connection, error) {
	return &autoDetectConn{t: t, ready: make(chan struct{})}, nil
}

type autoDetectConn struct {
	t *AutoDetectTransport

	selectOnce sync.Once
	ready      chan struct{} // closed once conn or selectErr is set

	mu        sync.Mutex
	conn      Connection // the selected underlying connection
	selectErr error      // set if selection itself failed
}

// Write sends msg, selecting the underlying transport if this is the
// first call.
func (c *autoDetectConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn.Write(ctx, msg)
	}

	var writeErr error
	c.selectOnce.Do(func() {
		conn, err := c.selectTransport(ctx, msg)
		c.mu.Lock()
		c.conn, c.selectErr = conn, err
		c.mu.Unlock()
		close(c.ready)
		writeErr = err
	})
	if writeErr != nil {
		return writeErr
	}

	c.mu.Lock()
	conn, err := c.conn, c.selectErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if conn != nil {
		// A concurrent caller performed the selection write; this call
		// arrived after it, so forward normally.
		return conn.Write(ctx, msg)
	}
	return nil
}

// selectTransport performs the initialize POST against the streamable
// HTTP endpoint, falling back to SSE on a non-2xx response, and returns
// the connection that successfully carried msg.
func (c *autoDetectConn) selectTransport(ctx context.Context, msg JSONRPCMessage) (Connection, error) {
	streamable := &StreamableClientTransport{
		Endpoint:      c.t.Endpoint,
		HTTPClient:    c.t.HTTPClient,
		ModifyRequest: c.t.ModifyRequest,
	}
	raw, err := streamable.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("autodetect: connecting streamable HTTP transport: %w", err)
	}
	sc := raw.(*streamableClientConn)

	sessionID, perr := sc.postMessage(ctx, "", msg)
	if perr == nil {
		sc.sessionID.Store(sessionID)
		return sc, nil
	}
	sc.Close()

	// Only a non-2xx HTTP response is a signal to fall back to SSE; a
	// network-level failure is surfaced directly.
	var statusErr *httpStatusError
	if !errors.As(perr, &statusErr) {
		return nil, perr
	}

	sse := &SSEClientTransport{
		Endpoint:      c.t.Endpoint,
		HTTPClient:    c.t.HTTPClient,
		ModifyRequest: c.t.ModifyRequest,
	}
	sseConn, err := sse.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("autodetect: streamable HTTP rejected (%v) and SSE fallback failed: %w", perr, err)
	}
	if err := sseConn.Write(ctx, msg); err != nil {
		sseConn.Close()
		return nil, fmt.Errorf("autodetect: streamable HTTP rejected (%v) and SSE fallback failed: %w", perr, err)
	}
	return sseConn, nil
}

// Read reads the next message from the selected transport, blocking
// until the first Write has made a selection.
func (c *autoDetectConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ready:
	}
	c.mu.Lock()
	conn, err := c.conn, c.selectErr
	c.mu.Unlock()
	if conn == nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("autodetect: transport selection failed")
	}
	return conn.Read(ctx)
}

// selectedConn returns the transport chosen by the first Write, or nil if
// none has been made yet. It exists for tests that need to observe which
// transport was selected.
func (c *autoDetectConn) selectedConn() Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Close closes the selected transport, if any.
func (c *autoDetectConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
