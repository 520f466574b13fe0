// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the client side of the protocol: the Client type,
// its root registry, capability negotiation, and middleware.

package mcp

import (
	"context"
	"sync"
	"time"
)

// ClientOptions configures the behavior of a [Client].
type ClientOptions struct {
	// KeepAlive, if positive, causes each session to periodically ping its
	// peer, closing the session if a ping goes unanswered.
	KeepAlive time.Duration

	// Capabilities, if non-nil, overrides the capabilities the client would
	// otherwise compute from its registered handlers.
	Capabilities *ClientCapabilities

	CreateMessageHandler          func(context.Context, *CreateMessageRequest) (*CreateMessageResult, error)
	CreateMessageWithToolsHandler func(context.Context, *CreateMessageWithToolsRequest) (*CreateMessageWithToolsResult, error)
	ElicitationHandler            func(context.Context, *ElicitRequest) (*ElicitResult, error)
	ToolListChangedHandler        func(context.Context, *ToolListChangedRequest)
	PromptListChangedHandler      func(context.Context, *PromptListChangedRequest)
	ResourceListChangedHandler    func(context.Context, *ResourceListChangedRequest)
	LoggingMessageHandler         func(context.Context, *LoggingMessageRequest)
	ProgressNotificationHandler   func(context.Context, *ProgressNotificationClientRequest)
	ResourceUpdatedHandler        func(context.Context, *ResourceUpdatedNotificationRequest)
	ElicitationCompleteHandler    func(context.Context, *ElicitationCompleteNotificationRequest)
}

// A Client connects to one or more MCP servers, one [ClientSession] per
// call to [Client.Connect].
type Client struct {
	impl *Implementation
	opts ClientOptions

	roots *featureSet[Root]

	mu          sync.Mutex
	sendingMW   []Middleware
	receivingMW []Middleware
	sessions    map[*ClientSession]struct{}
}

// NewClient creates a new Client with the given implementation metadata.
// If opts is nil, default options are used.
func NewClient(impl *Implementation, opts *ClientOptions) *Client {
	if opts == nil {
		opts = &ClientOptions{}
	}
	if opts.CreateMessageHandler != nil && opts.CreateMessageWithToolsHandler != nil {
		panic("NewClient: at most one of CreateMessageHandler and CreateMessageWithToolsHandler may be set")
	}
	return &Client{
		impl:     impl,
		opts:     *opts,
		roots:    newFeatureSet(func(r *Root) string { return r.URI }),
		sessions: make(map[*ClientSession]struct{}),
	}
}

// AddRoots adds filesystem roots that the client exposes to servers.
func (c *Client) AddRoots(roots ...*Root) {
	c.roots.add(roots...)
	c.notifyRootsListChanged()
}

// RemoveRoots removes the roots with the given URIs, if present.
func (c *Client) RemoveRoots(uris ...string) {
	c.roots.remove(uris...)
	c.notifyRootsListChanged()
}

// AddSendingMiddleware wraps every outgoing call and notification the
// client sends to a server (such as tools/call) with mw, in order: mw[0]
// is outermost.
func (c *Client) AddSendingMiddleware(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendingMW = append(c.sendingMW, mw...)
}

// AddReceivingMiddleware wraps every call and notification the client
// receives from a server with mw, in order: mw[0] is outermost.
func (c *Client) AddReceivingMiddleware(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receivingMW = append(c.receivingMW, mw...)
}

// capabilities computes the set of capabilities this client currently
// advertises, based on its registered handlers.
func (c *Client) capabilities() *ClientCapabilities {
	if c.opts.Capabilities != nil {
		return c.opts.Capabilities.clone()
	}
	caps := &ClientCapabilities{
		Roots:   struct{ ListChanged bool }{ListChanged: true},
		RootsV2: &RootCapabilities{ListChanged: true},
	}
	if c.opts.CreateMessageHandler != nil || c.opts.CreateMessageWithToolsHandler != nil {
		caps.Sampling = &SamplingCapabilities{}
		if c.opts.CreateMessageWithToolsHandler != nil {
			caps.Sampling.Tools = &SamplingToolsCapabilities{}
		}
	}
	if c.opts.ElicitationHandler != nil {
		caps.Elicitation = &ElicitationCapabilities{}
	}
	return caps
}

func (c *Client) notifyRootsListChanged() {
	c.mu.Lock()
	sessions := make([]*ClientSession, 0, len(c.sessions))
	for cs := range c.sessions {
		sessions = append(sessions, cs)
	}
	c.mu.Unlock()
	for _, cs := range sessions {
		cs := cs
		cs.scheduleNotify(notificationRootsListChanged, func() Request {
			return &ClientRequest[*RootsListChangedParams]{Session: cs, Params: &RootsListChangedParams{}}
		})
	}
}

// ClientSessionOptions is reserved for future per-connection overrides.
type ClientSessionOptions struct{}

// Connect starts serving MCP over t, performing the initialize handshake
// and returning the resulting session.
func (c *Client) Connect(ctx context.Context, t Transport, opts *ClientSessionOptions) (*ClientSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, err
	}
	cs := &ClientSession{client: c, id: randText(), mcpConn: conn}
	cs.conn = newPeerConn(conn, cs.handle)

	initReq := &ClientRequest[*InitializeParams]{
		Session: cs,
		Params: &InitializeParams{
			Capabilities:    c.capabilities(),
			ClientInfo:      c.impl,
			ProtocolVersion: latestProtocolVersion,
		},
	}
	initRes, err := callThrough[InitializeResult](ctx, cs.conn, c.sendingMW, methodInitialize, initReq)
	if err != nil {
		cs.conn.Close()
		return nil, err
	}
	cs.serverCaps = initRes.Capabilities
	cs.serverInfo = initRes.ServerInfo

	notifyReq := &ClientRequest[*InitializedParams]{Session: cs, Params: &InitializedParams{}}
	if err := notifyThrough(ctx, cs.conn, c.sendingMW, notificationInitialized, notifyReq); err != nil {
		cs.conn.Close()
		return nil, err
	}

	c.mu.Lock()
	c.sessions[cs] = struct{}{}
	c.mu.Unlock()

	go func() {
		cs.conn.Wait()
		c.mu.Lock()
		delete(c.sessions, cs)
		c.mu.Unlock()
	}()

	if c.opts.KeepAlive > 0 {
		cs.startKeepAlive(c.opts.KeepAlive)
	}

	return cs, nil
}

// latestProtocolVersion is the protocol version a freshly connecting
// client claims support for.
const latestProtocolVersion = "2025-06-18"
