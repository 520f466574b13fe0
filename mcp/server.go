// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the server side of the protocol: the Server type,
// its feature registries (tools, prompts, resources, resource templates),
// capability negotiation, and middleware.

package mcp

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/yosida95/uritemplate/v3"
)

// A PromptHandler handles a call to prompts/get.
type PromptHandler func(ctx context.Context, req *GetPromptRequest) (*GetPromptResult, error)

type serverPrompt struct {
	prompt  *Prompt
	handler PromptHandler
}

// ServerOptions configures the behavior of a [Server].
type ServerOptions struct {
	// Instructions describes how to use the server and its features. It is
	// returned to the client in the initialize response.
	Instructions string

	// PageSize bounds the number of items returned by a single list call.
	// Zero means [defaultPageSize].
	PageSize int

	// KeepAlive, if positive, causes each session to periodically ping its
	// peer, closing the session if a ping goes unanswered.
	KeepAlive time.Duration

	// SessionStore, if non-nil, is used to persist and recover session
	// state across reconnects on transports that support it.
	SessionStore SessionStore

	// HasPrompts, HasResources, and HasTools force the corresponding
	// capability to be advertised even before any prompt, resource, or tool
	// has been registered.
	HasPrompts, HasResources, HasTools bool

	CompletionHandler          func(context.Context, *CompleteRequest) (*CompleteResult, error)
	SubscribeHandler           func(context.Context, *SubscribeRequest) error
	UnsubscribeHandler         func(context.Context, *UnsubscribeRequest) error
	InitializedHandler         func(context.Context, *InitializedRequest)
	RootsListChangedHandler    func(context.Context, *RootsListChangedRequest)
	ProgressNotificationHandler func(context.Context, *ProgressNotificationServerRequest)
}

// A Server serves MCP to one or more clients, one per [ServerSession]
// created by [Server.Connect].
type Server struct {
	impl *Implementation
	opts ServerOptions

	tools             *featureSet[serverTool]
	prompts           *featureSet[serverPrompt]
	resources         *featureSet[serverResource]
	resourceTemplates *featureSet[serverResourceTemplate]

	mu          sync.Mutex
	sendingMW   []Middleware
	receivingMW []Middleware
	sessions    map[*ServerSession]struct{}
}

// NewServer creates a new Server with the given implementation metadata.
// If opts is nil, default options are used.
func NewServer(impl *Implementation, opts *ServerOptions) *Server {
	if opts == nil {
		opts = &ServerOptions{}
	}
	return &Server{
		impl:              impl,
		opts:              *opts,
		tools:             newFeatureSet(func(t *serverTool) string { return t.tool.Name }),
		prompts:           newFeatureSet(func(p *serverPrompt) string { return p.prompt.Name }),
		resources:         newFeatureSet(func(r *serverResource) string { return r.resource.URI }),
		resourceTemplates: newFeatureSet(func(t *serverResourceTemplate) string { return t.template.URITemplate }),
		sessions:          make(map[*ServerSession]struct{}),
	}
}

// addTool registers a fully prepared serverTool. It is the landing point
// for both [AddTool] (typed) and [Server.AddTool] (untyped).
func (s *Server) addTool(st *serverTool) {
	s.tools.add(st)
	s.notifyToolListChanged()
}

// AddTool adds a tool to the server with an untyped handler. Most callers
// should prefer the generic [AddTool] function, which validates arguments
// against an inferred schema. A nil handler is permitted, to declare a
// tool's shape without yet implementing it.
func (s *Server) AddTool(t *Tool, h ToolHandler) {
	if h == nil {
		s.addTool(&serverTool{tool: t})
		return
	}
	st, err := newServerTool(t, h)
	if err != nil {
		panic(fmt.Sprintf("AddTool(%q): %v", t.Name, err))
	}
	s.addTool(st)
}

// AddPrompt registers a prompt and its handler.
func (s *Server) AddPrompt(p *Prompt, h PromptHandler) {
	s.prompts.add(&serverPrompt{prompt: p, handler: h})
	s.notifyPromptListChanged()
}

// AddResource registers a resource at a fixed URI and its handler.
func (s *Server) AddResource(r *Resource, h ResourceHandler) {
	s.resources.add(&serverResource{resource: r, handler: h})
	s.notifyResourceListChanged()
}

// AddResourceTemplate registers a resource template and its handler. It
// panics if t.URITemplate is not a valid RFC 6570 URI template.
func (s *Server) AddResourceTemplate(t *ResourceTemplate, h ResourceHandler) {
	compiled, err := uritemplate.New(t.URITemplate)
	if err != nil {
		panic(fmt.Sprintf("AddResourceTemplate(%q): %v", t.URITemplate, err))
	}
	s.resourceTemplates.add(&serverResourceTemplate{template: t, compiled: compiled, handler: h})
	s.notifyResourceListChanged()
}

// RemoveTools removes the tools with the given names, if present.
func (s *Server) RemoveTools(names ...string) {
	s.tools.remove(names...)
	s.notifyToolListChanged()
}

// RemovePrompts removes the prompts with the given names, if present.
func (s *Server) RemovePrompts(names ...string) {
	s.prompts.remove(names...)
	s.notifyPromptListChanged()
}

// RemoveResources removes the resources with the given URIs, if present.
func (s *Server) RemoveResources(uris ...string) {
	s.resources.remove(uris...)
	s.notifyResourceListChanged()
}

// AddSendingMiddleware wraps every outgoing call and notification the
// server sends (such as roots/list or sampling/createMessage) with mw, in
// order: mw[0] is outermost.
func (s *Server) AddSendingMiddleware(mw ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendingMW = append(s.sendingMW, mw...)
}

// AddReceivingMiddleware wraps every call and notification the server
// receives from a client with mw, in order: mw[0] is outermost.
func (s *Server) AddReceivingMiddleware(mw ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivingMW = append(s.receivingMW, mw...)
}

// capabilities computes the set of capabilities this server currently
// advertises, based on its registered handlers and features.
func (s *Server) capabilities() *ServerCapabilities {
	c := &ServerCapabilities{Logging: &LoggingCapabilities{}}
	if s.opts.CompletionHandler != nil {
		c.Completions = &CompletionCapabilities{}
	}
	if s.opts.HasPrompts || s.prompts.len() > 0 {
		c.Prompts = &PromptCapabilities{ListChanged: true}
	}
	if s.opts.HasResources || s.resources.len() > 0 || s.resourceTemplates.len() > 0 {
		c.Resources = &ResourceCapabilities{ListChanged: true}
		if s.opts.SubscribeHandler != nil && s.opts.UnsubscribeHandler != nil {
			c.Resources.Subscribe = true
		}
	}
	if s.opts.HasTools || s.tools.len() > 0 {
		c.Tools = &ToolCapabilities{ListChanged: true}
	}
	return c
}

// Sessions iterates over the server's currently connected sessions.
func (s *Server) Sessions() iter.Seq[*ServerSession] {
	return func(yield func(*ServerSession) bool) {
		s.mu.Lock()
		sessions := make([]*ServerSession, 0, len(s.sessions))
		for ss := range s.sessions {
			sessions = append(sessions, ss)
		}
		s.mu.Unlock()
		for _, ss := range sessions {
			if !yield(ss) {
				return
			}
		}
	}
}

// Connect starts serving MCP over t, returning the resulting session. If
// opts.ResumeSessionID names a session previously saved to
// ServerOptions.SessionStore, its logging level is restored onto the new
// session. Resource subscriptions are not saved or restored.
func (s *Server) Connect(ctx context.Context, t Transport, opts *ServerSessionOptions) (*ServerSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, err
	}
	id := randText()
	if opts != nil && opts.ResumeSessionID != "" {
		id = opts.ResumeSessionID
	}
	ss := &ServerSession{server: s, id: id, subscriptions: make(map[string]bool)}
	if opts != nil {
		ss.stateless = opts.Stateless
	}
	ss.conn = newPeerConnForTransport(conn, ss.handle)

	if s.opts.SessionStore != nil && opts != nil && opts.ResumeSessionID != "" {
		if state, err := s.opts.SessionStore.Load(ctx, opts.ResumeSessionID); err == nil && state != nil {
			ss.logLevel = state.LogLevel
		}
	}

	s.mu.Lock()
	s.sessions[ss] = struct{}{}
	s.mu.Unlock()

	go func() {
		ss.conn.Wait()
		s.mu.Lock()
		delete(s.sessions, ss)
		s.mu.Unlock()
	}()

	if s.opts.KeepAlive > 0 {
		ss.startKeepAlive(s.opts.KeepAlive)
	}

	return ss, nil
}

// ServerSessionOptions carries per-connection overrides for Connect.
type ServerSessionOptions struct {
	// ResumeSessionID, if set, reconnects a session previously saved to
	// ServerOptions.SessionStore under this ID, restoring its logging
	// level, instead of generating a fresh session ID.
	ResumeSessionID string

	// Stateless marks the session as belonging to a stateless-mode
	// transport connection (see [StreamableHTTPOptions.Stateless]).
	// Server-to-client requests and unsolicited notifications are
	// rejected on a stateless session.
	Stateless bool
}

// scheduleNotify debounces a list-changed notification across every
// currently connected session, coalescing rapid successive registrations
// into a single send per session.
func (s *Server) scheduleNotify(method string, build func(*ServerSession) Request) {
	s.mu.Lock()
	sessions := make([]*ServerSession, 0, len(s.sessions))
	for ss := range s.sessions {
		sessions = append(sessions, ss)
	}
	s.mu.Unlock()
	for _, ss := range sessions {
		if ss.stateless {
			// No long-lived connection exists to deliver an unsolicited
			// notification to a stateless session.
			continue
		}
		ss := ss
		ss.scheduleNotify(method, func() Request { return build(ss) })
	}
}

func (s *Server) notifyToolListChanged() {
	s.scheduleNotify(notificationToolListChanged, func(ss *ServerSession) Request {
		return &ServerRequest[*ToolListChangedParams]{Session: ss, Params: &ToolListChangedParams{}}
	})
}

func (s *Server) notifyPromptListChanged() {
	s.scheduleNotify(notificationPromptListChanged, func(ss *ServerSession) Request {
		return &ServerRequest[*PromptListChangedParams]{Session: ss, Params: &PromptListChangedParams{}}
	})
}

func (s *Server) notifyResourceListChanged() {
	s.scheduleNotify(notificationResourceListChanged, func(ss *ServerSession) Request {
		return &ServerRequest[*ResourceListChangedParams]{Session: ss, Params: &ResourceListChangedParams{}}
	})
}

// --- request handlers ---

func (s *Server) handleListTools(ctx context.Context, req *ListToolsRequest) (*ListToolsResult, error) {
	return paginateList(s.tools, s.opts.PageSize, req.Params, &ListToolsResult{}, func(res *ListToolsResult, items []*serverTool) {
		res.Tools = make([]*Tool, len(items))
		for i, it := range items {
			res.Tools[i] = it.tool
		}
	})
}

func (s *Server) handleCallTool(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
	st, ok := s.tools.get(req.Params.Name)
	if !ok {
		return nil, jsonrpcInvalidParams(fmt.Sprintf("unknown tool %q", req.Params.Name))
	}
	if st.handler == nil {
		return nil, jsonrpcInvalidParams(fmt.Sprintf("tool %q has no handler", req.Params.Name))
	}
	return st.handler(ctx, req)
}

func (s *Server) handleListPrompts(ctx context.Context, req *ListPromptsRequest) (*ListPromptsResult, error) {
	return paginateList(s.prompts, s.opts.PageSize, req.Params, &ListPromptsResult{}, func(res *ListPromptsResult, items []*serverPrompt) {
		res.Prompts = make([]*Prompt, len(items))
		for i, it := range items {
			res.Prompts[i] = it.prompt
		}
	})
}

func (s *Server) handleGetPrompt(ctx context.Context, req *GetPromptRequest) (*GetPromptResult, error) {
	sp, ok := s.prompts.get(req.Params.Name)
	if !ok {
		return nil, jsonrpcInvalidParams(fmt.Sprintf("unknown prompt %q", req.Params.Name))
	}
	if sp.handler == nil {
		return nil, jsonrpcInvalidParams(fmt.Sprintf("prompt %q has no handler", req.Params.Name))
	}
	return sp.handler(ctx, req)
}

func (s *Server) handleListResources(ctx context.Context, req *ListResourcesRequest) (*ListResourcesResult, error) {
	return paginateList(s.resources, s.opts.PageSize, req.Params, &ListResourcesResult{}, func(res *ListResourcesResult, items []*serverResource) {
		res.Resources = make([]*Resource, len(items))
		for i, it := range items {
			res.Resources[i] = it.resource
		}
	})
}

func (s *Server) handleListResourceTemplates(ctx context.Context, req *ListResourceTemplatesRequest) (*ListResourceTemplatesResult, error) {
	return paginateList(s.resourceTemplates, s.opts.PageSize, req.Params, &ListResourceTemplatesResult{}, func(res *ListResourceTemplatesResult, items []*serverResourceTemplate) {
		res.ResourceTemplates = make([]*ResourceTemplate, len(items))
		for i, it := range items {
			res.ResourceTemplates[i] = it.template
		}
	})
}

func (s *Server) handleReadResource(ctx context.Context, req *ReadResourceRequest) (*ReadResourceResult, error) {
	if sr, ok := s.resources.get(req.Params.URI); ok {
		return sr.handler(ctx, req)
	}
	for _, t := range s.resourceTemplates.all() {
		if _, ok := t.compiled.Match(req.Params.URI); ok && t.handler != nil {
			return t.handler(ctx, req)
		}
	}
	return nil, ResourceNotFoundError(req.Params.URI)
}

func (s *Server) handleSubscribe(ctx context.Context, req *SubscribeRequest) (*emptyResult, error) {
	if s.opts.SubscribeHandler == nil {
		return nil, jsonrpcMethodNotFound(methodSubscribe)
	}
	if err := s.opts.SubscribeHandler(ctx, req); err != nil {
		return nil, err
	}
	req.Session.addSubscription(req.Params.URI)
	return &emptyResult{}, nil
}

func (s *Server) handleUnsubscribe(ctx context.Context, req *UnsubscribeRequest) (*emptyResult, error) {
	if s.opts.UnsubscribeHandler == nil {
		return nil, jsonrpcMethodNotFound(methodUnsubscribe)
	}
	if err := s.opts.UnsubscribeHandler(ctx, req); err != nil {
		return nil, err
	}
	req.Session.removeSubscription(req.Params.URI)
	return &emptyResult{}, nil
}

// ResourceUpdated notifies every session subscribed to params.URI that the
// resource has changed.
func (s *Server) ResourceUpdated(ctx context.Context, params *ResourceUpdatedNotificationParams) {
	for ss := range s.Sessions() {
		if ss.stateless {
			continue
		}
		if ss.subscribed(params.URI) {
			req := &ServerRequest[*ResourceUpdatedNotificationParams]{Session: ss, Params: params}
			_ = notifyThrough(ctx, ss.conn, s.sendingMW, notificationResourceUpdated, req)
		}
	}
}

func (s *Server) handleComplete(ctx context.Context, req *CompleteRequest) (*CompleteResult, error) {
	if s.opts.CompletionHandler == nil {
		return nil, jsonrpcMethodNotFound(methodComplete)
	}
	return s.opts.CompletionHandler(ctx, req)
}

func (s *Server) handleInitialized(ctx context.Context, req *InitializedRequest) {
	req.Session.mu.Lock()
	req.Session.initialized = true
	req.Session.mu.Unlock()
	if s.opts.InitializedHandler != nil {
		s.opts.InitializedHandler(ctx, req)
	}
}

func (s *Server) handleCancelled(ctx context.Context, req *CancelledRequest) {
	// No default behavior; cancellation of in-flight work is left to
	// handlers that check ctx.
}

func (s *Server) handleRootsListChanged(ctx context.Context, req *RootsListChangedRequest) {
	if s.opts.RootsListChangedHandler != nil {
		s.opts.RootsListChangedHandler(ctx, req)
	}
}

func (s *Server) handleProgressNotification(ctx context.Context, req *ProgressNotificationServerRequest) {
	if s.opts.ProgressNotificationHandler != nil {
		s.opts.ProgressNotificationHandler(ctx, req)
	}
}
