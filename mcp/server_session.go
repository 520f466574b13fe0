// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements ServerSession: the server-side half of one
// connection, including the incoming method dispatch table and the
// outgoing calls a server can make to its peer (roots/list,
// sampling/createMessage, elicitation/create).

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// A ServerSession is a logical connection from a server to a single
// client, created by [Server.Connect].
type ServerSession struct {
	server    *Server
	conn      *peerConn
	id        string
	stateless bool

	mu            sync.Mutex
	initialized   bool
	clientCaps    *ClientCapabilities
	clientInfo    *Implementation
	logLevel      LoggingLevel
	initParams    *InitializeParams
	subscriptions map[string]bool

	notifyMu     sync.Mutex
	notifyTimers map[string]*time.Timer
}

// logLevelRank orders logging levels from least to most severe, per RFC
// 5424 as adopted by the MCP logging capability.
var logLevelRank = map[LoggingLevel]int{
	"debug":     0,
	"info":      1,
	"notice":    2,
	"warning":   3,
	"error":     4,
	"critical":  5,
	"alert":     6,
	"emergency": 7,
}

func (ss *ServerSession) addSubscription(uri string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.subscriptions == nil {
		ss.subscriptions = make(map[string]bool)
	}
	ss.subscriptions[uri] = true
}

func (ss *ServerSession) removeSubscription(uri string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.subscriptions, uri)
}

func (ss *ServerSession) subscribed(uri string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.subscriptions[uri]
}

// Log sends a logging/message notification to the client, if its currently
// configured minimum log level permits params.Level. Before the client has
// called logging/setLevel, no messages are sent.
func (ss *ServerSession) Log(ctx context.Context, params *LoggingMessageParams) error {
	ss.mu.Lock()
	level := ss.logLevel
	ss.mu.Unlock()
	if level == "" {
		return nil
	}
	if logLevelRank[params.Level] < logLevelRank[level] {
		return nil
	}
	if ss.stateless {
		return statelessError("server-to-client notifications")
	}
	req := &ServerRequest[*LoggingMessageParams]{Session: ss, Params: params}
	return notifyThrough(ctx, ss.conn, ss.server.sendingMW, notificationLoggingMessage, req)
}

func (ss *ServerSession) ID() string   { return ss.id }
func (*ServerSession) isSession()      {}
func (ss *ServerSession) Close() error { return ss.conn.Close() }
func (ss *ServerSession) Wait() error  { return ss.conn.Wait() }

func (ss *ServerSession) startKeepAlive(interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ss.conn.done:
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				err := ss.Ping(ctx, &PingParams{})
				cancel()
				if err != nil {
					ss.Close()
					return
				}
			}
		}
	}()
}

// peerCapable reports whether the connected client declared a capability
// matching pred.
func (ss *ServerSession) peerCapable(pred func(*ClientCapabilities) bool) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.clientCaps != nil && pred(ss.clientCaps)
}

// Ping sends a ping to the client.
func (ss *ServerSession) Ping(ctx context.Context, params *PingParams) error {
	if params == nil {
		params = &PingParams{}
	}
	req := &ServerRequest[*PingParams]{Session: ss, Params: params}
	_, err := callThrough[emptyResult](ctx, ss.conn, ss.server.sendingMW, methodPing, req)
	return err
}

// ListRoots asks the client for its current list of filesystem roots.
func (ss *ServerSession) ListRoots(ctx context.Context, params *ListRootsParams) (*ListRootsResult, error) {
	if ss.stateless {
		return nil, statelessError("server-to-client requests")
	}
	if params == nil {
		params = &ListRootsParams{}
	}
	req := &ServerRequest[*ListRootsParams]{Session: ss, Params: params}
	return callThrough[ListRootsResult](ctx, ss.conn, ss.server.sendingMW, methodListRoots, req)
}

// CreateMessage asks the client to sample from a language model.
func (ss *ServerSession) CreateMessage(ctx context.Context, params *CreateMessageParams) (*CreateMessageResult, error) {
	if ss.stateless {
		return nil, statelessError("server-to-client requests")
	}
	if !ss.peerCapable(func(c *ClientCapabilities) bool { return c.Sampling != nil }) {
		return nil, fmt.Errorf("client does not support sampling, required for %s", methodCreateMessage)
	}
	req := &ServerRequest[*CreateMessageParams]{Session: ss, Params: params}
	return callThrough[CreateMessageResult](ctx, ss.conn, ss.server.sendingMW, methodCreateMessage, req)
}

// CreateMessageWithTools asks the client to sample from a language model,
// offering it a set of tools it may invoke as part of the response.
func (ss *ServerSession) CreateMessageWithTools(ctx context.Context, params *CreateMessageWithToolsParams) (*CreateMessageWithToolsResult, error) {
	if ss.stateless {
		return nil, statelessError("server-to-client requests")
	}
	if !ss.peerCapable(func(c *ClientCapabilities) bool { return c.Sampling != nil }) {
		return nil, fmt.Errorf("client does not support sampling, required for %s", methodCreateMessage)
	}
	req := &ServerRequest[*CreateMessageWithToolsParams]{Session: ss, Params: params}
	return callThrough[CreateMessageWithToolsResult](ctx, ss.conn, ss.server.sendingMW, methodCreateMessage, req)
}

// Elicit asks the client to collect structured input from its user.
func (ss *ServerSession) Elicit(ctx context.Context, params *ElicitParams) (*ElicitResult, error) {
	if ss.stateless {
		return nil, statelessError("server-to-client requests")
	}
	if !ss.peerCapable(func(c *ClientCapabilities) bool { return c.Elicitation != nil }) {
		return nil, fmt.Errorf("client does not support elicitation, required for %s", methodElicit)
	}
	var resolved *jsonschema.Resolved
	if params.RequestedSchema != nil {
		schema, err := resolveSchema(params.RequestedSchema)
		if err != nil {
			return nil, jsonrpcInvalidParams(err.Error())
		}
		if err := validateElicitSchema(schema); err != nil {
			return nil, jsonrpcInvalidParams(err.Error())
		}
		resolved, err = schema.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
		if err != nil {
			return nil, jsonrpcInvalidParams(err.Error())
		}
	}
	req := &ServerRequest[*ElicitParams]{Session: ss, Params: params}
	res, err := callThrough[ElicitResult](ctx, ss.conn, ss.server.sendingMW, methodElicit, req)
	if err != nil {
		return nil, err
	}
	if resolved != nil && res.Action == "accept" {
		if res.Content == nil {
			res.Content = map[string]any{}
		}
		if err := resolved.ApplyDefaults(&res.Content); err != nil {
			return nil, fmt.Errorf("applying elicitation schema defaults: %w", err)
		}
		if err := resolved.Validate(res.Content); err != nil {
			return nil, fmt.Errorf("validating elicitation response: %w", err)
		}
	}
	return res, nil
}

// NotifyProgress sends a progress notification to the client for an
// in-flight call.
func (ss *ServerSession) NotifyProgress(ctx context.Context, params *ProgressNotificationParams) error {
	if ss.stateless {
		return statelessError("server-to-client notifications")
	}
	req := &ServerRequest[*ProgressNotificationParams]{Session: ss, Params: params}
	return notifyThrough(ctx, ss.conn, ss.server.sendingMW, notificationProgress, req)
}

// scheduleNotify debounces a single notification of method, built lazily
// by newReq, coalescing rapid successive calls into one send.
func (ss *ServerSession) scheduleNotify(method string, newReq func() Request) {
	ss.notifyMu.Lock()
	defer ss.notifyMu.Unlock()
	if ss.notifyTimers == nil {
		ss.notifyTimers = make(map[string]*time.Timer)
	}
	if t, ok := ss.notifyTimers[method]; ok {
		t.Stop()
	}
	ss.notifyTimers[method] = time.AfterFunc(notificationDelay, func() {
		ss.notifyMu.Lock()
		delete(ss.notifyTimers, method)
		ss.notifyMu.Unlock()
		_ = notifyThrough(context.Background(), ss.conn, ss.server.sendingMW, method, newReq())
	})
}

// serveServerCall unmarshals raw into a fresh P, runs fn through the
// server's receiving middleware, and returns the result.
func serveServerCall[P Params, R Result](ctx context.Context, ss *ServerSession, method string, raw json.RawMessage, p P, fn func(context.Context, *ServerRequest[P]) (R, error)) (Result, error) {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, jsonrpcInvalidParams(err.Error())
		}
	}
	req := &ServerRequest[P]{Session: ss, Params: p}
	base := MethodHandler(func(ctx context.Context, method string, r Request) (Result, error) {
		sreq := r.(*ServerRequest[P])
		res, err := fn(ctx, sreq)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	h := addMiddleware(base, ss.server.receivingMW)
	return h(ctx, method, req)
}

// serveServerNotify is the notification analog of serveServerCall: fn
// returns nothing, and any unmarshal error is ignored, since notifications
// have no response through which to report it.
func serveServerNotify[P Params](ctx context.Context, ss *ServerSession, method string, raw json.RawMessage, p P, fn func(context.Context, *ServerRequest[P])) (Result, error) {
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, p)
	}
	req := &ServerRequest[P]{Session: ss, Params: p}
	base := MethodHandler(func(ctx context.Context, method string, r Request) (Result, error) {
		fn(ctx, r.(*ServerRequest[P]))
		return nil, nil
	})
	h := addMiddleware(base, ss.server.receivingMW)
	return h(ctx, method, req)
}

// handleInitialize implements the initialize call specially, since it must
// record the client's declared capabilities and is not subject to the
// usual per-feature not-found errors.
func (ss *ServerSession) handleInitialize(ctx context.Context, raw json.RawMessage) (Result, error) {
	var params InitializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, jsonrpcInvalidParams(err.Error())
		}
	}
	req := &ServerRequest[*InitializeParams]{Session: ss, Params: &params}
	base := MethodHandler(func(ctx context.Context, method string, r Request) (Result, error) {
		sreq := r.(*ServerRequest[*InitializeParams])
		ss.mu.Lock()
		ss.clientCaps = sreq.Params.Capabilities
		ss.clientInfo = sreq.Params.ClientInfo
		ss.mu.Unlock()
		ss.saveState(ctx, sreq.Params)
		return &InitializeResult{
			Capabilities:    ss.server.capabilities(),
			ProtocolVersion: sreq.Params.ProtocolVersion,
			ServerInfo:      ss.server.impl,
			Instructions:    ss.server.opts.Instructions,
		}, nil
	})
	h := addMiddleware(base, ss.server.receivingMW)
	return h(ctx, methodInitialize, req)
}

func (ss *ServerSession) handlePing(ctx context.Context, req *PingServerRequest) (*emptyResult, error) {
	return &emptyResult{}, nil
}

func (ss *ServerSession) handleSetLevel(ctx context.Context, req *ServerRequest[*SetLoggingLevelParams]) (*emptyResult, error) {
	ss.mu.Lock()
	ss.logLevel = req.Params.Level
	initParams := ss.initParams
	ss.mu.Unlock()
	ss.saveState(ctx, initParams)
	return &emptyResult{}, nil
}

// saveState persists ss's current logging level to the server's
// SessionStore, if one is configured. initParams is recorded alongside it
// so a resumed session can be re-initialized with the same declared
// client info and capabilities.
func (ss *ServerSession) saveState(ctx context.Context, initParams *InitializeParams) {
	store := ss.server.opts.SessionStore
	if store == nil {
		return
	}
	ss.mu.Lock()
	ss.initParams = initParams
	level := ss.logLevel
	ss.mu.Unlock()
	_ = store.Store(ctx, ss.id, &SessionState{
		InitializeParams: initParams,
		LogLevel:         level,
	})
}

// handle is the incomingHandler passed to newPeerConn: it dispatches an
// incoming JSON-RPC request to the appropriate business-logic method.
func (ss *ServerSession) handle(ctx context.Context, req *JSONRPCRequest) (Result, error) {
	if req.IsCall() {
		// Lets the streamable transport deliver messages sent while handling
		// this call on the HTTP response that carried it.
		ctx = context.WithValue(ctx, idContextKey{}, req.ID)
	}
	raw, _ := json.Marshal(req.Params)
	s := ss.server
	switch req.Method {
	case methodInitialize:
		return ss.handleInitialize(ctx, raw)
	case notificationInitialized:
		return serveServerNotify(ctx, ss, req.Method, raw, &InitializedParams{}, s.handleInitialized)
	case methodPing:
		return serveServerCall(ctx, ss, req.Method, raw, &PingParams{}, ss.handlePing)
	case methodListTools:
		return serveServerCall(ctx, ss, req.Method, raw, &ListToolsParams{}, s.handleListTools)
	case methodCallTool:
		return serveServerCall(ctx, ss, req.Method, raw, &CallToolParamsRaw{}, s.handleCallTool)
	case methodListPrompts:
		return serveServerCall(ctx, ss, req.Method, raw, &ListPromptsParams{}, s.handleListPrompts)
	case methodGetPrompt:
		return serveServerCall(ctx, ss, req.Method, raw, &GetPromptParams{}, s.handleGetPrompt)
	case methodListResources:
		return serveServerCall(ctx, ss, req.Method, raw, &ListResourcesParams{}, s.handleListResources)
	case methodListResourceTemplates:
		return serveServerCall(ctx, ss, req.Method, raw, &ListResourceTemplatesParams{}, s.handleListResourceTemplates)
	case methodReadResource:
		return serveServerCall(ctx, ss, req.Method, raw, &ReadResourceParams{}, s.handleReadResource)
	case methodSubscribe:
		return serveServerCall(ctx, ss, req.Method, raw, &SubscribeParams{}, s.handleSubscribe)
	case methodUnsubscribe:
		return serveServerCall(ctx, ss, req.Method, raw, &UnsubscribeParams{}, s.handleUnsubscribe)
	case methodComplete:
		return serveServerCall(ctx, ss, req.Method, raw, &CompleteParams{}, s.handleComplete)
	case methodSetLevel:
		return serveServerCall(ctx, ss, req.Method, raw, &SetLoggingLevelParams{}, ss.handleSetLevel)
	case notificationCancelled:
		return serveServerNotify(ctx, ss, req.Method, raw, &CancelledParams{}, s.handleCancelled)
	case notificationRootsListChanged:
		return serveServerNotify(ctx, ss, req.Method, raw, &RootsListChangedParams{}, s.handleRootsListChanged)
	case notificationProgress:
		return serveServerNotify(ctx, ss, req.Method, raw, &ProgressNotificationParams{}, s.handleProgressNotification)
	default:
		return nil, jsonrpcMethodNotFound(req.Method)
	}
}
