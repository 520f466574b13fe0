// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements ClientSession: the client-side half of one
// connection, including the incoming method dispatch table (roots/list,
// sampling/createMessage, elicitation/create, and the various
// list-changed/logging/progress notifications) and the outgoing calls a
// client makes to its server.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// A ClientSession is a logical connection from a client to a single
// server, created by [Client.Connect].
type ClientSession struct {
	client *Client
	conn   *peerConn
	id     string

	// mcpConn is the raw [Connection] returned by the [Transport], kept
	// around for transports whose tests need to reach past the
	// request/response correlation layer (for example, to inspect the
	// discovered message endpoint of an SSE session).
	mcpConn Connection

	mu         sync.Mutex
	serverCaps *ServerCapabilities
	serverInfo *Implementation

	notifyMu     sync.Mutex
	notifyTimers map[string]*time.Timer
}

func (cs *ClientSession) ID() string   { return cs.id }
func (*ClientSession) isSession()      {}
func (cs *ClientSession) Close() error { return cs.conn.Close() }
func (cs *ClientSession) Wait() error  { return cs.conn.Wait() }

func (cs *ClientSession) startKeepAlive(interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-cs.conn.done:
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				err := cs.Ping(ctx, &PingParams{})
				cancel()
				if err != nil {
					cs.Close()
					return
				}
			}
		}
	}()
}

func (cs *ClientSession) scheduleNotify(method string, newReq func() Request) {
	cs.notifyMu.Lock()
	defer cs.notifyMu.Unlock()
	if cs.notifyTimers == nil {
		cs.notifyTimers = make(map[string]*time.Timer)
	}
	if t, ok := cs.notifyTimers[method]; ok {
		t.Stop()
	}
	cs.notifyTimers[method] = time.AfterFunc(notificationDelay, func() {
		cs.notifyMu.Lock()
		delete(cs.notifyTimers, method)
		cs.notifyMu.Unlock()
		_ = notifyThrough(context.Background(), cs.conn, cs.client.sendingMW, method, newReq())
	})
}

// Ping sends a ping to the server.
func (cs *ClientSession) Ping(ctx context.Context, params *PingParams) error {
	if params == nil {
		params = &PingParams{}
	}
	req := &ClientRequest[*PingParams]{Session: cs, Params: params}
	_, err := callThrough[emptyResult](ctx, cs.conn, cs.client.sendingMW, methodPing, req)
	return err
}

// ListTools lists the tools the server offers.
func (cs *ClientSession) ListTools(ctx context.Context, params *ListToolsParams) (*ListToolsResult, error) {
	if params == nil {
		params = &ListToolsParams{}
	}
	req := &ClientRequest[*ListToolsParams]{Session: cs, Params: params}
	return callThrough[ListToolsResult](ctx, cs.conn, cs.client.sendingMW, methodListTools, req)
}

// CallTool invokes a tool on the server.
func (cs *ClientSession) CallTool(ctx context.Context, params *CallToolParams) (*CallToolResult, error) {
	req := &ClientRequest[*CallToolParams]{Session: cs, Params: params}
	return callThrough[CallToolResult](ctx, cs.conn, cs.client.sendingMW, methodCallTool, req)
}

// ListPrompts lists the prompts the server offers.
func (cs *ClientSession) ListPrompts(ctx context.Context, params *ListPromptsParams) (*ListPromptsResult, error) {
	if params == nil {
		params = &ListPromptsParams{}
	}
	req := &ClientRequest[*ListPromptsParams]{Session: cs, Params: params}
	return callThrough[ListPromptsResult](ctx, cs.conn, cs.client.sendingMW, methodListPrompts, req)
}

// GetPrompt resolves a prompt by name.
func (cs *ClientSession) GetPrompt(ctx context.Context, params *GetPromptParams) (*GetPromptResult, error) {
	req := &ClientRequest[*GetPromptParams]{Session: cs, Params: params}
	return callThrough[GetPromptResult](ctx, cs.conn, cs.client.sendingMW, methodGetPrompt, req)
}

// ListResources lists the resources the server offers.
func (cs *ClientSession) ListResources(ctx context.Context, params *ListResourcesParams) (*ListResourcesResult, error) {
	if params == nil {
		params = &ListResourcesParams{}
	}
	req := &ClientRequest[*ListResourcesParams]{Session: cs, Params: params}
	return callThrough[ListResourcesResult](ctx, cs.conn, cs.client.sendingMW, methodListResources, req)
}

// ListResourceTemplates lists the resource templates the server offers.
func (cs *ClientSession) ListResourceTemplates(ctx context.Context, params *ListResourceTemplatesParams) (*ListResourceTemplatesResult, error) {
	if params == nil {
		params = &ListResourceTemplatesParams{}
	}
	req := &ClientRequest[*ListResourceTemplatesParams]{Session: cs, Params: params}
	return callThrough[ListResourceTemplatesResult](ctx, cs.conn, cs.client.sendingMW, methodListResourceTemplates, req)
}

// ReadResource reads the contents of a resource.
func (cs *ClientSession) ReadResource(ctx context.Context, params *ReadResourceParams) (*ReadResourceResult, error) {
	req := &ClientRequest[*ReadResourceParams]{Session: cs, Params: params}
	return callThrough[ReadResourceResult](ctx, cs.conn, cs.client.sendingMW, methodReadResource, req)
}

// Subscribe asks the server to notify this session of updates to a
// resource.
func (cs *ClientSession) Subscribe(ctx context.Context, params *SubscribeParams) error {
	req := &ClientRequest[*SubscribeParams]{Session: cs, Params: params}
	_, err := callThrough[emptyResult](ctx, cs.conn, cs.client.sendingMW, methodSubscribe, req)
	return err
}

// Unsubscribe cancels a previous Subscribe.
func (cs *ClientSession) Unsubscribe(ctx context.Context, params *UnsubscribeParams) error {
	req := &ClientRequest[*UnsubscribeParams]{Session: cs, Params: params}
	_, err := callThrough[emptyResult](ctx, cs.conn, cs.client.sendingMW, methodUnsubscribe, req)
	return err
}

// SetLoggingLevel sets the minimum level of log messages the server should
// forward to this session.
func (cs *ClientSession) SetLoggingLevel(ctx context.Context, params *SetLoggingLevelParams) error {
	req := &ClientRequest[*SetLoggingLevelParams]{Session: cs, Params: params}
	_, err := callThrough[emptyResult](ctx, cs.conn, cs.client.sendingMW, methodSetLevel, req)
	return err
}

// Complete asks the server to complete a partial argument value.
func (cs *ClientSession) Complete(ctx context.Context, params *CompleteParams) (*CompleteResult, error) {
	req := &ClientRequest[*CompleteParams]{Session: cs, Params: params}
	return callThrough[CompleteResult](ctx, cs.conn, cs.client.sendingMW, methodComplete, req)
}

// NotifyProgress sends a progress notification to the server for an
// in-flight call.
func (cs *ClientSession) NotifyProgress(ctx context.Context, params *ProgressNotificationParams) error {
	req := &ClientRequest[*ProgressNotificationParams]{Session: cs, Params: params}
	return notifyThrough(ctx, cs.conn, cs.client.sendingMW, notificationProgress, req)
}

// serveClientCall unmarshals raw into a fresh P, runs fn through the
// client's receiving middleware, and returns the result.
func serveClientCall[P Params, R Result](ctx context.Context, cs *ClientSession, method string, raw json.RawMessage, p P, fn func(context.Context, *ClientRequest[P]) (R, error)) (Result, error) {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, jsonrpcInvalidParams(err.Error())
		}
	}
	req := &ClientRequest[P]{Session: cs, Params: p}
	base := MethodHandler(func(ctx context.Context, method string, r Request) (Result, error) {
		creq := r.(*ClientRequest[P])
		res, err := fn(ctx, creq)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	h := addMiddleware(base, cs.client.receivingMW)
	return h(ctx, method, req)
}

// serveClientNotify is the notification analog of serveClientCall.
func serveClientNotify[P Params](ctx context.Context, cs *ClientSession, method string, raw json.RawMessage, p P, fn func(context.Context, *ClientRequest[P])) (Result, error) {
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, p)
	}
	req := &ClientRequest[P]{Session: cs, Params: p}
	base := MethodHandler(func(ctx context.Context, method string, r Request) (Result, error) {
		fn(ctx, r.(*ClientRequest[P]))
		return nil, nil
	})
	h := addMiddleware(base, cs.client.receivingMW)
	return h(ctx, method, req)
}

func (cs *ClientSession) handlePing(ctx context.Context, req *PingClientRequest) (*emptyResult, error) {
	return &emptyResult{}, nil
}

func (cs *ClientSession) handleListRoots(ctx context.Context, req *ListRootsRequest) (*ListRootsResult, error) {
	return &ListRootsResult{Roots: cs.client.roots.all()}, nil
}

// handleCreateMessage dispatches an incoming sampling/createMessage call to
// whichever of CreateMessageHandler/CreateMessageWithToolsHandler is
// configured, bridging between the two shapes when only one is set but the
// peer used the other.
func (cs *ClientSession) handleCreateMessage(ctx context.Context, raw json.RawMessage) (Result, error) {
	opts := &cs.client.opts
	var peek struct {
		Tools json.RawMessage `json:"tools"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &peek)
	}
	wantsTools := peek.Tools != nil

	if wantsTools && opts.CreateMessageWithToolsHandler != nil {
		return serveClientCall(ctx, cs, methodCreateMessage, raw, &CreateMessageWithToolsParams{}, opts.CreateMessageWithToolsHandler)
	}
	if !wantsTools && opts.CreateMessageHandler != nil {
		return serveClientCall(ctx, cs, methodCreateMessage, raw, &CreateMessageParams{}, opts.CreateMessageHandler)
	}
	if wantsTools && opts.CreateMessageHandler != nil {
		return serveClientCall(ctx, cs, methodCreateMessage, raw, &CreateMessageWithToolsParams{}, func(ctx context.Context, req *CreateMessageWithToolsRequest) (*CreateMessageWithToolsResult, error) {
			base, err := req.Params.toBase()
			if err != nil {
				return nil, err
			}
			res, err := opts.CreateMessageHandler(ctx, &CreateMessageRequest{Session: cs, Params: base})
			if err != nil {
				return nil, err
			}
			return res.toWithTools(), nil
		})
	}
	if !wantsTools && opts.CreateMessageWithToolsHandler != nil {
		return serveClientCall(ctx, cs, methodCreateMessage, raw, &CreateMessageParams{}, func(ctx context.Context, req *CreateMessageRequest) (*CreateMessageResult, error) {
			var content []Content
			wt := &CreateMessageWithToolsParams{
				Meta:             req.Params.Meta,
				IncludeContext:   req.Params.IncludeContext,
				MaxTokens:        req.Params.MaxTokens,
				Metadata:         req.Params.Metadata,
				ModelPreferences: req.Params.ModelPreferences,
				StopSequences:    req.Params.StopSequences,
				SystemPrompt:     req.Params.SystemPrompt,
				Temperature:      req.Params.Temperature,
			}
			for _, m := range req.Params.Messages {
				if m.Content != nil {
					content = []Content{m.Content}
				} else {
					content = nil
				}
				wt.Messages = append(wt.Messages, &SamplingMessageV2{Content: content, Role: m.Role})
			}
			res, err := opts.CreateMessageWithToolsHandler(ctx, &CreateMessageWithToolsRequest{Session: cs, Params: wt})
			if err != nil {
				return nil, err
			}
			if len(res.Content) > 1 {
				return nil, fmt.Errorf("result has %d content blocks; use CreateMessageWithTools to receive multiple content", len(res.Content))
			}
			if len(res.Content) == 0 {
				return &CreateMessageResult{Meta: res.Meta, Model: res.Model, Role: res.Role, StopReason: res.StopReason}, nil
			}
			return &CreateMessageResult{Meta: res.Meta, Content: res.Content[0], Model: res.Model, Role: res.Role, StopReason: res.StopReason}, nil
		})
	}
	return nil, jsonrpcMethodNotFound(methodCreateMessage)
}

func (cs *ClientSession) handleElicit(ctx context.Context, req *ElicitRequest) (*ElicitResult, error) {
	if cs.client.opts.ElicitationHandler == nil {
		return nil, jsonrpcMethodNotFound(methodElicit)
	}
	return cs.client.opts.ElicitationHandler(ctx, req)
}

func (cs *ClientSession) handleToolListChanged(ctx context.Context, req *ToolListChangedRequest) {
	if cs.client.opts.ToolListChangedHandler != nil {
		cs.client.opts.ToolListChangedHandler(ctx, req)
	}
}

func (cs *ClientSession) handlePromptListChanged(ctx context.Context, req *PromptListChangedRequest) {
	if cs.client.opts.PromptListChangedHandler != nil {
		cs.client.opts.PromptListChangedHandler(ctx, req)
	}
}

func (cs *ClientSession) handleResourceListChanged(ctx context.Context, req *ResourceListChangedRequest) {
	if cs.client.opts.ResourceListChangedHandler != nil {
		cs.client.opts.ResourceListChangedHandler(ctx, req)
	}
}

func (cs *ClientSession) handleLoggingMessage(ctx context.Context, req *LoggingMessageRequest) {
	if cs.client.opts.LoggingMessageHandler != nil {
		cs.client.opts.LoggingMessageHandler(ctx, req)
	}
}

func (cs *ClientSession) handleProgressNotification(ctx context.Context, req *ProgressNotificationClientRequest) {
	if cs.client.opts.ProgressNotificationHandler != nil {
		cs.client.opts.ProgressNotificationHandler(ctx, req)
	}
}

func (cs *ClientSession) handleResourceUpdated(ctx context.Context, req *ResourceUpdatedNotificationRequest) {
	if cs.client.opts.ResourceUpdatedHandler != nil {
		cs.client.opts.ResourceUpdatedHandler(ctx, req)
	}
}

func (cs *ClientSession) handleElicitationComplete(ctx context.Context, req *ElicitationCompleteNotificationRequest) {
	if cs.client.opts.ElicitationCompleteHandler != nil {
		cs.client.opts.ElicitationCompleteHandler(ctx, req)
	}
}

// handle is the incomingHandler passed to newPeerConn: it dispatches an
// incoming JSON-RPC request to the appropriate business-logic method.
func (cs *ClientSession) handle(ctx context.Context, req *JSONRPCRequest) (Result, error) {
	raw, _ := json.Marshal(req.Params)
	switch req.Method {
	case methodPing:
		return serveClientCall(ctx, cs, req.Method, raw, &PingParams{}, cs.handlePing)
	case methodListRoots:
		return serveClientCall(ctx, cs, req.Method, raw, &ListRootsParams{}, cs.handleListRoots)
	case methodCreateMessage:
		return cs.handleCreateMessage(ctx, raw)
	case methodElicit:
		return serveClientCall(ctx, cs, req.Method, raw, &ElicitParams{}, cs.handleElicit)
	case notificationToolListChanged:
		return serveClientNotify(ctx, cs, req.Method, raw, &ToolListChangedParams{}, cs.handleToolListChanged)
	case notificationPromptListChanged:
		return serveClientNotify(ctx, cs, req.Method, raw, &PromptListChangedParams{}, cs.handlePromptListChanged)
	case notificationResourceListChanged:
		return serveClientNotify(ctx, cs, req.Method, raw, &ResourceListChangedParams{}, cs.handleResourceListChanged)
	case notificationLoggingMessage:
		return serveClientNotify(ctx, cs, req.Method, raw, &LoggingMessageParams{}, cs.handleLoggingMessage)
	case notificationProgress:
		return serveClientNotify(ctx, cs, req.Method, raw, &ProgressNotificationParams{}, cs.handleProgressNotification)
	case notificationResourceUpdated:
		return serveClientNotify(ctx, cs, req.Method, raw, &ResourceUpdatedNotificationParams{}, cs.handleResourceUpdated)
	case notificationElicitationComplete:
		return serveClientNotify(ctx, cs, req.Method, raw, &ElicitationCompleteParams{}, cs.handleElicitationComplete)
	case notificationCancelled:
		return nil, nil
	default:
		return nil, jsonrpcMethodNotFound(req.Method)
	}
}
