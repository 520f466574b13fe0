// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the legacy HTTP+SSE transport, as defined by the
// 2024-11-05 version of the MCP spec: a long-lived GET request carrying
// server-to-client messages as Server-Sent Events, paired with a
// discovered POST endpoint for client-to-server messages.

package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"sync"

	"github.com/relaymcp/mcp-go/jsonrpc"
)

// SSEHandlerOptions configures an [SSEHandler].
type SSEHandlerOptions struct {
	// MaxBodyBytes caps the size of an incoming POST body. Zero selects
	// [DefaultMaxBodyBytes]; a negative value disables the limit.
	MaxBodyBytes int64
}

// An SSEHandler is an http.Handler that serves MCP sessions using the
// legacy HTTP+SSE transport.
type SSEHandler struct {
	getServer func(*http.Request) *Server
	opts      SSEHandlerOptions

	// onConnection, if set, is called with each new [ServerSession] as it is
	// created. It exists for testing and must not block.
	onConnection func(*ServerSession)

	mu       sync.Mutex
	sessions map[string]*SSEServerTransport // keyed by session ID
}

// NewSSEHandler returns a new [SSEHandler] that is ready to serve HTTP.
//
// The getServer function is used to bind servers to incoming sessions. It
// is OK for getServer to return the same server multiple times.
func NewSSEHandler(getServer func(*http.Request) *Server, opts *SSEHandlerOptions) *SSEHandler {
	h := &SSEHandler{
		getServer: getServer,
		sessions:  make(map[string]*SSEServerTransport),
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		h.serveGET(w, req)
	case http.MethodPost:
		h.servePOST(w, req)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// serveGET opens a new session: it registers a fresh [SSEServerTransport]
// and streams server-to-client messages to it as SSE events, starting
// with an "endpoint" event carrying the URL the client must POST messages
// to.
func (h *SSEHandler) serveGET(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := randText()
	t := &SSEServerTransport{
		MaxBodyBytes: h.opts.MaxBodyBytes,
		id:           id,
		incoming:     make(chan JSONRPCMessage, 100),
		done:         make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[id] = t
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
	}()

	server := h.getServer(req)
	ss, err := server.Connect(req.Context(), t, nil)
	if err != nil {
		http.Error(w, "connection failed", http.StatusInternalServerError)
		return
	}
	defer ss.Close()
	if h.onConnection != nil {
		h.onConnection(ss)
	}

	endpoint, err := req.URL.Parse("?sessionid=" + id)
	if err != nil {
		http.Error(w, "internal error: failed to create endpoint", http.StatusInternalServerError)
		return
	}
	t.attach(w)
	if _, err := writeEvent(w, event{name: "endpoint", data: []byte(endpoint.RequestURI())}); err != nil {
		return // too late to write a status header
	}

	select {
	case <-req.Context().Done():
	case <-t.done:
	}
}

// servePOST looks up the session named by the "sessionid" query parameter
// and forwards the request to its transport.
func (h *SSEHandler) servePOST(w http.ResponseWriter, req *http.Request) {
	id := req.URL.Query().Get("sessionid")
	if id == "" {
		http.Error(w, "sessionid must be provided", http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	t := h.sessions[id]
	h.mu.Unlock()
	if t == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	t.ServeHTTP(w, req)
}

// An SSEServerTransport is the server side of one SSE session: a
// [Connection] fed by POST requests and drained by the hanging GET
// request opened through an [SSEHandler].
//
// It is used directly (without an [SSEHandler]) in tests that want to
// exercise request validation without the session-registry machinery.
type SSEServerTransport struct {
	// MaxBodyBytes caps the size of an incoming POST body. Zero selects
	// [DefaultMaxBodyBytes]; a negative value disables the limit.
	MaxBodyBytes int64

	id       string
	incoming chan JSONRPCMessage
	done     chan struct{}

	mu     sync.Mutex
	w      io.Writer // the hanging GET response body, once attached
	isDone bool
}

// Connect implements the [Transport] interface: an SSEServerTransport is
// its own logical connection.
func (t *SSEServerTransport) Connect(context.Context) (Connection, error) {
	return t, nil
}

// Read implements the [Connection] interface.
func (t *SSEServerTransport) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-t.incoming:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-t.done:
		return nil, io.EOF
	}
}

// Write implements the [Connection] interface: it writes msg as a
// "message" SSE event to the attached hanging GET response, if any.
func (t *SSEServerTransport) Write(ctx context.Context, msg JSONRPCMessage) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isDone {
		return io.EOF
	}
	if t.w == nil {
		return fmt.Errorf("sse: no hanging GET attached to session %s", t.id)
	}
	_, err = writeEvent(t.w, event{name: "message", data: data})
	return err
}

// Close implements the [Connection] interface.
func (t *SSEServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isDone {
		t.isDone = true
		close(t.done)
	}
	return nil
}

// methodRequiresID reports whether method names a call (as opposed to a
// notification), and so must carry a valid request ID.
func methodRequiresID(method string) bool {
	switch method {
	case methodCallTool, methodComplete, methodCreateMessage, methodElicit,
		methodGetPrompt, methodInitialize, methodListPrompts,
		methodListResourceTemplates, methodListResources, methodListRoots,
		methodListTools, methodPing, methodReadResource, methodSetLevel,
		methodSubscribe, methodUnsubscribe:
		return true
	}
	return false
}

// isKnownMethod reports whether method is any method or notification
// recognized by this package.
func isKnownMethod(method string) bool {
	if methodRequiresID(method) {
		return true
	}
	switch method {
	case notificationCancelled, notificationElicitationComplete,
		notificationInitialized, notificationLoggingMessage,
		notificationProgress, notificationPromptListChanged,
		notificationResourceListChanged, notificationResourceUpdated,
		notificationRootsListChanged, notificationToolListChanged:
		return true
	}
	return false
}

// ServeHTTP handles the POST side of the session: decoding the message
// body, validating it, and queuing it for delivery to the connected
// [ServerSession].
//
// This method also serves as the SSEServerTransport's message-intake
// endpoint when used standalone, without an [SSEHandler].
func (t *SSEServerTransport) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	limit := effectiveMaxBodyBytes(t.MaxBodyBytes)
	bodyReader := req.Body
	if limit > 0 {
		bodyReader = http.MaxBytesReader(w, req.Body, limit)
	}
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		if isMaxBytesError(err) {
			writeRequestBodyTooLarge(w)
		} else {
			http.Error(w, "failed to read body", http.StatusBadRequest)
		}
		return
	}

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		http.Error(w, "failed to parse body", http.StatusBadRequest)
		return
	}

	jreq, ok := msg.(*JSONRPCRequest)
	if !ok || !isKnownMethod(jreq.Method) {
		http.Error(w, fmt.Sprintf("not handled: unrecognized method %q", jsonrpcMethod(msg)), http.StatusBadRequest)
		return
	}
	if methodRequiresID(jreq.Method) && !jreq.ID.IsValid() {
		http.Error(w, fmt.Sprintf("missing id: method %q requires a request id", jreq.Method), http.StatusBadRequest)
		return
	}

	select {
	case t.incoming <- msg:
	case <-t.done:
		http.Error(w, "session closed", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// jsonrpcMethod extracts the method name from msg for error reporting,
// returning the empty string for responses.
func jsonrpcMethod(msg JSONRPCMessage) string {
	if req, ok := msg.(*JSONRPCRequest); ok {
		return req.Method
	}
	return ""
}

// attach registers w as the destination for the session's hanging GET
// stream. It is called by [SSEHandler.serveGET] before writing the
// "endpoint" event.
func (t *SSEServerTransport) attach(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w = w
}

// An SSEClientTransport is a [Transport] that can communicate with an MCP
// endpoint serving the legacy SSE transport defined by the 2024-11-05
// version of the spec.
type SSEClientTransport struct {
	// Endpoint is the URL of the SSE stream.
	Endpoint string

	// HTTPClient is the client to use for making HTTP requests. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client

	// ModifyRequest, if set, is called to customize every outgoing HTTP
	// request (both the initial GET and subsequent message POSTs) before it
	// is sent.
	ModifyRequest func(*http.Request)
}

// Connect implements the [Transport] interface. It opens the SSE stream,
// reads the initial "endpoint" event to discover the message-POST URL,
// and returns a [Connection] backed by both.
func (t *SSEClientTransport) Connect(ctx context.Context) (Connection, error) {
	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if t.ModifyRequest != nil {
		t.ModifyRequest(req)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("sse: connecting to %s: %s", t.Endpoint, resp.Status)
	}

	sseEndpoint, err := url.Parse(t.Endpoint)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	events, stop := iter.Pull2(scanEvents(resp.Body))
	evt, eerr, ok := events()
	if !ok {
		stop()
		resp.Body.Close()
		return nil, fmt.Errorf("sse: reading endpoint event: stream closed")
	}
	if eerr != nil {
		stop()
		resp.Body.Close()
		return nil, fmt.Errorf("sse: reading endpoint event: %w", eerr)
	}
	if evt.name != "endpoint" {
		stop()
		resp.Body.Close()
		return nil, fmt.Errorf("sse: first event is %q, want %q", evt.name, "endpoint")
	}
	msgEndpoint, err := sseEndpoint.Parse(string(evt.data))
	if err != nil {
		stop()
		resp.Body.Close()
		return nil, fmt.Errorf("sse: parsing endpoint event: %w", err)
	}

	c := &sseClientConn{
		client:        client,
		modifyRequest: t.ModifyRequest,
		msgEndpoint:   msgEndpoint,
		body:          resp.Body,
		incoming:      make(chan []byte, 100),
		done:          make(chan struct{}),
	}
	go c.receive(events, stop)
	return c, nil
}

// sseClientConn is the client side of one SSE session.
type sseClientConn struct {
	client        *http.Client
	modifyRequest func(*http.Request)
	msgEndpoint   *url.URL

	incoming chan []byte

	mu       sync.Mutex
	body     io.ReadCloser
	isDone   bool
	done     chan struct{}
	closeErr error
}

// receive drains events (the remainder of the SSE stream already opened
// by Connect), pushing "message" event payloads to c.incoming until the
// stream ends or the connection is closed.
func (c *sseClientConn) receive(next func() (event, error, bool), stop func()) {
	defer stop()
	for {
		evt, err, ok := next()
		if !ok || err != nil {
			close(c.incoming)
			return
		}
		if evt.name != "message" {
			continue
		}
		select {
		case c.incoming <- evt.data:
		case <-c.done:
			close(c.incoming)
			return
		}
	}
}

// Read implements the [Connection] interface.
func (c *sseClientConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-c.incoming:
		if !ok {
			return nil, io.EOF
		}
		return jsonrpc.DecodeMessage(data)
	case <-c.done:
		c.mu.Lock()
		err := c.closeErr
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

// Write implements the [Connection] interface: it POSTs msg to the
// discovered message endpoint.
func (c *sseClientConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	done := c.isDone
	c.mu.Unlock()
	if done {
		return io.EOF
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.msgEndpoint.String(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.modifyRequest != nil {
		c.modifyRequest(req)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sse: posting message: %s", resp.Status)
	}
	return nil
}

// Close implements the [Connection] interface.
func (c *sseClientConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isDone {
		c.isDone = true
		c.closeErr = c.body.Close()
		close(c.done)
	}
	return c.closeErr
}
