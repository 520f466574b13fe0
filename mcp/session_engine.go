// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements the low-level request/response correlation and
// dispatch loop shared by [ServerSession] and [ClientSession]: pairing
// outgoing calls with their responses, and routing incoming requests and
// notifications to a method table.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/relaymcp/mcp-go/jsonrpc"
)

// notificationDelay is the delay before a server or client sends a
// debounced list-changed notification, allowing several rapid
// registrations to coalesce into a single notification.
const notificationDelay = 1 * time.Millisecond

// incomingHandler dispatches an incoming JSON-RPC request (call or
// notification) to application code, returning the result to send back (if
// any) or the error to report.
type incomingHandler func(ctx context.Context, req *JSONRPCRequest) (Result, error)

// peerConn manages the JSON-RPC request/response correlation for one side
// of a connection: sending calls and notifications, and routing incoming
// messages either to pending response channels or to an incomingHandler.
type peerConn struct {
	conn    Connection
	handler incomingHandler

	// decorate, if non-nil, wraps the background context used for each
	// incoming request and the read loop itself, e.g. to apply a captured
	// [SessionContext] snapshot.
	decorate func(context.Context) context.Context

	mu          sync.Mutex
	nextID      int64
	pending     map[string]chan *JSONRPCResponse
	cancelFuncs map[string]context.CancelFunc
	closed      bool
	closeCh     chan struct{}

	done    chan struct{}
	readErr error
}

func newPeerConn(conn Connection, handler incomingHandler) *peerConn {
	p := &peerConn{
		conn:        conn,
		handler:     handler,
		pending:     make(map[string]chan *JSONRPCResponse),
		cancelFuncs: make(map[string]context.CancelFunc),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	go p.readLoop()
	return p
}

// executionContextProvider is implemented by [Connection]s that capture an
// ambient [SessionContext] snapshot to apply to every request dispatched
// over the lifetime of the session, such as [StreamableServerTransport]
// with PerSessionExecutionContext enabled.
type executionContextProvider interface {
	sessionExecutionContext() *SessionContext
}

// newPeerConnForTransport is like newPeerConn, but additionally arranges
// for conn's execution-context snapshot, if any, to be applied to every
// incoming request's context.
func newPeerConnForTransport(conn Connection, handler incomingHandler) *peerConn {
	provider, ok := conn.(executionContextProvider)
	if !ok || provider.sessionExecutionContext() == nil {
		return newPeerConn(conn, handler)
	}
	// decorate is set before the read loop starts, so that the loop and
	// every incoming request see it.
	p := &peerConn{
		conn:        conn,
		handler:     handler,
		decorate:    provider.sessionExecutionContext().Apply,
		pending:     make(map[string]chan *JSONRPCResponse),
		cancelFuncs: make(map[string]context.CancelFunc),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *peerConn) baseContext() context.Context {
	ctx := context.Background()
	if p.decorate != nil {
		ctx = p.decorate(ctx)
	}
	return ctx
}

func (p *peerConn) readLoop() {
	defer close(p.done)
	ctx := p.baseContext()
	for {
		msg, err := p.conn.Read(ctx)
		if err != nil {
			p.mu.Lock()
			p.readErr = err
			pending := p.pending
			p.pending = nil
			p.mu.Unlock()
			for _, ch := range pending {
				close(ch)
			}
			return
		}
		switch m := msg.(type) {
		case *JSONRPCResponse:
			p.mu.Lock()
			ch, ok := p.pending[m.ID.String()]
			if ok {
				delete(p.pending, m.ID.String())
			}
			p.mu.Unlock()
			if ok {
				ch <- m
			}
		case *JSONRPCRequest:
			go p.handleIncoming(m)
		}
	}
}

func (p *peerConn) handleIncoming(req *JSONRPCRequest) {
	ctx := p.baseContext()

	if req.IsCall() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		key := req.ID.String()
		p.mu.Lock()
		p.cancelFuncs[key] = cancel
		p.mu.Unlock()
		defer func() {
			p.mu.Lock()
			delete(p.cancelFuncs, key)
			p.mu.Unlock()
			cancel()
		}()
	} else if req.Method == notificationCancelled {
		var params CancelledParams
		if err := json.Unmarshal(req.Params, &params); err == nil {
			if id, err := jsonrpc.MakeID(params.RequestID); err == nil {
				p.mu.Lock()
				cancel, ok := p.cancelFuncs[id.String()]
				p.mu.Unlock()
				if ok {
					cancel()
				}
			}
		}
	}

	result, err := p.handler(ctx, req)
	if !req.IsCall() {
		return
	}
	resp, merr := jsonrpc.NewResponse(req.ID, result, err)
	if merr != nil {
		resp, _ = jsonrpc.NewResponse(req.ID, nil, jsonrpc.NewError(CodeInternalError, merr.Error(), nil))
	}
	_ = p.conn.Write(ctx, resp)
}

// call sends method/params as a JSON-RPC call and waits for the matching
// response, returning its raw result.
func (p *peerConn) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: call on closed connection", ErrConnectionClosed)
	}
	p.nextID++
	id := jsonrpc.Int64ID(p.nextID)
	ch := make(chan *JSONRPCResponse, 1)
	p.pending[id.String()] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.pending != nil {
			delete(p.pending, id.String())
		}
		p.mu.Unlock()
	}()

	req, err := jsonrpc.NewCall(id, method, params)
	if err != nil {
		return nil, err
	}
	if err := p.conn.Write(ctx, req); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		go p.notify(context.Background(), notificationCancelled, &CancelledParams{RequestID: id.Raw()})
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, p.closedError()
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// notify sends method/params as a JSON-RPC notification.
func (p *peerConn) notify(ctx context.Context, method string, params any) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: notify on closed connection", ErrConnectionClosed)
	}
	req, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	return p.conn.Write(ctx, req)
}

func (p *peerConn) closedError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil && p.readErr.Error() != "EOF" {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, p.readErr)
	}
	return ErrConnectionClosed
}

// Wait blocks until the read loop has exited (the connection is closed, by
// either side), returning the error that caused it to exit, if any and if
// it isn't a plain io.EOF.
func (p *peerConn) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr == nil {
		return nil
	}
	if p.readErr.Error() == "EOF" {
		return nil
	}
	return p.readErr
}

// Close closes the underlying connection and fails any pending calls.
func (p *peerConn) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closeCh)
	p.mu.Unlock()
	return p.conn.Close()
}

// callThrough performs an outgoing call of method with params, running it
// through mw (outermost first) before reaching the wire, and unmarshals the
// raw JSON result into a freshly allocated *Res.
func callThrough[Res any](ctx context.Context, p *peerConn, mw []Middleware, method string, req Request) (*Res, error) {
	base := MethodHandler(func(ctx context.Context, method string, req Request) (Result, error) {
		raw, err := p.call(ctx, method, req.GetParams())
		if err != nil {
			return nil, err
		}
		res := new(Res)
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, res); err != nil {
				return nil, fmt.Errorf("unmarshaling result of %s: %w", method, err)
			}
		}
		return any(res).(Result), nil
	})
	h := addMiddleware(base, mw)
	result, err := h(ctx, method, req)
	if err != nil {
		return nil, err
	}
	res, _ := result.(*Res)
	return res, nil
}

// notifyThrough sends a notification for method/params, running it through
// mw (outermost first).
func notifyThrough(ctx context.Context, p *peerConn, mw []Middleware, method string, req Request) error {
	base := MethodHandler(func(ctx context.Context, method string, req Request) (Result, error) {
		return nil, p.notify(ctx, method, req.GetParams())
	})
	h := addMiddleware(base, mw)
	_, err := h(ctx, method, req)
	return err
}
