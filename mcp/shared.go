// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file holds the generic request/response plumbing shared by the
// client and server sides of the protocol: the Params/Result/Request
// marker interfaces, the Meta side-channel, and the progress token
// helpers used throughout protocol.go.

package mcp

import "context"

// Meta carries the "_meta" field present on most MCP params and results,
// a free-form bag of protocol and application metadata.
type Meta map[string]any

// GetMeta returns m. It exists so that types embedding Meta satisfy
// interfaces requiring a GetMeta method.
func (m Meta) GetMeta() Meta { return m }

// SetMeta replaces the contents of m with the contents of other.
func (m *Meta) SetMeta(other Meta) { *m = other }

// Params is implemented by every MCP request and notification parameter
// type. It exists to prevent arbitrary values from being used where a
// request parameter is expected.
type Params interface {
	isParams()
	GetMeta() Meta
	SetMeta(Meta)
}

// Result is implemented by every MCP result type, for the same reason
// that Params exists.
type Result interface {
	isResult()
}

// progressTokenKey is the key under which a progress token is stored in a
// Params value's Meta.
const progressTokenKey = "progressToken"

// metaHolder is satisfied by any Params or Result embedding Meta.
type metaHolder interface {
	GetMeta() Meta
	SetMeta(Meta)
}

// getProgressToken extracts the progress token from p's Meta, if any.
func getProgressToken(p metaHolder) any {
	m := p.GetMeta()
	if m == nil {
		return nil
	}
	return m[progressTokenKey]
}

// setProgressToken stashes a progress token in p's Meta.
func setProgressToken(p metaHolder, t any) {
	m := p.GetMeta()
	if m == nil {
		m = Meta{}
	}
	m[progressTokenKey] = t
	p.SetMeta(m)
}

// Session is implemented by [*ClientSession] and [*ServerSession]. It is
// used as a generic constraint for code that is agnostic to which side of
// the connection it runs on, such as middleware.
type Session interface {
	ID() string
	isSession()
}

// Request is implemented by [*ClientRequest] and [*ServerRequest]
// instantiations. It lets [MethodHandler] and [Middleware] operate
// uniformly on both directions of the protocol.
type Request interface {
	isRequest()
	GetParams() Params
}

// A ServerRequest bundles the parameters of an incoming client-to-server
// call or notification with the session it arrived on.
type ServerRequest[P Params] struct {
	Session *ServerSession
	Params  P

	// Extra carries the HTTP request that produced this call, when the
	// server is reached over an HTTP-based transport. It is nil for other
	// transports.
	Extra *RequestExtra
}

func (*ServerRequest[P]) isRequest()          {}
func (r *ServerRequest[P]) GetParams() Params { return r.Params }

// A ClientRequest bundles the parameters of an incoming server-to-client
// call or notification with the session it arrived on.
type ClientRequest[P Params] struct {
	Session *ClientSession
	Params  P
}

func (*ClientRequest[P]) isRequest()          {}
func (r *ClientRequest[P]) GetParams() Params { return r.Params }

// RequestExtra carries transport-specific information about the request
// that produced an incoming call, for transports that have such a notion
// (currently, the streamable HTTP transport).
type RequestExtra struct {
	Header map[string][]string
}

// A MethodHandler handles MCP messages.
// Server and client [Middleware] is expressed as a func that transforms
// MethodHandlers.
//
// The req argument is a [*ServerRequest] or [*ClientRequest], depending on
// the value of method. Handlers should assert the type of req to the
// expected type.
//
// For notifications, the return value is ignored.
type MethodHandler func(ctx context.Context, method string, req Request) (Result, error)

// Middleware is a function from MethodHandlers to MethodHandlers, used to
// wrap a method call with cross-cutting behavior, such as logging,
// metrics, or tracing.
type Middleware func(MethodHandler) MethodHandler

// addMiddleware returns a new MethodHandler that invokes mw (in order)
// around h, so that mw[0] is the outermost layer.
func addMiddleware(h MethodHandler, mw []Middleware) MethodHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
