// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"errors"
	"fmt"

	"github.com/relaymcp/mcp-go/jsonrpc"
)

// ErrConnectionClosed is returned by session methods (CallTool, ListTools,
// and so on) when the underlying connection has been closed, either
// locally or by the peer.
var ErrConnectionClosed = errors.New("connection closed")

// ErrNoSession is returned by a [SessionStore] when there is no stored
// state for a given session ID.
var ErrNoSession = errors.New("no session")

// ErrSessionMissing names the condition of a request carrying an
// Mcp-Session-Id that the server does not recognize, typically because the
// session was evicted or the server restarted. No function in this package
// returns it: [StreamableHTTPHandler] answers such a request with HTTP 404,
// and the streamable client reports that as an HTTP status error.
var ErrSessionMissing = errors.New("session missing")

// A CapabilityError reports that a peer attempted an operation it did not
// declare support for during initialization, such as calling a tool when
// the server never declared the "tools" capability.
type CapabilityError struct {
	// Capability is the name of the missing capability, e.g. "tools" or
	// "elicitation".
	Capability string
	// Method is the method that required the capability.
	Method string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("peer does not support capability %q, required for method %q", e.Capability, e.Method)
}

// Standard MCP JSON-RPC error codes, re-exported for convenience.
const (
	CodeParseError     = jsonrpc.CodeParseError
	CodeInvalidRequest = jsonrpc.CodeInvalidRequest
	CodeMethodNotFound = jsonrpc.CodeMethodNotFound
	CodeInvalidParams  = jsonrpc.CodeInvalidParams
	CodeInternalError  = jsonrpc.CodeInternalError

	// CodeResourceNotFound is returned by resources/read when the
	// requested URI does not correspond to a known resource.
	CodeResourceNotFound int64 = -32002
)

// ResourceNotFoundError returns an error appropriate for a
// [ResourceHandler] to return when the requested URI is not found. The
// resulting error carries [CodeResourceNotFound] when it crosses the wire.
func ResourceNotFoundError(uri string) error {
	return jsonrpc.NewError(CodeResourceNotFound, fmt.Sprintf("resource %q not found", uri), nil)
}

func jsonrpcInvalidParams(msg string) error {
	return jsonrpc.NewError(CodeInvalidParams, msg, nil)
}

func jsonrpcMethodNotFound(method string) error {
	return jsonrpc.NewError(CodeMethodNotFound, fmt.Sprintf("method %q not found", method), nil)
}

// statelessError reports that op, a server-to-client request or
// notification, was attempted on a session created by a stateless-mode
// [StreamableHTTPHandler]. Such sessions have no long-lived connection
// over which the peer could receive it.
func statelessError(op string) error {
	return fmt.Errorf("%s are not supported in stateless mode.", op)
}
