// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc re-exports the JSON-RPC 2.0 wire types that transports
// exchange, so that a Transport implementation outside this module never
// needs to import the internal codec package directly.
package jsonrpc

import (
	"github.com/relaymcp/mcp-go/internal/jsonrpc2"
)

// Message, Request and Response mirror the JSON-RPC 2.0 message shapes.
// A Request with an invalid ID is a notification.
type (
	Message  = jsonrpc2.Message
	Request  = jsonrpc2.Request
	Response = jsonrpc2.Response
	ID       = jsonrpc2.ID
	Error    = jsonrpc2.WireError
)

// StringID and Int64ID construct request identifiers.
var (
	StringID = jsonrpc2.StringID
	Int64ID  = jsonrpc2.Int64ID
	MakeID   = jsonrpc2.MakeID
)

// NewNotification, NewCall, NewResponse and NewError build messages.
var (
	NewNotification = jsonrpc2.NewNotification
	NewCall         = jsonrpc2.NewCall
	NewResponse     = jsonrpc2.NewResponse
	NewError        = jsonrpc2.NewError
)

// EncodeMessage, DecodeMessage and EncodeIndent convert between a Message
// and its single-object wire encoding. Callers that frame messages
// themselves (newline-delimited for stdio, SSE "data:" lines for the HTTP
// transports) call these once per frame.
var (
	EncodeMessage = jsonrpc2.EncodeMessage
	DecodeMessage = jsonrpc2.DecodeMessage
	EncodeIndent  = jsonrpc2.EncodeIndent
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = jsonrpc2.CodeParseError
	CodeInvalidRequest = jsonrpc2.CodeInvalidRequest
	CodeMethodNotFound = jsonrpc2.CodeMethodNotFound
	CodeInvalidParams  = jsonrpc2.CodeInvalidParams
	CodeInternalError  = jsonrpc2.CodeInternalError
)
