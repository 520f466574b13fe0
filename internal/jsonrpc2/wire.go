// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the low-level JSON-RPC 2.0 wire format: request
// and response identifiers, the message envelope, and a strict decoder that
// rejects the case-smuggling tricks encoding/json would otherwise allow.
//
// It has no notion of a connection, a session, or a transport; those live in
// the mcp and jsonrpc packages, which build on top of the types here.
package jsonrpc2

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"

	"github.com/relaymcp/mcp-go/internal/json"
)

// protocolVersion is the JSON-RPC 2.0 marker all messages on the wire carry.
const protocolVersion = "2.0"

// ID is a JSON-RPC request identifier: a string, an int64, or absent.
//
// The zero ID is neither; use IsValid to distinguish "no id" (a notification)
// from an explicitly empty id.
type ID struct {
	value any // nil, int64, or string
}

// StringID returns a string-valued request ID.
func StringID(s string) ID { return ID{value: s} }

// Int64ID returns an integer-valued request ID.
func Int64ID(i int64) ID { return ID{value: i} }

// IsValid reports whether id is not the zero ID.
func (id ID) IsValid() bool { return id.value != nil }

// Raw returns the underlying string or int64, or nil if id is invalid.
func (id ID) Raw() any { return id.value }

func (id ID) String() string {
	switch v := id.value.(type) {
	case string:
		return v
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return "<invalid id>"
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch v := id.value.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return json.Marshal(v)
	case int64:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("jsonrpc2: invalid ID type %T", v)
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.value = s
		return nil
	}
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		id.value = i
		return nil
	}
	return fmt.Errorf("jsonrpc2: invalid ID %q", data)
}

// MakeID converts a decoded JSON value (as produced by encoding/json into an
// any) into an ID. It is used when an ID arrives embedded in a larger
// structure that has already been unmarshalled generically.
func MakeID(v any) (ID, error) {
	switch v := v.(type) {
	case nil:
		return ID{}, nil
	case string:
		return StringID(v), nil
	case float64:
		return Int64ID(int64(v)), nil
	case int64:
		return Int64ID(v), nil
	default:
		return ID{}, fmt.Errorf("jsonrpc2: invalid ID value %v (%T)", v, v)
	}
}

// Message is the sum type of the three JSON-RPC message shapes: a Request
// (call or notification), and a Response.
type Message interface {
	// isJSONRPC2Message is unexported so Message has exactly two
	// implementations, both defined in this package.
	isJSONRPC2Message()
}

// Request is a JSON-RPC request or notification. A notification has an
// invalid (zero) ID.
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

func (*Request) isJSONRPC2Message() {}

// IsCall reports whether the request expects a response.
func (r *Request) IsCall() bool { return r.ID.IsValid() }

// Response is a JSON-RPC response: exactly one of Result and Error is set.
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  error
}

func (*Response) isJSONRPC2Message() {}

// NewNotification builds a Request with no ID.
func NewNotification(method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{Method: method, Params: raw}, nil
}

// NewCall builds a Request carrying id, expecting a Response.
func NewCall(id ID, method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{ID: id, Method: method, Params: raw}, nil
}

// NewResponse builds a successful or failed Response for id.
func NewResponse(id ID, result any, rerr error) (*Response, error) {
	if rerr != nil {
		return &Response{ID: id, Error: rerr}, nil
	}
	raw, err := marshalParams(result)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	return &Response{ID: id, Result: raw}, nil
}

func marshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc2: marshalling params: %w", err)
	}
	return data, nil
}

// wireRequest is the JSON shape of a call or notification on the wire.
type wireRequest struct {
	VersionTag  string          `json:"jsonrpc"`
	ID          *ID             `json:"id,omitempty"`
	Method      string          `json:"method"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// wireResponse is the JSON shape of a response on the wire.
type wireResponse struct {
	VersionTag string          `json:"jsonrpc"`
	ID         *ID             `json:"id,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *WireError      `json:"error,omitempty"`
}

// WireError is the `error` member of a JSON-RPC response object. It
// implements error so it can be returned and matched with errors.As.
type WireError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *WireError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// NewError builds a *WireError, JSON-encoding data (if non-nil) into the
// Data field.
func NewError(code int64, message string, data any) *WireError {
	we := &WireError{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			we.Data = raw
		}
	}
	return we
}

func toWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	var we *WireError
	if errors.As(err, &we) {
		return we
	}
	return &WireError{Code: CodeInternalError, Message: err.Error()}
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// EncodeMessage marshals msg into a single JSON-RPC wire object.
func EncodeMessage(msg Message) ([]byte, error) {
	switch msg := msg.(type) {
	case *Request:
		var idp *ID
		if msg.ID.IsValid() {
			id := msg.ID
			idp = &id
		}
		return json.Marshal(wireRequest{
			VersionTag: protocolVersion,
			ID:         idp,
			Method:     msg.Method,
			Params:     msg.Params,
		})
	case *Response:
		id := msg.ID
		return json.Marshal(wireResponse{
			VersionTag: protocolVersion,
			ID:         &id,
			Result:     msg.Result,
			Error:      toWireError(msg.Error),
		})
	default:
		return nil, fmt.Errorf("jsonrpc2: unknown message type %T", msg)
	}
}

// EncodeIndent is EncodeMessage with indentation, used by LoggingTransport.
func EncodeIndent(msg Message, prefix, indent string) ([]byte, error) {
	raw, err := EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := stdjson.Indent(&buf, raw, prefix, indent); err != nil {
		return raw, nil
	}
	return buf.Bytes(), nil
}

// DecodeMessage unmarshals a single JSON-RPC wire object, dispatching on
// whether it looks like a request or a response. It uses StrictUnmarshal so
// that malformed or smuggled field casing is rejected rather than silently
// accepted.
func DecodeMessage(data []byte) (Message, error) {
	var peek struct {
		Method *string `json:"method"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, &WireError{Code: CodeParseError, Message: err.Error()}
	}
	if peek.Method != nil {
		var wreq wireRequest
		if err := StrictUnmarshal(data, &wreq); err != nil {
			return nil, &WireError{Code: CodeInvalidRequest, Message: err.Error()}
		}
		req := &Request{Method: wreq.Method, Params: wreq.Params}
		if wreq.ID != nil {
			req.ID = *wreq.ID
		}
		return req, nil
	}
	var wresp wireResponse
	if err := StrictUnmarshal(data, &wresp); err != nil {
		return nil, &WireError{Code: CodeInvalidRequest, Message: err.Error()}
	}
	resp := &Response{Result: wresp.Result}
	if wresp.ID != nil {
		resp.ID = *wresp.ID
	}
	if wresp.Error != nil {
		resp.Error = wresp.Error
	}
	return resp, nil
}
