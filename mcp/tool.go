// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/relaymcp/mcp-go/jsonrpc"
)

// A ToolHandler handles a call to tools/call. req.Params.Arguments holds the
// raw (un-unmarshaled) arguments sent by the client; it is the handler's
// responsibility to unmarshal and validate them.
//
// Most callers should use [AddTool] instead, which handles unmarshaling and
// validation against the tool's input schema automatically.
type ToolHandler func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error)

// A serverTool is a tool definition that is bound to a tool handler.
type serverTool struct {
	tool    *Tool
	handler ToolHandler
	// Resolved tool schemas. Set in newServerTool.
	inputResolved, outputResolved *jsonschema.Resolved
}

// A TypedToolHandler handles a call to tools/call with typed arguments and
// results. The In type is inferred from, or used to infer, the tool's input
// schema; likewise Out and the output schema, unless Out is the empty
// interface.
type TypedToolHandler[In, Out any] func(ctx context.Context, req *CallToolRequest, args In) (*CallToolResult, Out, error)

// AddTool adds a tool to the server with a typed handler, inferring any
// schema t doesn't already specify from In and Out.
//
// It panics if t's schemas are invalid or cannot be inferred.
func AddTool[In, Out any](s *Server, t *Tool, h TypedToolHandler[In, Out]) {
	st, err := newTypedServerTool(t, h)
	if err != nil {
		panic(fmt.Sprintf("AddTool(%q): %v", t.Name, err))
	}
	s.addTool(st)
}

// resolveSchema coerces a Tool schema field (any) to *jsonschema.Schema,
// re-marshaling through JSON if it isn't already that concrete type (as
// happens for schemas populated from the wire on the client side).
func resolveSchema(s any) (*jsonschema.Schema, error) {
	if sch, ok := s.(*jsonschema.Schema); ok {
		return sch, nil
	}
	var sch jsonschema.Schema
	if err := remarshal(s, &sch); err != nil {
		return nil, err
	}
	return &sch, nil
}

func newServerTool(t *Tool, h ToolHandler) (*serverTool, error) {
	if t.InputSchema == nil {
		// This prevents the tool author from forgetting to write a schema where
		// one should be provided. If we papered over this by supplying the empty
		// schema, then every input would be validated and the problem wouldn't be
		// discovered until runtime, when the LLM sent bad data.
		return nil, errors.New("missing input schema")
	}
	st := &serverTool{tool: t, handler: h}
	inSchema, err := resolveSchema(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	st.inputResolved, err = inSchema.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	if t.OutputSchema != nil {
		outSchema, err := resolveSchema(t.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("output schema: %w", err)
		}
		st.outputResolved, err = outSchema.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
		if err != nil {
			return nil, fmt.Errorf("output schema: %w", err)
		}
	}
	return st, nil
}

// newTypedServerTool creates a serverTool from a tool and a handler.
// If the tool doesn't have an input schema, it is inferred from In.
// If the tool doesn't have an output schema and Out != any, it is inferred from Out.
func newTypedServerTool[In, Out any](t *Tool, h TypedToolHandler[In, Out]) (*serverTool, error) {
	var err error
	if t.InputSchema == nil {
		t.InputSchema, err = jsonschema.For[In](nil)
		if err != nil {
			return nil, err
		}
		if typ := t.InputSchema.(*jsonschema.Schema).Type; typ != "object" {
			return nil, fmt.Errorf("input schema type is %q, want \"object\"", typ)
		}
	}
	if t.OutputSchema == nil && reflect.TypeFor[Out]() != reflect.TypeFor[any]() {
		t.OutputSchema, err = jsonschema.For[Out](nil)
		if err != nil {
			return nil, err
		}
		if typ := t.OutputSchema.(*jsonschema.Schema).Type; typ != "object" {
			return nil, fmt.Errorf("output schema type is %q, want \"object\"", typ)
		}
	}

	st, err := newServerTool(t, nil)
	if err != nil {
		return nil, err
	}

	st.handler = func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		var args In
		if err := unmarshalSchema(req.Params.Arguments, st.inputResolved, &args); err != nil {
			return nil, jsonrpc.NewError(CodeInvalidParams, err.Error(), nil)
		}
		res, out, err := h(ctx, req, args)
		if err != nil {
			// A structured JSON-RPC error, e.g. one built by the handler with
			// jsonrpc.NewError, propagates as a protocol-level error so the
			// client sees it as a call failure rather than a tool result.
			var wireErr *jsonrpc.Error
			if errors.As(err, &wireErr) {
				return nil, err
			}
			res = &CallToolResult{}
			res.SetError(err)
			return res, nil
		}
		if res == nil {
			res = &CallToolResult{}
		}
		res.StructuredContent = out
		return res, nil
	}
	return st, nil
}

// unmarshalSchema unmarshals data into v and validates the result according to
// the given resolved schema.
func unmarshalSchema(data json.RawMessage, resolved *jsonschema.Resolved, v any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	// Disallow unknown fields.
	// Otherwise, if the tool was built with a struct, the client could send extra
	// fields and json.Unmarshal would ignore them, so the schema would never get
	// a chance to declare the extra args invalid.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("unmarshaling: %w", err)
	}

	if resolved != nil {
		if err := resolved.ApplyDefaults(v); err != nil {
			return fmt.Errorf("applying defaults from \n\t%s\nto\n\t%s:\n%w", schemaJSON(resolved.Schema()), data, err)
		}
		if err := resolved.Validate(v); err != nil {
			return fmt.Errorf("validating\n\t%s\nagainst\n\t %s:\n %w", data, schemaJSON(resolved.Schema()), err)
		}
	}
	return nil
}

// schemaJSON returns the JSON value for s as a string, or a string indicating an error.
func schemaJSON(s *jsonschema.Schema) string {
	m, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("<!%s>", err)
	}
	return string(m)
}
