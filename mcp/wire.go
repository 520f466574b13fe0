// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file adapts the low-level JSON-RPC 2.0 wire types from
// internal/jsonrpc2 for use within the mcp package, and implements the
// framing helpers shared by the HTTP-based transports: JSON-RPC batches
// and Server-Sent Events.

package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/relaymcp/mcp-go/internal/jsonrpc2"
)

type (
	// JSONRPCMessage is any JSON-RPC 2.0 message: a request, a
	// notification, or a response.
	JSONRPCMessage = jsonrpc2.Message
	// JSONRPCRequest is a JSON-RPC 2.0 request or notification.
	JSONRPCRequest = jsonrpc2.Request
	// JSONRPCResponse is a JSON-RPC 2.0 response.
	JSONRPCResponse = jsonrpc2.Response
	// JSONRPCID is a JSON-RPC 2.0 request ID.
	JSONRPCID = jsonrpc2.ID
)

// readBatch parses data as either a single JSON-RPC message or a JSON-RPC
// batch (a JSON array of messages), returning the individual messages in
// the order they appeared and whether the input was a batch.
func readBatch(data []byte) ([]JSONRPCMessage, bool, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty message")
	}
	if trimmed[0] != '[' {
		msg, err := jsonrpc2.DecodeMessage(data)
		if err != nil {
			return nil, false, err
		}
		return []JSONRPCMessage{msg}, false, nil
	}

	var rawMsgs []json.RawMessage
	if err := json.Unmarshal(data, &rawMsgs); err != nil {
		return nil, true, fmt.Errorf("decoding batch: %w", err)
	}
	msgs := make([]JSONRPCMessage, 0, len(rawMsgs))
	for _, raw := range rawMsgs {
		msg, err := jsonrpc2.DecodeMessage(raw)
		if err != nil {
			return nil, true, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, true, nil
}

// writeBatch encodes msgs as a JSON-RPC batch if there is more than one
// message, or a single message otherwise.
func writeBatch(msgs []JSONRPCMessage) ([]byte, error) {
	if len(msgs) == 1 {
		return jsonrpc2.EncodeMessage(msgs[0])
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, msg := range msgs {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := jsonrpc2.EncodeMessage(msg)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// An event is a single Server-Sent Event.
type event struct {
	name string
	id   string
	data []byte
}

// writeEvent writes e to w in the SSE wire format, flushing if w supports
// it.
func writeEvent(w io.Writer, e event) (int, error) {
	var buf bytes.Buffer
	if e.name != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.name)
	}
	if e.id != "" {
		fmt.Fprintf(&buf, "id: %s\n", e.id)
	}
	for _, line := range strings.Split(string(e.data), "\n") {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}
	buf.WriteByte('\n')
	n, err := w.Write(buf.Bytes())
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	return n, err
}

type flusher interface {
	Flush()
}

// scanEvents reads Server-Sent Events from r, yielding each event and any
// error encountered. Iteration stops, yielding a final io.EOF, when r is
// exhausted.
func scanEvents(r io.Reader) iter.Seq2[event, error] {
	return func(yield func(event, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

		var cur event
		var data bytes.Buffer
		haveEvent := false

		flush := func() bool {
			if !haveEvent {
				return true
			}
			cur.data = bytes.TrimSuffix(data.Bytes(), []byte("\n"))
			ok := yield(cur, nil)
			cur = event{}
			data.Reset()
			haveEvent = false
			return ok
		}

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if !flush() {
					return
				}
				continue
			}
			haveEvent = true
			switch {
			case strings.HasPrefix(line, "event:"):
				cur.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "id:"):
				cur.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			case strings.HasPrefix(line, "data:"):
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
				data.WriteByte('\n')
			case strings.HasPrefix(line, ":"):
				// Comment; ignore.
			}
		}
		if err := scanner.Err(); err != nil {
			yield(event{}, err)
			return
		}
		flush()
		yield(event{}, io.EOF)
	}
}
