// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/relaymcp/mcp-go/internal/jsonrpc2"
)

// A Transport connects to an MCP peer, producing a [Connection] over which
// JSON-RPC messages are exchanged.
//
// The package provides [Transport] implementations for the streamable HTTP,
// legacy HTTP+SSE and WebSocket transports, as well as
// [NewInMemoryTransports] for testing. It has no stdio (child-process)
// transport.
type Transport interface {
	// Connect returns the connection used to communicate with the peer.
	Connect(ctx context.Context) (Connection, error)
}

// A Connection is a logical JSON-RPC connection with an MCP peer.
type Connection interface {
	// Read reads the next message from the connection.
	Read(ctx context.Context) (JSONRPCMessage, error)
	// Write writes a message to the connection.
	Write(ctx context.Context, msg JSONRPCMessage) error
	// Close closes the connection.
	Close() error
}

// sessionIDer is implemented by connections that carry a logical session
// ID, such as the streamable HTTP and WebSocket transports.
type sessionIDer interface {
	SessionID() string
}

// NewInMemoryTransports returns two [Transport]s that communicate with
// each other in-process, for use in tests and examples.
func NewInMemoryTransports() (clientTransport, serverTransport Transport) {
	c2s := newInMemoryPipe()
	s2c := newInMemoryPipe()
	return &inMemoryTransport{read: s2c, write: c2s},
		&inMemoryTransport{read: c2s, write: s2c}
}

type inMemoryPipe struct {
	mu     sync.Mutex
	ch     chan JSONRPCMessage
	closed bool
}

func newInMemoryPipe() *inMemoryPipe {
	return &inMemoryPipe{ch: make(chan JSONRPCMessage, 64)}
}

func (p *inMemoryPipe) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

type inMemoryTransport struct {
	read, write *inMemoryPipe
}

func (t *inMemoryTransport) Connect(context.Context) (Connection, error) {
	return &inMemoryConn{read: t.read, write: t.write}, nil
}

type inMemoryConn struct {
	read, write *inMemoryPipe
	closeOnce   sync.Once
}

func (c *inMemoryConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-c.read.ch:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	}
}

func (c *inMemoryConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	c.write.mu.Lock()
	closed := c.write.closed
	c.write.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: write on closed connection", ErrConnectionClosed)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.write.ch <- msg:
		return nil
	}
}

func (c *inMemoryConn) Close() error {
	c.closeOnce.Do(func() {
		c.write.close()
	})
	return nil
}

// A LoggingTransport wraps a Transport, logging every message sent and
// received to Writer, in JSON-RPC wire format.
type LoggingTransport struct {
	Transport Transport
	Writer    io.Writer
}

// Connect implements the [Transport] interface.
func (t *LoggingTransport) Connect(ctx context.Context) (Connection, error) {
	conn, err := t.Transport.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingConn{conn: conn, w: t.Writer}, nil
}

type loggingConn struct {
	conn Connection
	mu   sync.Mutex
	w    io.Writer
}

func (c *loggingConn) log(dir string, msg JSONRPCMessage) {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s\n", dir, data)
}

func (c *loggingConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	msg, err := c.conn.Read(ctx)
	if err == nil {
		c.log("read:", msg)
	}
	return msg, err
}

func (c *loggingConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	c.log("write:", msg)
	return c.conn.Write(ctx, msg)
}

func (c *loggingConn) Close() error {
	return c.conn.Close()
}
