// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"sync"
)

// A SessionContext carries a snapshot of ambient request context values,
// captured once when a [StreamableHTTPHandler] session with
// PerSessionExecutionContext enabled is created, and applied to every
// subsequent request dispatched for that session. This gives tool and
// resource handlers access to host-specific values (for example, an
// authenticated principal) established on the connecting HTTP request,
// even though every later POST to the session arrives as its own, unrelated
// request.Context().
type SessionContext struct {
	snapshot context.Context
}

// newSessionContext captures ctx as a session-lifetime snapshot.
func newSessionContext(ctx context.Context) *SessionContext {
	return &SessionContext{snapshot: ctx}
}

// Apply returns a context derived from ctx that additionally carries every
// value recorded in the session's snapshot; for a key that ctx itself holds,
// ctx's value wins. Cancellation and deadlines still come from ctx, not the
// snapshot.
func (sc *SessionContext) Apply(ctx context.Context) context.Context {
	return sessionSnapshotContext{Context: ctx, snapshot: sc.snapshot}
}

// sessionSnapshotContext serves Value lookups from snapshot when ctx
// itself holds nothing for the key, so per-request deadlines and
// cancellation (from the embedded ctx) are preserved while ambient values
// fall back to whatever was live when the session was created.
type sessionSnapshotContext struct {
	context.Context
	snapshot context.Context
}

func (c sessionSnapshotContext) Value(key any) any {
	if v := c.Context.Value(key); v != nil {
		return v
	}
	return c.snapshot.Value(key)
}

// SessionState is the state of a session.
type SessionState struct {
	// InitializeParams are the parameters from the initialize request.
	InitializeParams *InitializeParams `json:"initializeParams"`

	// LogLevel is the logging level for the session.
	LogLevel LoggingLevel `json:"logLevel"`

	// TODO: resource subscriptions
}

// SessionStore is an interface for storing and retrieving session state.
type SessionStore interface {
	// Load retrieves the session state for the given session ID.
	// If there is none, it returns nil, ErrNoSession.
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	// Store saves the session state for the given session ID.
	Store(ctx context.Context, sessionID string, state *SessionState) error
	// Delete removes the session state for the given session ID.
	Delete(ctx context.Context, sessionID string) error
}

// MemorySessionStore is an in-memory implementation of SessionStore.
// It is safe for concurrent use.
type MemorySessionStore struct {
	mu    sync.Mutex
	store map[string]*SessionState
}

// NewMemorySessionStore creates a new MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		store: make(map[string]*SessionState),
	}
}

// Load retrieves the session state for the given session ID.
func (s *MemorySessionStore) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.store[sessionID]
	if !ok {
		return nil, ErrNoSession
	}
	return state, nil
}

// Store saves the session state for the given session ID.
func (s *MemorySessionStore) Store(ctx context.Context, sessionID string, state *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[sessionID] = state
	return nil
}

// Delete removes the session state for the given session ID.
func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, sessionID)
	return nil
}
