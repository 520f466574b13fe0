// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file adapts log/slog to the MCP logging capability, so that a
// server can forward its application log records as logging/message
// notifications to clients that are listening.

package mcp

import (
	"context"
	"log/slog"
)

// Additional slog levels corresponding to the RFC 5424 severities that MCP
// supports but slog does not define constants for.
const (
	LevelNotice    = slog.Level(2)
	LevelCritical  = slog.Level(9)
	LevelAlert     = slog.Level(10)
	LevelEmergency = slog.Level(11)
)

// LoggingHandlerOptions configures a [LoggingHandler].
type LoggingHandlerOptions struct {
	// LoggerName is reported as the Logger field of each LoggingMessageParams.
	LoggerName string
}

// A LoggingHandler is a [slog.Handler] that forwards log records to a
// client as logging/message notifications, through a [ServerSession].
type LoggingHandler struct {
	session *ServerSession
	opts    LoggingHandlerOptions
	attrs   []slog.Attr
}

// NewLoggingHandler returns a LoggingHandler that sends records to ss.
// If opts is nil, default options are used.
func NewLoggingHandler(ss *ServerSession, opts *LoggingHandlerOptions) *LoggingHandler {
	if opts == nil {
		opts = &LoggingHandlerOptions{}
	}
	return &LoggingHandler{session: ss, opts: *opts}
}

// Enabled always reports true: level filtering happens in
// [ServerSession.Log], based on the level the client last requested.
func (h *LoggingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *LoggingHandler) Handle(ctx context.Context, r slog.Record) error {
	data := map[string]any{"msg": r.Message}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return h.session.Log(ctx, &LoggingMessageParams{
		Logger: h.opts.LoggerName,
		Level:  slogLevelToMCP(r.Level),
		Data:   data,
	})
}

func (h *LoggingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &cp
}

// WithGroup is unsupported: logging/message data has no notion of nested
// groups, so group names are dropped and attributes remain flat.
func (h *LoggingHandler) WithGroup(string) slog.Handler { return h }

func slogLevelToMCP(l slog.Level) LoggingLevel {
	switch {
	case l < slog.LevelInfo:
		return "debug"
	case l < LevelNotice:
		return "info"
	case l < slog.LevelWarn:
		return "notice"
	case l < slog.LevelError:
		return "warning"
	case l < LevelCritical:
		return "error"
	case l < LevelAlert:
		return "critical"
	case l < LevelEmergency:
		return "alert"
	default:
		return "emergency"
	}
}
