// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/relaymcp/mcp-go/internal/json"
)

func TestIDJSON(t *testing.T) {
	tests := []ID{
		{},
		StringID("abc"),
		Int64ID(42),
	}
	for _, id := range tests {
		data, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", id, err)
		}
		var got ID
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%q): %v", data, err)
		}
		if got != id {
			t.Errorf("round trip: got %v, want %v", got, id)
		}
	}
}

func TestEncodeDecodeRequest(t *testing.T) {
	req, err := NewCall(Int64ID(1), "tools/call", map[string]any{"name": "echo"})
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	data, err := EncodeMessage(req)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	got, ok := msg.(*Request)
	if !ok {
		t.Fatalf("DecodeMessage returned %T, want *Request", msg)
	}
	if got.Method != "tools/call" || got.ID != req.ID {
		t.Errorf("got %+v, want method=%q id=%v", got, req.Method, req.ID)
	}
}

func TestEncodeDecodeNotification(t *testing.T) {
	note, err := NewNotification("notifications/progress", nil)
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}
	if note.IsCall() {
		t.Error("notification should not be a call")
	}
	data, err := EncodeMessage(note)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	got := msg.(*Request)
	if got.IsCall() {
		t.Error("decoded message should not be a call")
	}
}

func TestEncodeDecodeResponseError(t *testing.T) {
	resp, err := NewResponse(Int64ID(7), nil, NewError(CodeInvalidParams, "bad arguments", nil))
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	data, err := EncodeMessage(resp)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	got := msg.(*Response)
	var we *WireError
	if got.Error == nil {
		t.Fatal("expected error response")
	}
	we = got.Error.(*WireError)
	if we.Code != CodeInvalidParams {
		t.Errorf("code = %d, want %d", we.Code, CodeInvalidParams)
	}
}

func TestDecodeMessageRejectsCaseSmuggling(t *testing.T) {
	// "Method" (capitalized) should not be accepted in place of "method".
	data := []byte(`{"jsonrpc":"2.0","id":1,"Method":"tools/call","params":{}}`)
	if _, err := DecodeMessage(data); err == nil {
		t.Error("DecodeMessage accepted a case-smuggled field, want error")
	}
}

func TestMakeID(t *testing.T) {
	tests := []struct {
		in   any
		want ID
	}{
		{nil, ID{}},
		{"x", StringID("x")},
		{float64(3), Int64ID(3)},
	}
	for _, tt := range tests {
		got, err := MakeID(tt.in)
		if err != nil {
			t.Fatalf("MakeID(%v): %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(ID{})); diff != "" {
			t.Errorf("MakeID(%v) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}
