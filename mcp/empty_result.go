// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

// emptyResult is the result of methods that carry no payload beyond
// acknowledging success: ping, resources/subscribe, resources/unsubscribe,
// and logging/setLevel.
type emptyResult struct{}

func (*emptyResult) isResult() {}
