// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build mcp_go_client_oauth

package oauthex

import "fmt"

// wrapf wraps *errp with a message built from format and args, if *errp is
// non-nil. It is meant to be called with defer:
//
//	defer wrapf(&err, "doing %s", thing)
func wrapf(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf(format+": %w", append(args, *errp)...)
	}
}
