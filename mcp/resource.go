// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements resource registration and the file-backed resource
// handler used throughout the test suite and examples: a ResourceHandler
// that serves the contents of a directory tree, mapping file:// URIs to
// paths beneath it.

package mcp

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// A ResourceHandler reads the contents of a resource or a resource that
// matches a registered template.
type ResourceHandler func(ctx context.Context, req *ReadResourceRequest) (*ReadResourceResult, error)

type serverResource struct {
	resource *Resource
	handler  ResourceHandler
}

type serverResourceTemplate struct {
	template *ResourceTemplate
	compiled *uritemplate.Template
	handler  ResourceHandler
}

// fileResourceHandler returns a ResourceHandler that serves files rooted at
// dir, mapping a file:///a/b URI to dir/a/b.
func fileResourceHandler(dir string) ResourceHandler {
	return func(ctx context.Context, req *ReadResourceRequest) (*ReadResourceResult, error) {
		path, err := filePathForURI(dir, req.Params.URI)
		if err != nil {
			return nil, ResourceNotFoundError(req.Params.URI)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ResourceNotFoundError(req.Params.URI)
		}
		mimeType := "text/plain"
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			mimeType = "application/json"
		case ".html":
			mimeType = "text/html"
		}
		return &ReadResourceResult{
			Contents: []*ResourceContents{
				{URI: req.Params.URI, MIMEType: mimeType, Text: string(data)},
			},
		}, nil
	}
}

// filePathForURI resolves a file:// URI to a path under dir, rejecting any
// URI that would escape it.
func filePathForURI(dir, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file URI: %q", uri)
	}
	rel := filepath.FromSlash(strings.TrimPrefix(u.Path, "/"))
	path := filepath.Join(dir, rel)
	if !strings.HasPrefix(path, filepath.Clean(dir)) {
		return "", fmt.Errorf("path %q escapes root %q", path, dir)
	}
	return path, nil
}
