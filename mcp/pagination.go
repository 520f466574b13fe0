// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file implements cursor-based pagination for the four list
// operations (tools, prompts, resources, resource templates), and the
// featureSet that backs each of the server's registries: a set of named
// features (tools, prompts, ...) kept in a stable, sorted order so that
// pagination cursors remain valid across additions and removals.

package mcp

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"
	"sort"
	"sync"
)

// A featureSet holds a collection of features of type T, indexed by an ID
// derived from each feature, in sorted order by that ID.
type featureSet[T any] struct {
	idFunc func(*T) string

	mu   sync.Mutex
	m    map[string]*T
	keys []string // sorted
}

func newFeatureSet[T any](idFunc func(*T) string) *featureSet[T] {
	return &featureSet[T]{idFunc: idFunc, m: make(map[string]*T)}
}

// add inserts or replaces items in the set, keyed by idFunc.
func (fs *featureSet[T]) add(items ...*T) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, it := range items {
		id := fs.idFunc(it)
		if _, ok := fs.m[id]; !ok {
			fs.keys = append(fs.keys, id)
		}
		fs.m[id] = it
	}
	sort.Strings(fs.keys)
}

// remove deletes the features with the given IDs, if present.
func (fs *featureSet[T]) remove(ids ...string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, id := range ids {
		if _, ok := fs.m[id]; !ok {
			continue
		}
		delete(fs.m, id)
		for i, k := range fs.keys {
			if k == id {
				fs.keys = append(fs.keys[:i], fs.keys[i+1:]...)
				break
			}
		}
	}
}

// get returns the feature with the given ID, if present.
func (fs *featureSet[T]) get(id string) (*T, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t, ok := fs.m[id]
	return t, ok
}

// all returns every feature in the set, in sorted order by ID.
func (fs *featureSet[T]) all() []*T {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]*T, len(fs.keys))
	for i, k := range fs.keys {
		out[i] = fs.m[k]
	}
	return out
}

func (fs *featureSet[T]) len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.keys)
}

// cursorParams is implemented by every ...ListParams type.
type cursorParams interface {
	cursorPtr() *string
}

// cursorResult is implemented by every ...ListResult type.
type cursorResult interface {
	nextCursorPtr() *string
}

// defaultPageSize bounds the number of features returned from a single
// list call when the server doesn't otherwise configure one.
const defaultPageSize = 1000

// paginateList computes one page of fs, starting just after the cursor
// found in params, and populates result's items (via setItems) and next
// cursor. pageSize <= 0 means defaultPageSize.
func paginateList[T any, P cursorParams, R cursorResult](fs *featureSet[T], pageSize int, params P, result R, setItems func(R, []*T)) (R, error) {
	all := fs.all()
	cursor := *params.cursorPtr()

	start := 0
	if cursor != "" {
		id, err := decodeCursor(cursor)
		if err != nil {
			var zero R
			return zero, fmt.Errorf("invalid cursor: %w", err)
		}
		start = sort.Search(len(all), func(i int) bool { return fs.idFunc(all[i]) > id })
	}

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}
	page := all[start:end]
	setItems(result, page)

	next := ""
	if end < len(all) {
		next, _ = encodeCursor(fs.idFunc(all[end-1]))
	}
	*result.nextCursorPtr() = next
	return result, nil
}

// encodeCursor and decodeCursor convert an opaque feature ID to and from
// the wire cursor representation.
func encodeCursor(id string) (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(id); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeCursor(cursor string) (string, error) {
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	var id string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&id); err != nil {
		return "", err
	}
	return id, nil
}
