// Package json centralizes the JSON codec used on the wire-message hot
// path.
//
// It forwards to segmentio/encoding/json, a drop-in replacement for the
// standard library's encoding/json with the same Marshal/Unmarshal
// semantics but a reflection-free fast path for common struct shapes.
// Everything in jsonrpc and mcp that encodes or decodes a JSON-RPC frame
// goes through here, so swapping codecs only touches this file. Types that
// must cross package boundaries (json.RawMessage, json.Marshaler) keep
// using the standard library's definitions, since segmentio's encoder
// recognizes them via the same interfaces.
package json

import (
	segmentjson "github.com/segmentio/encoding/json"
)

func Marshal(v any) ([]byte, error) {
	return segmentjson.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return segmentjson.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return segmentjson.Unmarshal(data, v)
}
