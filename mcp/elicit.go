// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file validates the elicitation schemas that a server may request
// from a client via elicitation/create. The MCP elicitation spec restricts
// requested schemas to a flat object of primitive-typed properties, a much
// narrower subset of JSON Schema than tool input/output schemas allow.

package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// validateElicitSchema reports whether schema is a valid elicitation
// request schema: a (possibly absent) object schema whose properties are
// all primitively typed.
func validateElicitSchema(schema *jsonschema.Schema) error {
	if schema == nil {
		return nil
	}
	if schema.Type != "" && schema.Type != "object" {
		return fmt.Errorf("elicit schema must be of type 'object', got %q", schema.Type)
	}
	for name, prop := range schema.Properties {
		if err := validateElicitProperty(name, prop); err != nil {
			return err
		}
	}
	return nil
}

func validateElicitProperty(name string, prop *jsonschema.Schema) error {
	if prop == nil {
		return nil
	}
	if prop.Properties != nil {
		return fmt.Errorf("elicit schema property %q contains nested properties, only primitive properties are allowed", name)
	}
	switch prop.Type {
	case "string", "number", "integer", "boolean":
	default:
		return fmt.Errorf("elicit schema property %q has unsupported type %q, only string, number, integer, and boolean are allowed", name, prop.Type)
	}

	if prop.Type == "string" {
		if prop.Format != "" {
			switch prop.Format {
			case "email", "uri", "date", "date-time":
			default:
				return fmt.Errorf("elicit schema property %q has unsupported format %q, only email, uri, date, and date-time are allowed", name, prop.Format)
			}
		}
		if prop.MinLength != nil && *prop.MinLength < 0 {
			return fmt.Errorf("elicit schema property %q has invalid minLength %d, must be non-negative", name, *prop.MinLength)
		}
		if prop.MaxLength != nil && *prop.MaxLength < 0 {
			return fmt.Errorf("elicit schema property %q has invalid maxLength %d, must be non-negative", name, *prop.MaxLength)
		}
		if prop.MinLength != nil && prop.MaxLength != nil && *prop.MaxLength < *prop.MinLength {
			return fmt.Errorf("elicit schema property %q has maxLength %d less than minLength %d", name, *prop.MaxLength, *prop.MinLength)
		}
	}

	if prop.Type == "number" || prop.Type == "integer" {
		if prop.Minimum != nil && prop.Maximum != nil && *prop.Maximum < *prop.Minimum {
			return fmt.Errorf("elicit schema property %q has maximum %v less than minimum %v", name, *prop.Maximum, *prop.Minimum)
		}
	}

	if len(prop.Default) > 0 {
		switch prop.Type {
		case "boolean":
			var b bool
			if err := json.Unmarshal(prop.Default, &b); err != nil {
				return fmt.Errorf("elicit schema property %q has invalid default value, must be a bool", name)
			}
		case "string":
			var s string
			if err := json.Unmarshal(prop.Default, &s); err != nil {
				return fmt.Errorf("elicit schema property %q has invalid default value, must be a string", name)
			}
		case "integer", "number":
			var f float64
			if err := json.Unmarshal(prop.Default, &f); err != nil {
				return fmt.Errorf("elicit schema property %q has default value that cannot be interpreted as an int or float", name)
			}
		}
	}

	if len(prop.Enum) > 0 {
		if raw, ok := prop.Extra["enumNames"]; ok {
			names, ok := raw.([]any)
			if !ok {
				return fmt.Errorf("elicit schema property %q has invalid enumNames type, must be an array", name)
			}
			if len(names) != len(prop.Enum) {
				return fmt.Errorf("elicit schema property %q has %d enum values but %d enumNames, they must match", name, len(prop.Enum), len(names))
			}
		}
	}

	return nil
}
