package undot

import (
	"errors"
	"slices"

	"github.com/invopop/jsonschema"
)

// SchemaHints names the config paths an EnvProvider reads and the type each
// raw value is coerced to ("string", "boolean", "number" or "json").
type SchemaHints struct {
	Paths []string
	Types map[string]string
}

// NewSchemaHints builds hints from a path -> type map. Paths are kept in
// sorted order.
func NewSchemaHints(types map[string]string) *SchemaHints {
	h := &SchemaHints{Types: make(map[string]string, len(types))}
	for path, typ := range types {
		h.Paths = append(h.Paths, path)
		h.Types[path] = typ
	}
	slices.Sort(h.Paths)
	return h
}

// SchemaHintsFor derives hints from a Go struct via its JSON schema.
// Nested structs contribute dotted paths built from their json names;
// paths follow field order.
//
// Example:
//
//	type Config struct {
//	    Database struct {
//	        MaxConns int `json:"maxConns"`
//	    } `json:"database"`
//	    Debug bool `json:"debug"`
//	}
//
//	hints, err := SchemaHintsFor(&Config{})
//	// hints.Paths == ["database.maxConns", "debug"]
//
// Recursive types are not supported.
func SchemaHintsFor(v any) (*SchemaHints, error) {
	if v == nil {
		return nil, errors.New("undot: schema hints need a struct value")
	}
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	schema := r.Reflect(v)
	if schema == nil || schema.Properties == nil {
		return nil, errors.New("undot: schema hints need a struct value")
	}

	h := &SchemaHints{Types: make(map[string]string)}
	collectHints("", schema, h)
	return h, nil
}

func collectHints(prefix string, s *jsonschema.Schema, h *SchemaHints) {
	if s.Type == "object" && s.Properties != nil && s.Properties.Len() > 0 {
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			path := pair.Key
			if prefix != "" {
				path = prefix + Delimiter + pair.Key
			}
			collectHints(path, pair.Value, h)
		}
		return
	}
	if prefix == "" {
		return
	}
	h.Paths = append(h.Paths, prefix)
	h.Types[prefix] = hintType(s.Type)
}

func hintType(schemaType string) string {
	switch schemaType {
	case "boolean":
		return "boolean"
	case "integer", "number":
		return "number"
	case "object", "array":
		return "json"
	}
	return "string"
}
