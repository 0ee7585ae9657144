// Package schema describes the shape of a structured record in the
// wire format understood by constrained-generation endpoints.
//
// The JSONSchema struct mirrors the subset of JSON Schema accepted by
// both the OpenAI `response_format: json_schema` contract and Gemini's
// `responseSchema` generation config. Schemas are either reflected from
// a Go type (see For) or assembled dynamically from a field list (see
// FromDefinition).
package schema

import (
	"sort"
	"strings"
	"unicode"
)

// JSONSchema is a minimal JSON Schema node.
type JSONSchema struct {
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []any                  `json:"enum,omitempty"`
	AdditionalProperties bool                   `json:"additionalProperties"`
}

// StructuredOutput wraps a JSONSchema with the envelope expected by
// structured-output endpoints.
type StructuredOutput struct {
	Name   string     `json:"name,omitempty"`
	Schema JSONSchema `json:"schema,omitempty"`
	Strict bool       `json:"strict,omitempty"`
}

// List wraps an element schema in an object root with a single
// required "items" array property. Structured-output endpoints reject
// top-level arrays, so collection decodes go through this envelope.
func List(elem StructuredOutput) StructuredOutput {
	return StructuredOutput{
		Name:   elem.Name + "_list",
		Strict: true,
		Schema: JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"items": {
					Type:  "array",
					Items: &elem.Schema,
				},
			},
			Required: []string{"items"},
		},
	}
}

// FieldDef declares a single field of a dynamically assembled record
// schema. Type is one of "string", "integer", "number" or "boolean",
// optionally prefixed with "[]" for an array of that type.
type FieldDef struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// FromDefinition assembles a StructuredOutput from an explicit field
// list. Every declared field is required and the record rejects
// additional properties, matching the strict contract produced by For.
func FromDefinition(name, description string, fields []FieldDef) StructuredOutput {
	props := make(map[string]*JSONSchema, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}
	sort.Strings(required)

	return StructuredOutput{
		Name:   SnakeCase(name),
		Strict: true,
		Schema: JSONSchema{
			Description: description,
			Type:        "object",
			Properties:  props,
			Required:    required,
		},
	}
}

func fieldSchema(f FieldDef) *JSONSchema {
	typ := strings.TrimSpace(f.Type)
	if elem, ok := strings.CutPrefix(typ, "[]"); ok {
		return &JSONSchema{
			Description: f.Description,
			Type:        "array",
			Items:       &JSONSchema{Type: scalarType(elem)},
		}
	}
	return &JSONSchema{
		Description: f.Description,
		Type:        scalarType(typ),
	}
}

// scalarType normalises a declared field type, defaulting to string so
// a sloppy definition file still produces a usable schema.
func scalarType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "integer", "int":
		return "integer"
	case "number", "float":
		return "number"
	case "boolean", "bool":
		return "boolean"
	default:
		return "string"
	}
}

// SnakeCase converts a Go type name such as "FlightRecord" into the
// lowercase identifier used as the schema name ("flight_record").
func SnakeCase(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
