package schema

import (
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
)

// For reflects a StructuredOutput from the Go type T. Field names come
// from `json` tags, descriptions from `jsonschema:"description=..."`
// tags. T must be a struct type; the resulting schema is strict: all
// fields are required (unless tagged omitempty) and additional
// properties are rejected.
//
// The conversion is deterministic – Required lists are sorted and the
// wire structs marshal map keys in sorted order – so the same type
// always produces the same schema bytes.
func For[T any]() StructuredOutput {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	var v T
	reflected := r.Reflect(&v)

	name := reflect.TypeOf((*T)(nil)).Elem().Name()

	return StructuredOutput{
		Name:   SnakeCase(name),
		Strict: true,
		Schema: convert(reflected),
	}
}

// convert maps an invopop schema node onto the local wire struct,
// keeping only the subset structured-output endpoints understand.
func convert(s *jsonschema.Schema) JSONSchema {
	if s == nil {
		return JSONSchema{}
	}

	out := JSONSchema{
		Description: s.Description,
		Type:        s.Type,
		Enum:        s.Enum,
	}

	if s.Items != nil {
		items := convert(s.Items)
		out.Items = &items
	}

	if s.Properties != nil && s.Properties.Len() > 0 {
		out.Properties = make(map[string]*JSONSchema, s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			child := convert(pair.Value)
			out.Properties[pair.Key] = &child
		}
	}

	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
		sort.Strings(out.Required)
	}

	return out
}
