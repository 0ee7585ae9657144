// Package encode renders structured records as LLM-friendly strings.
//
// Four strategies are supported: deterministic pretty-printed JSON,
// a Markdown field list, a single natural-language sentence, and a
// caller-supplied transformer. Markdown and natural-language rendering
// enumerate fields through the FieldProvider contract when the value
// implements it, falling back to struct reflection in declaration
// order otherwise.
package encode

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Field is a single (name, rendered value) pair of a structured record.
type Field struct {
	Name  string
	Value string
}

// FieldProvider is implemented by types that enumerate their own fields
// in a fixed order. `llmc generate` emits this conformance.
type FieldProvider interface {
	CodecFields() []Field
}

// Named is implemented by values that carry their own display name,
// overriding the reflected Go type name in Markdown and
// natural-language output.
type Named interface {
	TypeName() string
}

// Transformer converts a record into its string form. Used by the
// Custom strategy.
type Transformer func(v any) (string, error)

type kind int

const (
	kindJSON kind = iota
	kindMarkdown
	kindNaturalLanguage
	kindCustom
)

// Strategy selects one of the supported output formats. The zero value
// is the JSON strategy.
type Strategy struct {
	kind kind
	fn   Transformer
}

var (
	// JSON renders the record as key-sorted, indented JSON.
	JSON = Strategy{kind: kindJSON}

	// Markdown renders one "- field: value" line per field, prefixed
	// with a type-name heading.
	Markdown = Strategy{kind: kindMarkdown}

	// NaturalLanguage renders a single "<Type> where f1 is v1, …"
	// sentence.
	NaturalLanguage = Strategy{kind: kindNaturalLanguage}
)

// Custom returns a strategy that delegates rendering entirely to fn.
func Custom(fn Transformer) Strategy {
	return Strategy{kind: kindCustom, fn: fn}
}

// String implements fmt.Stringer for log output.
func (s Strategy) String() string {
	switch s.kind {
	case kindJSON:
		return "json"
	case kindMarkdown:
		return "markdown"
	case kindNaturalLanguage:
		return "natural-language"
	default:
		return "custom"
	}
}

// Encode renders v using the given strategy.
func Encode(v any, s Strategy) (string, error) {
	switch s.kind {
	case kindMarkdown:
		return markdown(v), nil
	case kindNaturalLanguage:
		return naturalLanguage(v), nil
	case kindCustom:
		if s.fn == nil {
			return "", fmt.Errorf("encode: custom strategy requires a transformer")
		}
		return s.fn(v)
	default:
		return jsonString(v), nil
	}
}

// jsonString marshals v through a generic intermediate so map keys and
// object properties come out sorted, making repeated encodes byte
// identical. When v cannot be marshalled at all the textual Go
// representation is returned instead of an error.
func jsonString(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	pretty, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

func markdown(v any) string {
	var sb strings.Builder
	sb.WriteString(typeName(v))
	sb.WriteString(":")
	for _, f := range Fields(v) {
		sb.WriteString(fmt.Sprintf("\n- %s: %s", f.Name, f.Value))
	}
	return sb.String()
}

func naturalLanguage(v any) string {
	fields := Fields(v)
	if len(fields) == 0 {
		return typeName(v)
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s is %s", f.Name, f.Value))
	}
	return fmt.Sprintf("%s where %s", typeName(v), strings.Join(parts, ", "))
}

// Fields enumerates the (name, value) pairs of v. A FieldProvider
// implementation wins; otherwise exported struct fields are walked in
// declaration order, and map values are listed by sorted key so output
// stays deterministic. Nested values render through their default
// string representation – no special-casing.
func Fields(v any) []Field {
	if fp, ok := v.(FieldProvider); ok {
		return fp.CodecFields()
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return structFields(rv)
	case reflect.Map:
		return mapFields(rv)
	default:
		return nil
	}
}

func structFields(rv reflect.Value) []Field {
	t := rv.Type()
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fields = append(fields, Field{
			Name:  fieldName(sf),
			Value: fmt.Sprintf("%v", rv.Field(i).Interface()),
		})
	}
	return fields
}

func mapFields(rv reflect.Value) []Field {
	if rv.Type().Key().Kind() != reflect.String {
		return nil
	}
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{
			Name:  k,
			Value: fmt.Sprintf("%v", rv.MapIndex(reflect.ValueOf(k)).Interface()),
		})
	}
	return fields
}

// fieldName prefers the json tag name, falling back to the Go field
// name, matching how the record travels on the wire.
func fieldName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" || tag == "-" {
		return sf.Name
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return sf.Name
}

func typeName(v any) string {
	if n, ok := v.(Named); ok {
		return n.TypeName()
	}
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "Record"
	}
	return t.Name()
}
