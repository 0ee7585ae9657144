// Package gen implements the `llmc generate` source generator. It scans
// Go files for struct types annotated with a `//llmc:generate`
// directive and emits a sibling `*_codec.go` file adding two method
// conformances per type: the decode.Generable marker and the
// encode.FieldProvider field enumeration. Generation is purely
// additive; existing declarations are never rewritten.
package gen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
)

const directive = "//llmc:generate"

const header = "// Code generated by llmc generate; DO NOT EDIT.\n"

// target is one annotated struct declaration.
type target struct {
	name   string
	fields []targetField
}

type targetField struct {
	goName   string
	jsonName string
}

// Dir scans every non-generated Go file in dir and writes one
// `<name>_codec.go` per file that contains annotated structs. It
// returns the paths of the files it wrote, sorted.
func Dir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("gen: read dir: %w", err)
	}
	var written []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, "_codec.go") {
			continue
		}
		out, err := File(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if out != "" {
			written = append(written, out)
		}
	}
	sort.Strings(written)
	return written, nil
}

// File generates conformances for the annotated structs in path. It
// returns the path of the written file, or "" when the file contains
// no annotated structs.
func File(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("gen: read %s: %w", path, err)
	}
	out, err := Source(filepath.Base(path), src)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	dest := strings.TrimSuffix(path, ".go") + "_codec.go"
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		return "", fmt.Errorf("gen: write %s: %w", dest, err)
	}
	return dest, nil
}

// Source generates the conformance file for the given Go source. It
// returns nil when no struct carries the directive.
func Source(filename string, src []byte) ([]byte, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("gen: parse %s: %w", filename, err)
	}

	targets := collect(f)
	if len(targets) == 0 {
		return nil, nil
	}

	needsFmt := false
	for _, t := range targets {
		if len(t.fields) > 0 {
			needsFmt = true
		}
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	fmt.Fprintf(&buf, "\npackage %s\n\n", f.Name.Name)
	if needsFmt {
		buf.WriteString("import (\n\t\"fmt\"\n\n\t\"github.com/llmcodec/llmcodec/encode\"\n)\n")
	} else {
		buf.WriteString("import (\n\t\"github.com/llmcodec/llmcodec/encode\"\n)\n")
	}
	for _, t := range targets {
		writeConformances(&buf, t)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("gen: format output for %s: %w", filename, err)
	}
	return formatted, nil
}

// collect returns the annotated struct declarations in file order.
func collect(f *ast.File) []target {
	var out []target
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			if !annotated(gd.Doc) && !annotated(ts.Doc) {
				continue
			}
			out = append(out, target{name: ts.Name.Name, fields: structFields(st)})
		}
	}
	return out
}

func annotated(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == directive {
			return true
		}
	}
	return false
}

// structFields lists the exported fields in declaration order, using
// the json tag name when one is present. Fields tagged `json:"-"` are
// skipped, matching what the wire codec would do.
func structFields(st *ast.StructType) []targetField {
	var out []targetField
	for _, f := range st.Fields.List {
		for _, name := range f.Names {
			if !name.IsExported() {
				continue
			}
			jsonName := jsonTagName(f.Tag)
			if jsonName == "-" {
				continue
			}
			if jsonName == "" {
				jsonName = name.Name
			}
			out = append(out, targetField{goName: name.Name, jsonName: jsonName})
		}
	}
	return out
}

func jsonTagName(tag *ast.BasicLit) string {
	if tag == nil {
		return ""
	}
	raw := strings.Trim(tag.Value, "`")
	value, ok := reflect.StructTag(raw).Lookup("json")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(value, ",")
	return name
}

func writeConformances(buf *bytes.Buffer, t target) {
	fmt.Fprintf(buf, "\n// IsGenerable marks %s as eligible for model-backed decoding.\n", t.name)
	fmt.Fprintf(buf, "func (%s) IsGenerable() {}\n", t.name)

	fmt.Fprintf(buf, "\n// CodecFields enumerates the fields of %s in declaration order.\n", t.name)
	fmt.Fprintf(buf, "func (v %s) CodecFields() []encode.Field {\n", t.name)
	fmt.Fprintf(buf, "\treturn []encode.Field{\n")
	for _, f := range t.fields {
		fmt.Fprintf(buf, "\t\t{Name: %q, Value: fmt.Sprint(v.%s)},\n", f.jsonName, f.goName)
	}
	fmt.Fprintf(buf, "\t}\n}\n")
}
