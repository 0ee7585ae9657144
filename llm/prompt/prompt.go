// Package prompt renders the fixed instruction templates sent to the
// generation engines. Templates are mustache files embedded at build
// time so the wording lives next to the code that sends it.
package prompt

import (
	"embed"
	"fmt"

	"github.com/cbroglie/mustache"
)

//go:embed templates/*
var embedded embed.FS

var (
	systemTmpl     = mustParse("templates/system.md.mustache")
	decodeTmpl     = mustParse("templates/decode.md.mustache")
	confidenceTmpl = mustParse("templates/confidence.md.mustache")
)

// System returns the system-level instruction for structured decoding
// of a record with the given schema name.
func System(schemaName string) string {
	return render(systemTmpl, map[string]string{"name": schemaName})
}

// Decode returns the user instruction embedding the caller's free-form
// input text.
func Decode(input string) string {
	return render(decodeTmpl, map[string]string{"input": input})
}

// Confidence returns the self-rating instruction for the second,
// independent confidence call. The guidance bands are a hint to the
// model only – nothing enforces them locally.
func Confidence(input string) string {
	return render(confidenceTmpl, map[string]string{"input": input})
}

// mustParse panics on failure: the templates are embedded, so a parse
// error is a build defect, not a runtime condition.
func mustParse(path string) *mustache.Template {
	data, err := embedded.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("prompt: missing template %s: %v", path, err))
	}
	tmpl, err := mustache.ParseString(string(data))
	if err != nil {
		panic(fmt.Sprintf("prompt: malformed template %s: %v", path, err))
	}
	return tmpl
}

func render(tmpl *mustache.Template, ctx map[string]string) string {
	out, err := tmpl.Render(ctx)
	if err != nil {
		panic(fmt.Sprintf("prompt: render failed: %v", err))
	}
	return out
}
