// Package shape turns declarative extraction definitions into CLI
// subcommands. A shape is a named record schema described in YAML;
// every shape known at startup becomes `llmc extract <name>`.
//
// Definitions are read from two places, later entries overriding
// earlier ones by name: the shapes embedded in the binary, then
// $LLMCODEC_HOME/shapes if that directory exists.
package shape

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cbroglie/mustache"
	"gopkg.in/yaml.v3"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/logging"
	"github.com/llmcodec/llmcodec/schema"
)

//go:embed shapes/*.yaml
var embedded embed.FS

// Model selects the model a shape's extraction runs on. Zero values
// fall back to the session defaults.
type Model struct {
	Family config.ModelFamily `yaml:"family"`
	Size   config.ModelSize   `yaml:"size"`
}

// Definition is one declarative extraction shape.
type Definition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Model       Model  `yaml:"model"`

	// ShortDescription is the one-line help text shown in `llmc extract`.
	ShortDescription string `yaml:"shortDescription"`

	// Preamble is a mustache template appended to the system message,
	// giving the model shape-specific guidance. `{{name}}` and
	// `{{description}}` resolve from the definition.
	Preamble string `yaml:"preamble"`

	// Fields declares the record's schema.
	Fields []schema.FieldDef `yaml:"fields"`
}

// Schema assembles the structured-output contract for the definition.
func (d *Definition) Schema() schema.StructuredOutput {
	return schema.FromDefinition(d.Name, d.Description, d.Fields)
}

// RenderPreamble renders the definition's preamble template, or ""
// when the shape declares none.
func (d *Definition) RenderPreamble() (string, error) {
	if d.Preamble == "" {
		return "", nil
	}
	tmpl, err := mustache.ParseString(d.Preamble)
	if err != nil {
		return "", fmt.Errorf("shape %s: malformed preamble: %w", d.Name, err)
	}
	return tmpl.Render(map[string]string{
		"name":        d.Name,
		"description": d.Description,
	})
}

// DisplayName converts the shape name into the record heading used by
// Markdown and natural-language output ("flight_record" becomes
// "FlightRecord").
func (d *Definition) DisplayName() string {
	parts := strings.Split(d.Name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

// loadDefs reads every top-level *.yaml file in rootFS into a
// Definition, skipping files that fail to parse.
func loadDefs(rootFS fs.FS) []*Definition {
	entries, err := fs.ReadDir(rootFS, ".")
	if err != nil {
		return nil
	}

	var defs []*Definition
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := fs.ReadFile(rootFS, entry.Name())
		if err != nil {
			logging.Log.WithField("shape", entry.Name()).Warnf("skipping unreadable shape: %v", err)
			continue
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			logging.Log.WithField("shape", entry.Name()).Warnf("skipping malformed shape: %v", err)
			continue
		}
		defs = append(defs, &def)
	}
	return defs
}

func loadEmbedded() []*Definition {
	subFS, err := fs.Sub(embedded, "shapes")
	if err != nil {
		return nil
	}
	return loadDefs(subFS)
}

// loadHome reads definitions from $LLMCODEC_HOME/shapes, if set.
func loadHome() []*Definition {
	home := os.Getenv("LLMCODEC_HOME")
	if home == "" {
		return nil
	}
	dir := filepath.Join(home, "shapes")
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	return loadDefs(os.DirFS(dir))
}

func toMap(defs []*Definition) map[string]*Definition {
	out := make(map[string]*Definition)
	for _, d := range defs {
		if d != nil && d.Name != "" {
			out[d.Name] = d
		}
	}
	return out
}

// load combines embedded and home definitions, home taking precedence,
// sorted by name for stable command registration.
func load() []*Definition {
	combined := toMap(loadEmbedded())
	for name, def := range toMap(loadHome()) {
		combined[name] = def
	}

	names := make([]string, 0, len(combined))
	for name := range combined {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]*Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, combined[name])
	}
	return defs
}
