// Package decode turns free-form text into typed Go values by asking a
// configured language model for schema-constrained JSON and unmarshaling
// the reply. It is a thin convenience layer: prompts are fixed, the
// model's output is trusted verbatim, and every failure surfaces as an
// ordinary error.
package decode

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/llm/payload"
	"github.com/llmcodec/llmcodec/llm/prompt"
	"github.com/llmcodec/llmcodec/schema"
)

// Generator is the slice of the llm session surface this package needs.
// *llm.Session satisfies it.
type Generator interface {
	Generate(ctx context.Context, req *payload.Request) (json.RawMessage, error)
	GenerateStream(ctx context.Context, req *payload.Request) (<-chan payload.Chunk, error)
}

// Generable marks types that have opted into generation via the llmc
// source generator. The marker carries no behaviour; decoding works for
// any type the schema reflector can describe.
type Generable interface {
	IsGenerable()
}

// Option customises a single decode call.
type Option func(*settings)

type settings struct {
	schema   *schema.StructuredOutput
	options  *payload.GenerationOptions
	family   config.ModelFamily
	size     config.ModelSize
	preamble string
}

// WithSchema overrides the reflected schema with an explicit one. Handy
// when the target is a map or the schema was loaded from a definition
// file rather than a Go type.
func WithSchema(s schema.StructuredOutput) Option {
	return func(st *settings) { st.schema = &s }
}

// WithOptions attaches sampling options to the underlying request.
func WithOptions(opts *payload.GenerationOptions) Option {
	return func(st *settings) { st.options = opts }
}

// WithModel pins the request to a specific model family and size
// instead of the session defaults.
func WithModel(family config.ModelFamily, size config.ModelSize) Option {
	return func(st *settings) {
		st.family = family
		st.size = size
	}
}

// WithPreamble appends extra domain context to the system message. The
// fixed extraction instruction itself is never altered.
func WithPreamble(text string) Option {
	return func(st *settings) { st.preamble = text }
}

func apply(opts []Option) settings {
	var st settings
	for _, o := range opts {
		o(&st)
	}
	return st
}

// Text extracts a value of type T from input. The model receives the
// schema for T and a fixed extraction instruction; whatever JSON it
// returns is unmarshaled into T without post-processing.
func Text[T any](ctx context.Context, g Generator, input string, opts ...Option) (T, error) {
	var zero T
	st := apply(opts)

	out := st.targetSchema(schemaFor[T])
	req := &payload.Request{
		System:  st.systemMessage(out.Name),
		User:    prompt.Decode(input),
		Schema:  out,
		Family:  st.family,
		Size:    st.size,
		Options: st.options,
	}
	raw, err := g.Generate(ctx, req)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("decode: unmarshal model output: %w", err)
	}
	return v, nil
}

func (st settings) targetSchema(fallback func() schema.StructuredOutput) schema.StructuredOutput {
	if st.schema != nil {
		return *st.schema
	}
	return fallback()
}

func (st settings) systemMessage(schemaName string) string {
	sys := prompt.System(schemaName)
	if st.preamble != "" {
		sys = sys + "\n\n" + st.preamble
	}
	return sys
}

// schemaFor exists so targetSchema can take the reflected schema lazily;
// reflection is skipped entirely when WithSchema was given.
func schemaFor[T any]() schema.StructuredOutput {
	return schema.For[T]()
}
