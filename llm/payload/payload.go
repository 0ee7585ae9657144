// Package payload holds the wire-level request and response types
// shared by the llm façade and the engine implementations under
// llm/internal. Keeping them in their own package lets engines depend
// on the types without importing the dispatcher.
package payload

import (
	"encoding/json"
	"errors"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/schema"
)

// ErrStreamingUnsupported is returned by engines that cannot deliver
// incremental snapshots.
var ErrStreamingUnsupported = errors.New("llm: engine does not support streaming")

// Request is the universal input for all engines: a prompt pair plus
// the schema the generated output must conform to.
type Request struct {
	// System is the system-level instruction message.
	System string
	// User is the user message carrying the actual input text.
	User string
	// Schema constrains the generated output.
	Schema schema.StructuredOutput
	// Family and Size select the model tier. Engines map the pair to a
	// concrete model identifier.
	Family config.ModelFamily
	Size   config.ModelSize
	// Options tunes generation. Nil means engine defaults.
	Options *GenerationOptions
}

// Chunk is a single element of an engine's streaming response. Raw is
// a parseable JSON snapshot of the record generated so far; the final
// chunk carries Done. Err is set when the stream fails mid-flight.
type Chunk struct {
	Raw  json.RawMessage
	Done bool
	Err  error
}

// GenerationOptions tunes text generation. All fields are optional;
// nil pointers fall through to the engine's defaults.
type GenerationOptions struct {
	// Temperature controls randomness (0.0 = deterministic).
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens limits response length.
	MaxTokens *int `json:"maxTokens,omitempty"`

	// TopP controls nucleus sampling probability threshold (0.0-1.0).
	TopP *float64 `json:"topP,omitempty"`
}

// WithTemperature creates GenerationOptions with the given temperature.
func WithTemperature(temp float64) *GenerationOptions {
	return &GenerationOptions{Temperature: &temp}
}

// WithMaxTokens creates GenerationOptions with the given token limit.
func WithMaxTokens(maxTokens int) *GenerationOptions {
	return &GenerationOptions{MaxTokens: &maxTokens}
}

// WithDeterministic creates GenerationOptions for reproducible output.
func WithDeterministic() *GenerationOptions {
	temp := 0.0
	return &GenerationOptions{Temperature: &temp}
}
