package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/llmcodec/llmcodec/llm/payload"
	"github.com/llmcodec/llmcodec/llm/prompt"
	"github.com/llmcodec/llmcodec/schema"
)

// Result pairs an extracted value with the model's own estimate of how
// well the source text supported the extraction. The score is whatever
// the model reported, clamped to [0, 1]; it is not calibrated and two
// runs over the same input may disagree.
type Result[T any] struct {
	Value      T
	Confidence float64
}

// NewResult clamps confidence into [0, 1] and wraps the value. NaN
// counts as no support at all and clamps to 0.
func NewResult[T any](value T, confidence float64) Result[T] {
	if math.IsNaN(confidence) || confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Result[T]{Value: value, Confidence: confidence}
}

// confidenceReport is the schema the scoring call is constrained to.
type confidenceReport struct {
	Confidence float64 `json:"confidence" jsonschema:"description=Estimated extraction confidence between 0 and 1"`
}

// TextWithConfidence extracts a value of type T from input and then asks
// the model, in a second independent call, to score its own confidence
// in extracting this kind of data from this input. The two calls share
// no state; a failure in the scoring call surfaces as an error even
// though the extraction itself succeeded.
func TextWithConfidence[T any](ctx context.Context, g Generator, input string, opts ...Option) (Result[T], error) {
	value, err := Text[T](ctx, g, input, opts...)
	if err != nil {
		return Result[T]{}, err
	}

	st := apply(opts)
	out := st.targetSchema(schemaFor[T])
	req := &payload.Request{
		System:  st.systemMessage(out.Name),
		User:    prompt.Confidence(input),
		Schema:  schema.For[confidenceReport](),
		Family:  st.family,
		Size:    st.size,
		Options: st.options,
	}
	raw, err := g.Generate(ctx, req)
	if err != nil {
		return Result[T]{}, fmt.Errorf("decode: confidence estimation: %w", err)
	}
	var report confidenceReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return Result[T]{}, fmt.Errorf("decode: unmarshal confidence report: %w", err)
	}
	return NewResult(value, report.Confidence), nil
}
