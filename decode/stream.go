package decode

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/llmcodec/llmcodec/llm/payload"
	"github.com/llmcodec/llmcodec/llm/prompt"
	"github.com/llmcodec/llmcodec/schema"
)

// Snapshot is one partially-populated view of the value being decoded.
// Raw carries the JSON document the snapshot was unmarshaled from; when
// Err is set the other fields are zero and the stream is over.
type Snapshot[T any] struct {
	Value T
	Raw   json.RawMessage
	Err   error
}

// Partials streams successive snapshots of a value of type T as the
// model emits it. Each snapshot is a valid JSON document containing the
// properties produced so far; fields absent from a snapshot are simply
// the zero value on the decoded struct. The last snapshot before the
// channel closes is the complete value (or an error).
func Partials[T any](ctx context.Context, g Generator, input string, opts ...Option) (<-chan Snapshot[T], error) {
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
	chunks, err := g.GenerateStream(ctx, req)
	if err != nil {
		return nil, err
	}

	snapshots := make(chan Snapshot[T])
	go func() {
		defer close(snapshots)
		// Sends race against consumer cancellation; a consumer that
		// cancelled may never receive again, so every send must be
		// abandonable or this goroutine leaks.
		deliver := func(snap Snapshot[T]) bool {
			select {
			case snapshots <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for chunk := range chunks {
			if chunk.Err != nil {
				deliver(Snapshot[T]{Err: chunk.Err})
				return
			}
			var v T
			if err := json.Unmarshal(chunk.Raw, &v); err != nil {
				deliver(Snapshot[T]{Err: fmt.Errorf("decode: unmarshal snapshot: %w", err)})
				return
			}
			if !deliver(Snapshot[T]{Value: v, Raw: chunk.Raw}) {
				return
			}
		}
	}()
	return snapshots, nil
}

// ElementStream yields the elements of a decoded collection one at a
// time. The underlying request happens exactly once, on the first call
// to Next; all elements are decoded together and then served from an
// in-memory cursor, so iteration order matches the model's output and
// repeated calls past the end stay cheap.
type ElementStream[T any] struct {
	g       Generator
	input   string
	options []Option

	fetched bool
	items   []T
	pos     int
}

// Elements prepares an element stream over input. No request is made
// until Next is called.
func Elements[T any](g Generator, input string, opts ...Option) *ElementStream[T] {
	return &ElementStream[T]{g: g, input: input, options: opts}
}

// Next returns the next element. The boolean is false once the
// collection is exhausted; calling Next again after that keeps
// returning false with no error.
func (s *ElementStream[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if !s.fetched {
		if err := s.fetch(ctx); err != nil {
			return zero, false, err
		}
	}
	if s.pos >= len(s.items) {
		return zero, false, nil
	}
	v := s.items[s.pos]
	s.pos++
	return v, true, nil
}

func (s *ElementStream[T]) fetch(ctx context.Context) error {
	st := apply(s.options)

	elem := st.targetSchema(schemaFor[T])
	list := schema.List(elem)
	req := &payload.Request{
		System:  st.systemMessage(list.Name),
		User:    prompt.Decode(s.input),
		Schema:  list,
		Family:  st.family,
		Size:    st.size,
		Options: st.options,
	}
	raw, err := s.g.Generate(ctx, req)
	if err != nil {
		return err
	}
	var envelope struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode: unmarshal element list: %w", err)
	}
	s.items = envelope.Items
	s.fetched = true
	return nil
}
