package decode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/llm/payload"
	"github.com/llmcodec/llmcodec/schema"
)

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// scriptedGenerator replies with queued raw documents, one per call,
// and records every request it received.
type scriptedGenerator struct {
	replies []json.RawMessage
	errs    []error
	chunks  []payload.Chunk
	reqs    []*payload.Request
	calls   int
}

func (s *scriptedGenerator) Generate(_ context.Context, req *payload.Request) (json.RawMessage, error) {
	s.reqs = append(s.reqs, req)
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.replies) {
		return nil, fmt.Errorf("unexpected call %d", i)
	}
	return s.replies[i], nil
}

func (s *scriptedGenerator) GenerateStream(_ context.Context, req *payload.Request) (<-chan payload.Chunk, error) {
	s.reqs = append(s.reqs, req)
	ch := make(chan payload.Chunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func TestTextDecodesVerbatimOutput(t *testing.T) {
	g := &scriptedGenerator{replies: []json.RawMessage{
		json.RawMessage(`{"name":"Ada","age":36}`),
	}}
	got, err := Text[person](context.Background(), g, "Ada Lovelace, 36, London")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := person{Name: "Ada", Age: 36}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded value mismatch (-want +got):\n%s", diff)
	}
}

func TestTextSendsFixedInstructionAndSchema(t *testing.T) {
	g := &scriptedGenerator{replies: []json.RawMessage{json.RawMessage(`{}`)}}
	if _, err := Text[person](context.Background(), g, "some input"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := g.reqs[0]
	wantUser := "Extract structured data from the following text:\n\nsome input"
	if req.User != wantUser {
		t.Errorf("user prompt mismatch:\n got %q\nwant %q", req.User, wantUser)
	}
	if req.Schema.Name != "person" {
		t.Errorf("expected reflected schema name %q, got %q", "person", req.Schema.Name)
	}
	if _, ok := req.Schema.Schema.Properties["name"]; !ok {
		t.Error("reflected schema should carry the name property")
	}
}

func TestTextWithSchemaOverride(t *testing.T) {
	custom := schema.FromDefinition("Invoice", "an invoice", []schema.FieldDef{
		{Name: "total", Type: "number"},
	})
	g := &scriptedGenerator{replies: []json.RawMessage{json.RawMessage(`{"total":9.5}`)}}
	got, err := Text[map[string]any](context.Background(), g, "total 9.50", WithSchema(custom))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.reqs[0].Schema.Name != "invoice" {
		t.Errorf("expected the explicit schema to be sent, got %q", g.reqs[0].Schema.Name)
	}
	if got["total"] != 9.5 {
		t.Errorf("unexpected decoded map: %v", got)
	}
}

func TestTextWithModelPinsRequest(t *testing.T) {
	g := &scriptedGenerator{replies: []json.RawMessage{json.RawMessage(`{}`)}}
	_, err := Text[person](context.Background(), g, "x", WithModel(config.ModelFamilyReasoning, config.ModelSizeLarge))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.reqs[0].Family != config.ModelFamilyReasoning || g.reqs[0].Size != config.ModelSizeLarge {
		t.Errorf("model choice not forwarded: %s/%s", g.reqs[0].Family, g.reqs[0].Size)
	}
}

func TestTextSurfacesEngineError(t *testing.T) {
	boom := errors.New("engine down")
	g := &scriptedGenerator{errs: []error{boom}}
	if _, err := Text[person](context.Background(), g, "x"); !errors.Is(err, boom) {
		t.Errorf("expected the engine error, got %v", err)
	}
}

func TestTextRejectsMalformedOutput(t *testing.T) {
	g := &scriptedGenerator{replies: []json.RawMessage{json.RawMessage(`{"name":`)}}
	if _, err := Text[person](context.Background(), g, "x"); err == nil {
		t.Error("expected an unmarshal error")
	}
}

func TestTextWithConfidenceClampsScore(t *testing.T) {
	cases := []struct {
		reported string
		want     float64
	}{
		{`{"confidence":0.85}`, 0.85},
		{`{"confidence":1.7}`, 1},
		{`{"confidence":-0.3}`, 0},
	}
	for _, tc := range cases {
		g := &scriptedGenerator{replies: []json.RawMessage{
			json.RawMessage(`{"name":"Ada","age":36}`),
			json.RawMessage(tc.reported),
		}}
		res, err := TextWithConfidence[person](context.Background(), g, "Ada, 36")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.reported, err)
		}
		if res.Confidence != tc.want {
			t.Errorf("%s: confidence = %v, want %v", tc.reported, res.Confidence, tc.want)
		}
		if res.Value.Name != "Ada" {
			t.Errorf("%s: value lost alongside the score: %+v", tc.reported, res.Value)
		}
	}
}

func TestNewResultClampsNaN(t *testing.T) {
	res := NewResult("v", math.NaN())
	if res.Confidence != 0 {
		t.Errorf("NaN confidence must clamp to 0, got %v", res.Confidence)
	}
	if res := NewResult("v", math.Inf(1)); res.Confidence != 1 {
		t.Errorf("+Inf confidence must clamp to 1, got %v", res.Confidence)
	}
	if res := NewResult("v", math.Inf(-1)); res.Confidence != 0 {
		t.Errorf("-Inf confidence must clamp to 0, got %v", res.Confidence)
	}
}

func TestTextWithConfidenceMakesTwoIndependentCalls(t *testing.T) {
	g := &scriptedGenerator{replies: []json.RawMessage{
		json.RawMessage(`{"name":"Ada","age":36}`),
		json.RawMessage(`{"confidence":0.9}`),
	}}
	if _, err := TextWithConfidence[person](context.Background(), g, "Ada, 36"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.reqs) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(g.reqs))
	}
	if g.reqs[0].User == g.reqs[1].User {
		t.Error("scoring call should use its own prompt, not the extraction prompt")
	}
	if g.reqs[1].Schema.Name == g.reqs[0].Schema.Name {
		t.Error("scoring call should be constrained to the confidence report schema")
	}
}

func TestTextWithConfidenceSurfacesScoringFailure(t *testing.T) {
	boom := errors.New("quota exhausted")
	g := &scriptedGenerator{
		replies: []json.RawMessage{json.RawMessage(`{"name":"Ada","age":36}`)},
		errs:    []error{nil, boom},
	}
	if _, err := TextWithConfidence[person](context.Background(), g, "Ada, 36"); !errors.Is(err, boom) {
		t.Errorf("a scoring failure must surface even though extraction succeeded, got %v", err)
	}
}

func TestPartialsForwardsSnapshots(t *testing.T) {
	g := &scriptedGenerator{chunks: []payload.Chunk{
		{Raw: json.RawMessage(`{"name":"Ada"}`)},
		{Raw: json.RawMessage(`{"name":"Ada","age":36}`), Done: true},
	}}
	ch, err := Partials[person](context.Background(), g, "Ada, 36")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []Snapshot[person]
	for s := range ch {
		got = append(got, s)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(got))
	}
	if got[0].Value.Age != 0 || got[0].Value.Name != "Ada" {
		t.Errorf("partial snapshot should leave missing fields zero: %+v", got[0].Value)
	}
	want := person{Name: "Ada", Age: 36}
	if diff := cmp.Diff(want, got[1].Value); diff != "" {
		t.Errorf("final snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestPartialsForwardsStreamError(t *testing.T) {
	boom := errors.New("connection reset")
	g := &scriptedGenerator{chunks: []payload.Chunk{
		{Raw: json.RawMessage(`{"name":"Ada"}`)},
		{Err: boom},
	}}
	ch, err := Partials[person](context.Background(), g, "Ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var last Snapshot[person]
	for s := range ch {
		last = s
	}
	if !errors.Is(last.Err, boom) {
		t.Errorf("expected the stream error on the final snapshot, got %v", last.Err)
	}
}

func TestElementsYieldsEachElementOnce(t *testing.T) {
	g := &scriptedGenerator{replies: []json.RawMessage{
		json.RawMessage(`{"items":[{"name":"Ada","age":36},{"name":"Bob","age":42}]}`),
	}}
	stream := Elements[person](g, "Ada 36, Bob 42")
	if g.calls != 0 {
		t.Fatal("no request should happen before the first Next")
	}

	var got []person
	for {
		v, ok, err := stream.Next(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := []person{{Name: "Ada", Age: 36}, {Name: "Bob", Age: 42}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("element mismatch (-want +got):\n%s", diff)
	}
	if g.calls != 1 {
		t.Errorf("all elements should come from a single request, got %d calls", g.calls)
	}

	// Exhausted streams stay exhausted, quietly.
	if _, ok, err := stream.Next(context.Background()); ok || err != nil {
		t.Errorf("past-the-end Next should report done with no error, got ok=%v err=%v", ok, err)
	}
}

func TestElementsWrapsSchemaInListEnvelope(t *testing.T) {
	g := &scriptedGenerator{replies: []json.RawMessage{json.RawMessage(`{"items":[]}`)}}
	stream := Elements[person](g, "nobody")
	if _, _, err := stream.Next(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := g.reqs[0]
	if req.Schema.Name != "person_list" {
		t.Errorf("expected the list envelope schema, got %q", req.Schema.Name)
	}
	items, ok := req.Schema.Schema.Properties["items"]
	if !ok || items.Type != "array" {
		t.Errorf("envelope should carry an items array, got %+v", req.Schema.Schema.Properties)
	}
}

func TestElementsSurfacesFetchError(t *testing.T) {
	boom := errors.New("engine down")
	g := &scriptedGenerator{errs: []error{boom}}
	stream := Elements[person](g, "x")
	if _, _, err := stream.Next(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected the fetch error, got %v", err)
	}
}

// channelGenerator exposes a caller-controlled stream so tests can
// pace chunk delivery.
type channelGenerator struct {
	ch chan payload.Chunk
}

func (g *channelGenerator) Generate(_ context.Context, _ *payload.Request) (json.RawMessage, error) {
	return nil, errors.New("not used")
}

func (g *channelGenerator) GenerateStream(_ context.Context, _ *payload.Request) (<-chan payload.Chunk, error) {
	return g.ch, nil
}

func TestPartialsStopsWhenConsumerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := make(chan payload.Chunk)
	ch, err := Partials[person](ctx, &channelGenerator{ch: inner}, "Ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inner <- payload.Chunk{Raw: json.RawMessage(`{"name":"Ada"}`)}
	if snap := <-ch; snap.Err != nil {
		t.Fatalf("unexpected snapshot error: %v", snap.Err)
	}

	// Cancel, then feed one more chunk. The forwarder must drop it and
	// close the channel rather than block on a send nobody receives.
	cancel()
	inner <- payload.Chunk{Raw: json.RawMessage(`{"name":"Ada","age":36}`)}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("snapshot channel never closed after cancel")
		}
	}
}

func TestTextWithPreambleExtendsSystemMessage(t *testing.T) {
	g := &scriptedGenerator{replies: []json.RawMessage{json.RawMessage(`{}`)}}
	_, err := Text[person](context.Background(), g, "x", WithPreamble("Dates are in ISO 8601."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := g.reqs[0]
	if !strings.HasSuffix(req.System, "\n\nDates are in ISO 8601.") {
		t.Errorf("preamble not appended to the system message: %q", req.System)
	}
	wantUser := "Extract structured data from the following text:\n\nx"
	if req.User != wantUser {
		t.Errorf("preamble must not touch the fixed instruction: %q", req.User)
	}
}
