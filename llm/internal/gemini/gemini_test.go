package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/llm/payload"
	"github.com/llmcodec/llmcodec/schema"
)

func testRequest() *payload.Request {
	return &payload.Request{
		System: "sys",
		User:   "user",
		Family: config.ModelFamilyGPT,
		Size:   config.ModelSizeSmall,
		Schema: schema.FromDefinition("Person", "", []schema.FieldDef{
			{Name: "name", Type: "string"},
		}),
	}
}

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	oldBase := baseEndpoint
	baseEndpoint = srv.URL
	t.Cleanup(func() { baseEndpoint = oldBase })

	t.Setenv("GEMINI_API_KEY", "test-key")
}

func TestGenerate(t *testing.T) {
	var gotBody []byte
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		resp := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"parts": []any{
							map[string]any{"text": `{"name":"Ada"}`},
						},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	raw, err := Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"name":"Ada"}` {
		t.Fatalf("raw output not passed through verbatim: %s", raw)
	}

	// The request must carry the response schema constraint.
	var sent struct {
		GenerationConfig struct {
			ResponseMimeType string             `json:"responseMimeType"`
			ResponseSchema   *schema.JSONSchema `json:"responseSchema"`
		} `json:"generationConfig"`
	}
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("failed to decode sent body: %v", err)
	}
	if sent.GenerationConfig.ResponseMimeType != "application/json" {
		t.Fatalf("responseMimeType = %q", sent.GenerationConfig.ResponseMimeType)
	}
	if sent.GenerationConfig.ResponseSchema == nil || sent.GenerationConfig.ResponseSchema.Type != "object" {
		t.Fatalf("responseSchema missing or malformed: %+v", sent.GenerationConfig.ResponseSchema)
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	if _, err := Generate(context.Background(), testRequest()); err == nil {
		t.Fatalf("expected error for empty response")
	}
}

func TestGenerate_APIErrorEnvelope(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad schema","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := Generate(context.Background(), testRequest())
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	var apiErr apiErrorResponse
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiErrorResponse, got %T: %v", err, err)
	}
	if apiErr.Err.Status != "INVALID_ARGUMENT" {
		t.Fatalf("error envelope not preserved: %+v", apiErr)
	}
}

func TestGenerateStream_Unsupported(t *testing.T) {
	if _, err := GenerateStream(context.Background(), testRequest()); !errors.Is(err, payload.ErrStreamingUnsupported) {
		t.Fatalf("expected ErrStreamingUnsupported, got %v", err)
	}
}

func TestMapModel(t *testing.T) {
	cases := []struct {
		size config.ModelSize
		want string
	}{
		{config.ModelSizeSmall, "gemini-2.5-flash"},
		{config.ModelSizeLarge, "gemini-2.5-pro"},
	}
	for _, c := range cases {
		got, err := mapModel(config.ModelFamilyGPT, c.size)
		if err != nil {
			t.Fatalf("mapModel returned unexpected error: %v", err)
		}
		if got != c.want {
			t.Fatalf("mapModel(%s) = %q, want %q", c.size, got, c.want)
		}
	}

	if _, err := mapModel(config.ModelFamilyGPT, config.ModelSize("medium")); err == nil {
		t.Fatalf("expected error for unsupported model size, got nil")
	}
}
