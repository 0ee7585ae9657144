// Package gemini implements the generation engine backed by Google's
// Gemini generateContent API, using `responseSchema` for constrained
// structured output. Gemini's REST surface has no snapshot streaming,
// so GenerateStream reports ErrStreamingUnsupported.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/llm/payload"
	"github.com/llmcodec/llmcodec/logging"
	"github.com/llmcodec/llmcodec/schema"
)

// mapModel converts the (family,size) tuple into the concrete Gemini
// model identifier expected by the REST endpoint.
func mapModel(fam config.ModelFamily, sz config.ModelSize) (string, error) {
	switch sz {
	case config.ModelSizeSmall:
		return "gemini-2.5-flash", nil
	case config.ModelSizeLarge:
		return "gemini-2.5-pro", nil
	default:
		return "", fmt.Errorf("gemini: unsupported model size %s", sz)
	}
}

// Generate sends a schema-constrained generateContent request and
// returns the raw JSON produced by the model, verbatim.
func Generate(ctx context.Context, req *payload.Request) (json.RawMessage, error) {
	if req == nil {
		return nil, errors.New("gemini: request must not be nil")
	}
	model, err := mapModel(req.Family, req.Size)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, req, model)
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini: empty response")
	}
	return json.RawMessage(resp.Candidates[0].Content.Parts[0].Text), nil
}

// GenerateStream is unsupported on the Gemini REST surface.
func GenerateStream(_ context.Context, _ *payload.Request) (<-chan payload.Chunk, error) {
	return nil, payload.ErrStreamingUnsupported
}

// -----------------------------------------------------------------------------
// Provider-specific data structures & helpers (non-exported)
// -----------------------------------------------------------------------------

// NOTE: baseEndpoint is a var (not const) to allow test overrides.
var baseEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// generateContentTmpl is the relative path (fmt formatted) used to call
// the "generateContent" method on a specific model.
const generateContentTmpl = "/models/%s:generateContent?key=%s"

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string             `json:"responseMimeType,omitempty"`
	ResponseSchema   *schema.JSONSchema `json:"responseSchema,omitempty"`
	Temperature      *float64           `json:"temperature,omitempty"`
	MaxOutputTokens  *int               `json:"maxOutputTokens,omitempty"`
	TopP             *float64           `json:"topP,omitempty"`
}

type requestPayload struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// apiResponse mirrors the minimal subset of the response envelope we
// care about.
type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiErrorResponse struct {
	Err struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (e apiErrorResponse) Error() string {
	return fmt.Sprintf("Gemini API error (%d %s): %s", e.Err.Code, e.Err.Status, e.Err.Message)
}

func buildRequest(req *payload.Request) ([]byte, error) {
	if req.User == "" {
		return nil, errors.New("gemini: user message must not be empty")
	}

	responseSchema := req.Schema.Schema
	r := requestPayload{
		Contents: []content{
			{
				Role:  "user",
				Parts: []part{{Text: req.System + "\n\n" + req.User}},
			},
		},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   &responseSchema,
		},
	}
	if opts := req.Options; opts != nil {
		r.GenerationConfig.Temperature = opts.Temperature
		r.GenerationConfig.MaxOutputTokens = opts.MaxTokens
		r.GenerationConfig.TopP = opts.TopP
	}

	return json.Marshal(r)
}

func call(ctx context.Context, req *payload.Request, model string) (*apiResponse, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}

	bodyBytes, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s"+generateContentTmpl, baseEndpoint, model, apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logging.Log.WithField("engine", "gemini").Debugf("request: %s", bodyBytes)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to read response body: %w", err)
	}

	logging.Log.WithField("engine", "gemini").Debugf("response: %s", respBytes)

	if resp.StatusCode != http.StatusOK {
		// Try to decode structured error first.
		var gErr apiErrorResponse
		if jsonErr := json.Unmarshal(respBytes, &gErr); jsonErr == nil && gErr.Err.Message != "" {
			return nil, gErr
		}
		return nil, fmt.Errorf("gemini: http %d – %s", resp.StatusCode, string(respBytes))
	}

	var out apiResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return nil, fmt.Errorf("gemini: failed to unmarshal response: %w", err)
	}

	return &out, nil
}
