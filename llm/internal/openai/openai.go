// Package openai implements the generation engine backed by the OpenAI
// chat-completions API, using `response_format: json_schema` for
// constrained structured output.
package openai

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

// message represents a single message in the chat conversation.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request defines the request payload sent to the OpenAI API.
type request struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      *int           `json:"max_completion_tokens,omitempty"`
	TopP           *float64       `json:"top_p,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
}

type responseFormat struct {
	Type       string                  `json:"type"`
	JSONSchema schema.StructuredOutput `json:"json_schema"`
}

// apiResponse defines the expected response structure from the OpenAI API.
type apiResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	APIError struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (e apiErrorResponse) Error() string {
	return fmt.Sprintf("OpenAI API error: %s", e.APIError.Message)
}

// NOTE: baseEndpoint is a var (not const) to allow test overrides.
var baseEndpoint = "https://api.openai.com/v1/chat/completions"

// mapModel converts a generic (family,size) pair into a concrete OpenAI
// model string. The mapping is local to this engine so business-level
// code never depends on provider-specific identifiers.
func mapModel(fam config.ModelFamily, sz config.ModelSize) (string, error) {
	switch fam {
	case config.ModelFamilyGPT:
		switch sz {
		case config.ModelSizeLarge:
			return "gpt-4.1", nil
		case config.ModelSizeSmall:
			return "gpt-4.1-mini", nil
		}
	case config.ModelFamilyReasoning:
		switch sz {
		case config.ModelSizeLarge:
			return "o3", nil
		case config.ModelSizeSmall:
			return "o4-mini", nil
		}
	}
	return "", fmt.Errorf("openai: unsupported model mapping for family=%s size=%s", fam, sz)
}

// Generate sends a schema-constrained completion request and returns
// the raw JSON produced by the model, verbatim.
func Generate(ctx context.Context, req *payload.Request) (json.RawMessage, error) {
	body, err := buildRequest(req, false)
	if err != nil {
		return nil, err
	}

	respBytes, err := call(ctx, body)
	if err != nil {
		return nil, err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}

	return json.RawMessage(apiResp.Choices[0].Message.Content), nil
}

func buildRequest(req *payload.Request, stream bool) ([]byte, error) {
	if req == nil {
		return nil, errors.New("openai: request must not be nil")
	}
	model, err := mapModel(req.Family, req.Size)
	if err != nil {
		return nil, err
	}

	r := request{
		Model: model,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: req.Schema,
		},
		Stream: stream,
	}
	if opts := req.Options; opts != nil {
		r.Temperature = opts.Temperature
		r.MaxTokens = opts.MaxTokens
		r.TopP = opts.TopP
	}

	return json.Marshal(r)
}

// call performs the HTTP round trip and returns the raw response body.
// API errors come back as a typed apiErrorResponse so callers can
// inspect the provider's error envelope unchanged.
func call(ctx context.Context, body []byte) ([]byte, error) {
	resp, err := send(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to read response body: %w", err)
	}

	logging.Log.WithField("engine", "openai").Debugf("response: %s", respBytes)
	return respBytes, nil
}

// send issues the POST and resolves non-200 statuses into errors,
// leaving the body open for the caller.
func send(ctx context.Context, body []byte) (*http.Response, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	logging.Log.WithField("engine", "openai").Debugf("request: %s", body)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)

		var errResp apiErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil || errResp.APIError.Message == "" {
			return nil, fmt.Errorf("openai: http %d – %s", resp.StatusCode, string(bodyBytes))
		}
		return nil, errResp
	}

	return resp, nil
}
