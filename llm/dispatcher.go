package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/llm/internal/gemini"
	"github.com/llmcodec/llmcodec/llm/internal/openai"
	"github.com/llmcodec/llmcodec/llm/payload"
)

// engine captures the common operations expected from any generation
// backend. It is intentionally unexported so that the public surface of
// the llm package stays minimal while allowing internal dispatch based
// on user configuration.
//
// Additional methods should be appended here whenever new high-level
// helpers are added to the llm façade.
type engine interface {
	Generate(ctx context.Context, req *payload.Request) (json.RawMessage, error)
	GenerateStream(ctx context.Context, req *payload.Request) (<-chan payload.Chunk, error)
}

type openaiEngine struct{}

type geminiEngine struct{}

type unknownEngine struct {
	name string
}

func (openaiEngine) Generate(ctx context.Context, req *payload.Request) (json.RawMessage, error) {
	return openai.Generate(ctx, req)
}

func (openaiEngine) GenerateStream(ctx context.Context, req *payload.Request) (<-chan payload.Chunk, error) {
	return openai.GenerateStream(ctx, req)
}

func (geminiEngine) Generate(ctx context.Context, req *payload.Request) (json.RawMessage, error) {
	return gemini.Generate(ctx, req)
}

func (geminiEngine) GenerateStream(ctx context.Context, req *payload.Request) (<-chan payload.Chunk, error) {
	return gemini.GenerateStream(ctx, req)
}

// -----------------------------------------------------------------------------
//	unknownEngine is a throwing stub
// -----------------------------------------------------------------------------

func (e unknownEngine) Generate(_ context.Context, _ *payload.Request) (json.RawMessage, error) {
	return nil, fmt.Errorf("llm: unknown provider %q", e.name)
}

func (e unknownEngine) GenerateStream(_ context.Context, _ *payload.Request) (<-chan payload.Chunk, error) {
	return nil, fmt.Errorf("llm: unknown provider %q", e.name)
}

// resolveEngine resolves the value of cfg.Provider to one of the known
// engines. Returns a throwing stub if it can't map the value to any
// known engine.
func resolveEngine(cfg *config.Config) engine {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return openaiEngine{}
	case "gemini":
		return geminiEngine{}
	default:
		return unknownEngine{name: cfg.Provider}
	}
}
