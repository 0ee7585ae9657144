package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/llm/payload"
	"github.com/llmcodec/llmcodec/logging"
)

// ErrContextExceeded is returned when the combined prompt for a request
// would not fit inside the configured context window.
var ErrContextExceeded = errors.New("llm: context window exceeded")

// nearLimitRatio is the fraction of the context window past which
// NearLimit starts reporting true.
const nearLimitRatio = 0.8

// Session dispatches requests to the provider selected in the
// configuration and keeps a running estimate of how much of the model's
// context window the conversation has consumed so far.
//
// Callers must serialise Generate and GenerateStream calls themselves.
// The usage counters are mutex-guarded because streaming charges them
// from a goroutine the session spawns, so ContextUsed and friends are
// safe to read while a stream is draining.
type Session struct {
	engine engine
	cfg    *config.Config
	codec  tokenizer.Codec

	mu   sync.Mutex
	used int
}

// NewSession builds a Session for the provider named in cfg. A nil cfg
// selects the built-in defaults.
func NewSession(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("llm: load tokenizer: %w", err)
	}
	return &Session{engine: resolveEngine(cfg), cfg: cfg, codec: codec}, nil
}

// newSessionWithEngine is the injection point used by tests.
func newSessionWithEngine(e engine, cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("llm: load tokenizer: %w", err)
	}
	return &Session{engine: e, cfg: cfg, codec: codec}, nil
}

// Generate sends a single request and returns the raw JSON document the
// provider produced. Model family and size default to the configured
// values when the request leaves them unset.
func (s *Session) Generate(ctx context.Context, req *payload.Request) (json.RawMessage, error) {
	s.applyDefaults(req)
	if err := s.checkBudget(req); err != nil {
		return nil, err
	}
	if s.cfg.Logging.RequestResponseDebug {
		logging.Log.WithField("system", req.System).WithField("user", req.User).Debug("llm request")
	}
	raw, err := s.engine.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	s.charge(s.CountTokens(req.System) + s.CountTokens(req.User) + s.CountTokens(string(raw)))
	if s.cfg.Logging.RequestResponseDebug {
		logging.Log.WithField("response", string(raw)).Debug("llm response")
	}
	return raw, nil
}

// GenerateStream sends a single request and returns a channel of
// snapshot chunks. Tokens from the final snapshot are charged to the
// session budget as they arrive.
func (s *Session) GenerateStream(ctx context.Context, req *payload.Request) (<-chan payload.Chunk, error) {
	s.applyDefaults(req)
	if err := s.checkBudget(req); err != nil {
		return nil, err
	}
	if s.cfg.Logging.RequestResponseDebug {
		logging.Log.WithField("system", req.System).WithField("user", req.User).Debug("llm stream request")
	}
	inner, err := s.engine.GenerateStream(ctx, req)
	if err != nil {
		return nil, err
	}
	s.charge(s.CountTokens(req.System) + s.CountTokens(req.User))
	out := make(chan payload.Chunk)
	go func() {
		defer close(out)
		for chunk := range inner {
			if chunk.Done {
				s.charge(s.CountTokens(string(chunk.Raw)))
			}
			// An abandoning consumer signals through ctx; a plain
			// send would pin this goroutine forever.
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// CountTokens estimates the token cost of text under the session's
// encoding.
func (s *Session) CountTokens(text string) int {
	ids, _, err := s.codec.Encode(text)
	if err != nil {
		// Fall back to a rough heuristic; encode failures are rare
		// and a wrong estimate only skews the budget report.
		return len(text) / 4
	}
	return len(ids)
}

// ContextUsed reports the cumulative token estimate for everything sent
// and received so far.
func (s *Session) ContextUsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// ContextWindow reports the configured window size in tokens.
func (s *Session) ContextWindow() int { return s.cfg.ContextWindow }

// Remaining reports how many tokens are left before the window is full.
func (s *Session) Remaining() int {
	if r := s.cfg.ContextWindow - s.ContextUsed(); r > 0 {
		return r
	}
	return 0
}

// NearLimit reports whether the session has consumed more than 80% of
// the configured window.
func (s *Session) NearLimit() bool {
	return float64(s.ContextUsed()) > float64(s.cfg.ContextWindow)*nearLimitRatio
}

func (s *Session) charge(n int) {
	s.mu.Lock()
	s.used += n
	s.mu.Unlock()
}

func (s *Session) applyDefaults(req *payload.Request) {
	if req.Family == "" {
		req.Family = s.cfg.Model.Family
	}
	if req.Size == "" {
		req.Size = s.cfg.Model.Size
	}
}

func (s *Session) checkBudget(req *payload.Request) error {
	cost := s.CountTokens(req.System) + s.CountTokens(req.User)
	used := s.ContextUsed()
	if used+cost > s.cfg.ContextWindow {
		return fmt.Errorf("%w: prompt needs %d tokens, %d of %d already used",
			ErrContextExceeded, cost, used, s.cfg.ContextWindow)
	}
	return nil
}
